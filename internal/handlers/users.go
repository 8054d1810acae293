package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pulsecrm/apiserver/internal/auth"
	"github.com/pulsecrm/apiserver/internal/services"
	"github.com/pulsecrm/apiserver/internal/store"
	"github.com/pulsecrm/apiserver/types"
)

// UserHandler provides the user-management endpoints. These are the
// mutation flows the user cache's coherence contract depends on: every
// write goes through UserService, which invalidates the cached
// snapshot for the touched id.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user-management routes. All routes sit behind
// the gate; mutations additionally require the administrator role,
// reads of a single user allow self-access.
func UserRouter(r chi.Router, handler *UserHandler, gate func(http.Handler) http.Handler) {
	admin := auth.RequireRole(types.RoleAdministrator)
	selfOrAdmin := auth.RequireSelfOrRole("id", types.RoleAdministrator)

	r.Use(gate)
	r.With(admin).Get("/", handler.List)
	r.With(admin).Post("/", handler.Create)
	r.With(selfOrAdmin).Get("/{id}", handler.Get)
	r.With(selfOrAdmin).Put("/{id}", handler.Update)
	r.With(admin).Post("/{id}/deactivate", handler.Deactivate)
	r.With(admin).Post("/{id}/activate", handler.Activate)
}

type CreateUserRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     types.Role `json:"role"`
	Password string     `json:"password"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing required fields")
		return
	}
	if req.Role == "" {
		req.Role = types.RoleStaff
	}
	if !req.Role.IsValid() {
		writeError(w, http.StatusBadRequest, codeBadRequest, "unknown role")
		return
	}

	if _, err := h.userService.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, codeConflict, "email already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to check user")
		return
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		Active:       true,
		PasswordHash: hashed,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

type UpdateUserRequest struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

// Update changes a user's profile. Blank fields are left untouched.
// Role changes are reserved to administrators even when the caller
// passed the self-or-admin guard for their own record.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to load user")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if _, err := h.userService.GetByEmail(r.Context(), email); err == nil {
			writeError(w, http.StatusConflict, codeConflict, "email already exists")
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, codeInternal, "failed to check user")
			return
		}
		user.Email = email
	}
	if req.Role != "" && req.Role != user.Role {
		identity, _ := auth.IdentityFromContext(r.Context())
		if identity.Role != types.RoleAdministrator {
			writeError(w, http.StatusForbidden, string(auth.KindAccessDenied), "only administrators can change roles")
			return
		}
		if !req.Role.IsValid() {
			writeError(w, http.StatusBadRequest, codeBadRequest, "unknown role")
			return
		}
		user.Role = req.Role
	}

	updated, err := h.userService.Update(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": updated})
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	if active {
		err = h.userService.Activate(r.Context(), id)
	} else {
		err = h.userService.Deactivate(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
