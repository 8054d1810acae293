package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pulsecrm/apiserver/internal/store"
	"github.com/pulsecrm/apiserver/types"
)

// Identity is the resolved caller attached to the request context on
// successful authentication. It deliberately carries no password hash
// and no active flag.
type Identity struct {
	ID    int        `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

// UserFinder resolves a subject id to its user record. Not-found must
// be reported with store.ErrNotFound; any other error is treated as an
// infrastructure fault.
type UserFinder interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

type contextKey string

const identityContextKey contextKey = "auth.identity"

// IdentityFromContext returns the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// ContextWithIdentity attaches an identity; exported for handler tests.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// Gate is the request-level authentication gatekeeper. Checks run in a
// fixed order: header presence, revocation, signature/expiry, identity
// resolution (cache first, then store), active flag. The revocation
// check runs before verification so known-bad tokens fail fast without
// touching the clock-dependent path.
type Gate struct {
	issuer   *Issuer
	cache    *UserCache
	registry *Registry
	users    UserFinder
	recorder Recorder
}

func NewGate(issuer *Issuer, cache *UserCache, registry *Registry, users UserFinder, recorder Recorder) *Gate {
	if recorder == nil {
		recorder = NewZapRecorder(nil)
	}
	return &Gate{
		issuer:   issuer,
		cache:    cache,
		registry: registry,
		users:    users,
		recorder: recorder,
	}
}

// Middleware enforces bearer authentication and injects the resolved
// identity into the request context.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			tokenString, err := BearerToken(r)
			if err != nil {
				g.reject(w, r, "", ErrMissingCredential)
				return
			}

			if g.registry.IsRevoked(Fingerprint(tokenString)) {
				g.reject(w, r, tokenString, ErrRevokedCredential)
				return
			}

			claims, err := g.issuer.Verify(tokenString)
			if err != nil {
				g.reject(w, r, tokenString, err)
				return
			}

			subjectID, err := claims.SubjectID()
			if err != nil {
				g.reject(w, r, tokenString, ErrMalformed)
				return
			}

			user, authErr := g.resolve(r.Context(), subjectID)
			if authErr != nil {
				g.reject(w, r, tokenString, authErr)
				return
			}

			identity := Identity{
				ID:    user.ID,
				Name:  user.Name,
				Email: user.Email,
				Role:  user.Role,
			}
			g.recorder.AuthEvent(identity.ID, r.RemoteAddr, time.Since(start))

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolve looks the subject up in the cache, falling back to the
// store. Inactive users are rejected and proactively invalidated: a
// user cached while active can be deactivated later without anyone
// calling Invalidate, and the stale snapshot must not outlive the
// first rejection.
func (g *Gate) resolve(ctx context.Context, subjectID int) (types.User, *Error) {
	if user, ok := g.cache.Get(subjectID); ok {
		return user, nil
	}

	user, err := g.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrIdentityNotFound
		}
		return types.User{}, wrapError(KindInternal, "identity lookup failed", err)
	}

	if !user.Active {
		g.cache.Invalidate(subjectID)
		return types.User{}, ErrIdentityInactive
	}

	g.cache.Put(subjectID, user)
	return user, nil
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, tokenString string, err error) {
	authErr := AsError(err)
	g.recorder.SecurityEvent(authErr.Kind, r.RemoteAddr, RedactToken(tokenString))
	WriteError(w, authErr)
}

// AsError coerces any error into a typed auth error, defaulting to the
// internal kind so unexpected failures surface as 5xx, never as 401.
func AsError(err error) *Error {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	return wrapError(KindInternal, "internal error", err)
}

// WriteError writes the standard failure response shape for an auth error.
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}{
		Success: false,
		Message: err.Message,
		Error:   string(err.Kind),
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
