package auth

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pulsecrm/apiserver/types"
)

// Guards are pure predicates over the identity the gate resolved. They
// never consult the store, so authorization stays O(1) and free of
// side effects. They must run after the gate middleware.

// RequireRole passes only callers holding exactly the given role.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, ErrMissingCredential)
				return
			}
			if identity.Role != role {
				WriteError(w, newError(KindInsufficientRole,
					fmt.Sprintf("requires role %q, caller has role %q", role, identity.Role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrRole passes callers holding the given role, or callers
// whose own id matches the named URL parameter.
func RequireSelfOrRole(param string, role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, ErrMissingCredential)
				return
			}
			if identity.Role == role {
				next.ServeHTTP(w, r)
				return
			}
			subjectID, err := strconv.Atoi(chi.URLParam(r, param))
			if err == nil && subjectID == identity.ID {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, newError(KindAccessDenied,
				fmt.Sprintf("requires role %q or ownership of the resource, caller %d has role %q",
					role, identity.ID, identity.Role)))
		})
	}
}
