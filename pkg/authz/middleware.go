package authz

import (
	"net/http"
	"strings"

	"github.com/rheckart/rescue-ranger/core"
	"github.com/rheckart/rescue-ranger/pkg/jwt"
)

// Middleware parses the Bearer token and stores the claims in the
// request context. Requests without a token pass through anonymous;
// requests with an invalid token are rejected.
func Middleware(svc *jwt.Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			var claims Claims
			if err := svc.Parse(token, &claims); err != nil {
				core.JSONError(w, core.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims)))
		})
	}
}

// Require guards a route subtree with the given requirement.
func Require(a *Authorizer, req Requirement) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Authorize(r.Context(), req); err != nil {
				core.JSONError(w, httpError(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSystemAdmin guards administrative routes. Unlike Require it
// does not need a tenant context, so it works on the admin surface
// where resolution is skipped.
func RequireSystemAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				core.JSONError(w, core.ErrUnauthorized)
				return
			}
			if !identity.SystemAdmin {
				core.JSONError(w, core.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func httpError(err error) error {
	switch err {
	case ErrUnauthenticated:
		return core.ErrUnauthorized
	case ErrNoTenantContext, ErrNotMember, ErrInsufficientRole, ErrNotTenantAdmin, ErrSwitchDenied:
		return core.ErrForbidden
	default:
		return core.ErrInternalServerError
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
