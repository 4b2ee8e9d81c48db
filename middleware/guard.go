package middleware

import (
	"context"
	"net/http"
	"strings"

	authgate "github.com/authgate/authgate"
)

type authContextKey struct{}

// AuthFromContext returns the [authgate.AuthContext] attached by [Guard].
func AuthFromContext(ctx context.Context) (*authgate.AuthContext, bool) {
	res, ok := ctx.Value(authContextKey{}).(*authgate.AuthContext)
	return res, ok
}

// Guard authorizes the bearer token on every request. Every failure
// (expired, forged, revoked, missing, or a backend outage) collapses to
// one generic 401 so the endpoint cannot be used as an oracle for token
// state. The distinct subkinds remain visible in the service's audit
// trail and metrics.
func Guard(service *authgate.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			auth, err := service.Authorize(r.Context(), tok)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole layers a role check over [Guard]'s context. Must run inside
// a guarded chain.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := AuthFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if auth.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
