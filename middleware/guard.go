package middleware

import (
	"context"
	"net/http"

	goCred "github.com/MrEthical07/goCred"
)

type authResultContextKey struct{}

// Validator is the part of goCred.Engine the guard needs.
type Validator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*goCred.AuthResult, error)
}

// AuthResultFromContext returns the subject injected by Guard.
func AuthResultFromContext(ctx context.Context) (*goCred.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goCred.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx the way Guard does.
func WithAuthResult(ctx context.Context, res *goCred.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard rejects requests without a valid access token. When the revocation
// store is down the request is refused with 503 instead of 401.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := AccessTokenFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				if goCred.KindOf(err) == goCred.KindUnavailable {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireRole wraps next so only subjects with one of roles pass. It must run
// behind Guard.
func RequireRole(roles ...goCred.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if res.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
