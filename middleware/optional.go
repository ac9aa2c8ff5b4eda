package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/shieldforge"
)

// Optional attaches claims when the request carries a valid bearer token and
// otherwise passes the request through unchanged. An invalid token is treated
// as absent.
func Optional(engine *shieldforge.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shieldforge.WithClientIP(r.Context(), clientIP(r))
			if engine != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if claims, err := engine.ValidateToken(ctx, token); err == nil {
						ctx = context.WithValue(ctx, claimsContextKey{}, claims)
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
