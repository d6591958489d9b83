package middleware

import (
	"net/http"
	"strings"

	"github.com/bloginapp/auth/internal/handlers/render"
	"github.com/bloginapp/auth/internal/handlers/userctx"
	"github.com/bloginapp/auth/internal/token"
)

const bearerScheme = "Bearer "

// AuthMiddleware authorizes requests with a bearer access token.
//
// It needs only the shared-secret verifier, no storage: any platform service
// may mount the same middleware with its own token.Verifier instance. The
// flip side is that logout can't invalidate an access token early, it stays
// usable until its own expiry.
func AuthMiddleware(verifier token.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.Verify(BearerToken(r))
			if err != nil || claims.TokenType != token.TypeAccess {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header
// Returns empty string if the header is missing or has a different scheme
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerScheme) {
		return ""
	}
	return strings.TrimPrefix(header, bearerScheme)
}
