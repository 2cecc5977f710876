package middleware

import (
	"context"
	"net/http"
	"strings"

	"llm_router/internal/auth"
	"llm_router/internal/logging"
	"llm_router/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// RequestContextKey is the context key for the per-request identity bundle
	RequestContextKey ContextKey = "requestContext"
)

// All authorization failures collapse to this one message. Whether the
// backend was down or the key was bad lives in logs only.
const unauthorizedMessage = "Unauthorized"

// parseBearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme match is case-insensitive; the token must be non-empty.
func parseBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

// tokenFingerprint gives a short stable identifier for a token so log
// lines can be correlated without ever writing the token itself.
func tokenFingerprint(token string) string {
	return utils.HashString(token)[:12]
}

// AuthMiddleware validates the bearer token against the injected verifier
// and, on success, attaches a RequestContext to the request. The verifier
// call inherits the request's context, so a caller deadline bounds it.
func AuthMiddleware(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			token, ok := parseBearerToken(header)
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			result, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logging.Warningf("token verification failed token=%s: %v", tokenFingerprint(token), err)
				utils.RespondWithError(w, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			if !result.Valid || result.UserID == "" {
				logging.Debugf("token rejected by verifier token=%s valid=%t", tokenFingerprint(token), result.Valid)
				utils.RespondWithError(w, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			rc := auth.NewRequestContext(result)
			ctx := context.WithValue(r.Context(), RequestContextKey, rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestContext retrieves the RequestContext from the request context.
func GetRequestContext(ctx context.Context) (*auth.RequestContext, bool) {
	rc, ok := ctx.Value(RequestContextKey).(*auth.RequestContext)
	return rc, ok
}
