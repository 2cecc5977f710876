package middleware

import (
	"net/http"
	"strings"

	"llm_router/internal/utils"
)

// JSONContentTypeMiddleware rejects any request whose Content-Type header,
// lower-cased, is not exactly "application/json". Parameterized variants
// such as "application/json; charset=utf-8" are rejected too; strict
// equality is the contract.
func JSONContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := strings.ToLower(r.Header.Get("Content-Type"))
		if contentType != "application/json" {
			utils.RespondWithError(w, http.StatusBadRequest, "Content-Type must be application/json")
			return
		}

		next.ServeHTTP(w, r)
	})
}
