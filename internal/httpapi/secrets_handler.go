package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"llm_router/internal/middleware"
	"llm_router/internal/utils"
	"llm_router/internal/vault"
)

// SecretStore is the slice of the vault client the secrets endpoints use.
type SecretStore interface {
	AddSecret(ctx context.Context, userID, provider string, fields map[string]string) error
	GetSecret(ctx context.Context, userID, provider string) (map[string]string, error)
	DeleteSecret(ctx context.Context, userID, provider string) error
}

// SecretsHandler manages per-user provider credentials. The user ID always
// comes from the authorized RequestContext, never from the request, so a
// caller can only touch their own secrets.
type SecretsHandler struct {
	Store    SecretStore
	Recorder *usageRecorder
}

func secretErrorStatus(err error) int {
	if vault.IsKind(err, vault.KindPath) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// Put stores the full credential field mapping for one provider,
// overwriting any previous value.
func (h *SecretsHandler) Put(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	rc, ok := middleware.GetRequestContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	provider := r.PathValue("provider")

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || fields == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status := http.StatusNoContent
	defer func() {
		h.Recorder.record(r.Context(), requestOutcome{
			RequestContext: rc,
			Endpoint:       "/v1/secrets",
			StatusCode:     status,
			Started:        started,
		})
	}()

	if err := h.Store.AddSecret(r.Context(), rc.UserID, provider, fields); err != nil {
		status = secretErrorStatus(err)
		utils.RespondWithError(w, status, "Failed to store secret")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get returns the credential fields for one provider.
func (h *SecretsHandler) Get(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	rc, ok := middleware.GetRequestContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	provider := r.PathValue("provider")

	status := http.StatusOK
	defer func() {
		h.Recorder.record(r.Context(), requestOutcome{
			RequestContext: rc,
			Endpoint:       "/v1/secrets",
			StatusCode:     status,
			Started:        started,
		})
	}()

	fields, err := h.Store.GetSecret(r.Context(), rc.UserID, provider)
	if err != nil {
		status = secretErrorStatus(err)
		utils.RespondWithError(w, status, "Failed to read secret")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, fields)
}

// Delete removes all versions of the provider's credentials.
func (h *SecretsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	rc, ok := middleware.GetRequestContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	provider := r.PathValue("provider")

	status := http.StatusNoContent
	defer func() {
		h.Recorder.record(r.Context(), requestOutcome{
			RequestContext: rc,
			Endpoint:       "/v1/secrets",
			StatusCode:     status,
			Started:        started,
		})
	}()

	if err := h.Store.DeleteSecret(r.Context(), rc.UserID, provider); err != nil {
		status = secretErrorStatus(err)
		utils.RespondWithError(w, status, "Failed to delete secret")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
