package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"llm_router/internal/catalog"
	"llm_router/internal/middleware"
	"llm_router/internal/utils"
)

// RouteCandidatesHandler serves the candidate listings routing decisions
// are made from: the cached catalog slice for one (category, order) pair
// plus the provider pairs each listed model resolves to. Selection itself
// happens upstream of this core.
type RouteCandidatesHandler struct {
	Accessor *catalog.Accessor
	Recorder *usageRecorder
}

type candidatesRequest struct {
	Category string `json:"category"`
	Order    string `json:"order"`
}

type candidatesResponse struct {
	Category  string                        `json:"category"`
	Order     string                        `json:"order"`
	Models    []string                      `json:"models"`
	Providers map[string][]catalog.ModelRef `json:"providers"`
	Fallback  string                        `json:"fallback,omitempty"`
}

func (h *RouteCandidatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	rc, ok := middleware.GetRequestContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req candidatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Category == "" || req.Order == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "category and order are required")
		return
	}

	status := http.StatusOK
	defer func() {
		h.Recorder.record(r.Context(), requestOutcome{
			RequestContext: rc,
			Endpoint:       "/v1/route/candidates",
			Category:       req.Category,
			RankingOrder:   req.Order,
			StatusCode:     status,
			Started:        started,
		})
	}()

	models, err := h.Accessor.GetCatalogEntry(req.Category, req.Order)
	if err != nil {
		status = candidateErrorStatus(err)
		utils.RespondWithError(w, status, candidateErrorMessage(err))
		return
	}

	modelMap, err := h.Accessor.GetModelMap()
	if err != nil {
		status = candidateErrorStatus(err)
		utils.RespondWithError(w, status, candidateErrorMessage(err))
		return
	}

	providers := make(map[string][]catalog.ModelRef, len(models))
	for _, model := range models {
		if refs, ok := modelMap[model]; ok {
			providers[model] = refs
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, candidatesResponse{
		Category:  req.Category,
		Order:     req.Order,
		Models:    models,
		Providers: providers,
		Fallback:  rc.FallbackProviderModelPair,
	})
}

func candidateErrorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		// DecodeError and unexpected read failures: the cache is
		// corrupt or absent, nothing the caller did wrong.
		return http.StatusInternalServerError
	}
}

func candidateErrorMessage(err error) string {
	switch {
	case errors.Is(err, catalog.ErrInvalidKey):
		return "Invalid category or order"
	case errors.Is(err, os.ErrNotExist):
		return "Catalog entry not available"
	default:
		return "Catalog unavailable"
	}
}
