package api

import (
	"context"
	"net/http"

	"github.com/okian/pickem/internal/domain/types"
)

// PredictionDependencies reads stored predictions.
type PredictionDependencies interface {
	Predictions(ctx context.Context, userID string) (types.PredictionsView, error)
	Compare(ctx context.Context, userID, against string) (types.Comparison, error)
}

// PredictionHandler handles saved prediction reads.
type PredictionHandler struct {
	deps PredictionDependencies
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(deps PredictionDependencies) *PredictionHandler {
	return &PredictionHandler{deps: deps}
}

// HandlePredictions handles GET /predictions/{user}.
func (h *PredictionHandler) HandlePredictions(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Predictions(r.Context(), r.PathValue("user"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCompare handles GET /compare/{user}?against=. Comparisons exist only
// once the season is locked.
func (h *PredictionHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.deps.Compare(r.Context(), r.PathValue("user"), r.URL.Query().Get("against"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
