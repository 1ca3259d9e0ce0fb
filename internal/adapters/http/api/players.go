package api

import (
	"context"
	"net/http"

	"github.com/okian/pickem/internal/domain/types"
)

// PlayerDependencies searches the player catalog.
type PlayerDependencies interface {
	FilterPlayers(ctx context.Context, query, tag string) types.PlayerSearch
}

// PlayerHandler handles player search requests.
type PlayerHandler struct {
	deps PlayerDependencies
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies) *PlayerHandler {
	return &PlayerHandler{deps: deps}
}

// HandleFilter handles GET /players?q=&tag= requests.
func (h *PlayerHandler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.deps.FilterPlayers(r.Context(), q.Get("q"), q.Get("tag")))
}
