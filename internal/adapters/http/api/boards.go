package api

import (
	"context"
	"net/http"

	service "github.com/okian/pickem/internal/app"
	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/types"
	"github.com/okian/pickem/pkg/logger"
)

// BoardDependencies is the board service as seen by the board routes.
type BoardDependencies interface {
	Open(ctx context.Context, userID string, init *service.Initial) (types.BoardView, error)
	Board(ctx context.Context, userID string) (types.BoardView, error)
	Close(ctx context.Context, userID string) error
	Reorder(ctx context.Context, userID string, conference model.Conference, draggedID string, target int) (types.StandingsView, bool, error)
	Drag(ctx context.Context, userID string, conference model.Conference, ev types.DragEvent) (types.StandingsView, bool, error)
	ActivateSlot(ctx context.Context, userID string, ref model.SlotRef) (types.SlotUpdate, error)
	AssignPlayer(ctx context.Context, userID, playerID string) (types.SlotUpdate, error)
	ClearSlot(ctx context.Context, userID string) (types.SlotUpdate, error)
	PickProp(ctx context.Context, userID, propID, prediction string) ([]types.PropView, error)
	Save(ctx context.Context, userID string, category model.Category, idempotencyKey string) (types.SaveReceipt, error)
}

// BoardHandler serves /boards/{user}/...
type BoardHandler struct {
	deps   BoardDependencies
	logger logger.Logger
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(deps BoardDependencies) *BoardHandler {
	return &BoardHandler{deps: deps, logger: logger.Nop()}
}

type reorderRequest struct {
	ItemID string `json:"itemId"`
	Target int    `json:"target"`
}

type standingsResponse struct {
	Standings types.StandingsView `json:"standings"`
	Changed   bool                `json:"changed"`
}

type assignRequest struct {
	PlayerID string `json:"playerId"`
}

type pickRequest struct {
	Prediction string `json:"prediction"`
}

type saveRequest struct {
	Category string `json:"category"`
}

type propsResponse struct {
	Props []types.PropView `json:"props"`
}

// HandleOpen handles POST /boards/{user}. The body is optional initial data.
func (h *BoardHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_board"
	var init service.Initial
	if err := decodeBody(r, &init, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	var initial *service.Initial
	if !emptyInitial(init) {
		initial = &init
	}
	view, err := h.deps.Open(r.Context(), r.PathValue("user"), initial)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func emptyInitial(i service.Initial) bool {
	return len(i.Eastern) == 0 && len(i.Western) == 0 && i.AllNBA == nil && i.Awards == nil && len(i.Picks) == 0
}

// HandleGet handles GET /boards/{user}.
func (h *BoardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Board(r.Context(), r.PathValue("user"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleClose handles DELETE /boards/{user}.
func (h *BoardHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Close(r.Context(), r.PathValue("user")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReorder handles POST /boards/{user}/standings/{conference}/reorder.
func (h *BoardHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	const op = "api.reorder"
	conf, ok := model.ParseConference(r.PathValue("conference"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, nil))
		return
	}
	var req reorderRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	view, changed, err := h.deps.Reorder(r.Context(), r.PathValue("user"), conf, req.ItemID, req.Target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standingsResponse{Standings: view, Changed: changed})
}

// HandleDrag handles POST /boards/{user}/standings/{conference}/drag.
func (h *BoardHandler) HandleDrag(w http.ResponseWriter, r *http.Request) {
	const op = "api.drag"
	conf, ok := model.ParseConference(r.PathValue("conference"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, nil))
		return
	}
	var ev types.DragEvent
	if err := decodeBody(r, &ev, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	view, changed, err := h.deps.Drag(r.Context(), r.PathValue("user"), conf, ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standingsResponse{Standings: view, Changed: changed})
}

// HandleActivate handles POST /boards/{user}/slots/activate.
func (h *BoardHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	const op = "api.activate_slot"
	var ref model.SlotRef
	if err := decodeBody(r, &ref, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := h.deps.ActivateSlot(r.Context(), r.PathValue("user"), ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleAssign handles POST /boards/{user}/slots/assign.
func (h *BoardHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	const op = "api.assign_player"
	var req assignRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := h.deps.AssignPlayer(r.Context(), r.PathValue("user"), req.PlayerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleClear handles POST /boards/{user}/slots/clear.
func (h *BoardHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.ClearSlot(r.Context(), r.PathValue("user"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandlePickProp handles POST /boards/{user}/props/{prop}.
func (h *BoardHandler) HandlePickProp(w http.ResponseWriter, r *http.Request) {
	const op = "api.pick_prop"
	var req pickRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	props, err := h.deps.PickProp(r.Context(), r.PathValue("user"), r.PathValue("prop"), req.Prediction)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, propsResponse{Props: props})
}

// HandleSave handles POST /boards/{user}/save. An Idempotency-Key header
// makes retries safe; a repeat is answered 200 with the first request id.
func (h *BoardHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	const op = "api.save"
	var req saveRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	var category model.Category
	if req.Category != "" {
		c, ok := model.ParseCategory(req.Category)
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, nil))
			return
		}
		category = c
	}

	receipt, err := h.deps.Save(r.Context(), r.PathValue("user"), category, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if status, _ := statusFor(err); status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "manual save failed",
				logger.String("user", r.PathValue("user")),
				logger.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	status := http.StatusAccepted
	if receipt.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, receipt)
}
