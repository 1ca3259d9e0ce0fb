// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/pickem/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the board service.
type Dependencies interface {
	BoardDependencies
	PlayerDependencies
	PredictionDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	boardHandler      *BoardHandler
	playerHandler     *PlayerHandler
	predictionHandler *PredictionHandler

	limiter     *IPRateLimiter
	corsOrigins []string
	logger      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		boardHandler:      NewBoardHandler(deps),
		playerHandler:     NewPlayerHandler(deps),
		predictionHandler: NewPredictionHandler(deps),
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	routes := 0
	handle := func(pattern, name string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, name))
		s.logger.Debug(ctx, "route registered", logger.String("pattern", pattern), logger.String("name", name))
		routes++
	}

	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)
	handle("GET /players", "players", s.playerHandler.HandleFilter)

	b := s.boardHandler
	handle("POST /boards/{user}", "boards.open", b.HandleOpen)
	handle("GET /boards/{user}", "boards.get", b.HandleGet)
	handle("DELETE /boards/{user}", "boards.close", b.HandleClose)
	handle("POST /boards/{user}/standings/{conference}/reorder", "standings.reorder", b.HandleReorder)
	handle("POST /boards/{user}/standings/{conference}/drag", "standings.drag", b.HandleDrag)
	handle("POST /boards/{user}/slots/activate", "slots.activate", b.HandleActivate)
	handle("POST /boards/{user}/slots/assign", "slots.assign", b.HandleAssign)
	handle("POST /boards/{user}/slots/clear", "slots.clear", b.HandleClear)
	handle("POST /boards/{user}/props/{prop}", "props.pick", b.HandlePickProp)
	handle("POST /boards/{user}/save", "boards.save", b.HandleSave)

	p := s.predictionHandler
	handle("GET /predictions/{user}", "predictions", p.HandlePredictions)
	handle("GET /compare/{user}", "compare", p.HandleCompare)

	s.logger.Info(ctx, "api routes registered",
		logger.Int("routes", routes),
		logger.Bool("rateLimited", s.limiter != nil),
		logger.Int("corsOrigins", len(s.corsOrigins)),
	)
}

// Handler wraps next with the rate limiter and CORS policy configured on s.
func (s *Server) Handler(next http.Handler) http.Handler {
	h := next
	if s.limiter != nil {
		h = RateLimitMiddleware(s.limiter)(h)
	}
	if len(s.corsOrigins) > 0 {
		h = newCORS(s.corsOrigins).Handler(h)
	}
	return h
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError picks the status for err.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
