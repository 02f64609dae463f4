// Package api exposes the engine's control plane: a REST API for scheduler
// control and signal/trade queries, plus a WebSocket stream of lifecycle
// events.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signal-enginev1/internal/engine"
	"signal-enginev1/internal/lifecycle"
	"signal-enginev1/internal/model"
)

// TradeLister is the slice of the trade store the API needs for listings.
type TradeLister interface {
	GetPaperTrades(ctx context.Context, limit int) ([]model.PaperTrade, error)
}

// Server holds the handler dependencies.
type Server struct {
	engine     *engine.Engine
	manager    *lifecycle.Manager
	signals    model.SignalStore
	trades     TradeLister
	strategies model.StrategyStore
	hub        *Hub
	health     http.Handler
}

// NewServer wires the API server. health may be nil, in which case /health
// reports a bare ok.
func NewServer(eng *engine.Engine, manager *lifecycle.Manager, signals model.SignalStore,
	trades TradeLister, strategies model.StrategyStore, hub *Hub, health http.Handler) *Server {
	return &Server{
		engine:     eng,
		manager:    manager,
		signals:    signals,
		trades:     trades,
		strategies: strategies,
		hub:        hub,
		health:     health,
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Post("/engine/start", s.handleStart)
		r.Post("/engine/stop", s.handleStop)
		r.Post("/engine/scan", s.handleScan)

		r.Get("/signals", s.handleSignals)
		r.Get("/signals/{id}", s.handleSignal)
		r.Post("/signals/{id}/close", s.handleCloseSignal)

		r.Get("/trades", s.handleTrades)
		r.Get("/strategies", s.handleStrategies)

		r.Get("/stream", s.hub.ServeWS)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// Loops outlive the request, so they hang off the server lifetime
	// rather than the request context.
	s.engine.Start(context.Background())
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.TriggerScan(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	var (
		signals []model.Signal
		err     error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		signals, err = s.signals.GetSignalsByStatus(r.Context(), model.SignalStatus(status))
	} else {
		signals, err = s.signals.GetSignals(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if signals == nil {
		signals = []model.Signal{}
	}
	writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sig, err := s.signals.GetSignal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sig == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "signal not found"})
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleCloseSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sig, err := s.signals.GetSignal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sig == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "signal not found"})
		return
	}
	if err := s.manager.Close(r.Context(), id, model.CloseManual); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	sig, err = s.signals.GetSignal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	trades, err := s.trades.GetPaperTrades(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if trades == nil {
		trades = []model.PaperTrade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := s.strategies.LoadActiveStrategies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if strategies == nil {
		strategies = []model.Strategy{}
	}
	writeJSON(w, http.StatusOK, strategies)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
