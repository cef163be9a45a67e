// Package api exposes the operational HTTP surface: health probes, metrics,
// queue introspection, manual enqueue, and the flush trigger.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/queue"
	"github.com/warmfront/warmfront/internal/runguard"
)

// Pinger reports backend liveness. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ops HTTP server.
type Server struct {
	repo     queue.Repository
	enqueuer *queue.Enqueuer
	guard    *runguard.Guard
	db       Pinger
	logger   *zap.Logger
}

// NewServer constructs a Server.
func NewServer(repo queue.Repository, enqueuer *queue.Enqueuer, guard *runguard.Guard, db Pinger, logger *zap.Logger) *Server {
	return &Server{
		repo:     repo,
		enqueuer: enqueuer,
		guard:    guard,
		db:       db,
		logger:   logger,
	}
}

// Router builds the chi router for the ops surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queue/stats", s.handleQueueStats)
		r.Post("/queue", s.handleEnqueue)
		r.Post("/flush", s.handleFlush)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn("Readiness check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.repo.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("Failed to count queue items", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not read queue"})
		return
	}

	stats := make(map[string]int, len(counts))
	for status, count := range counts {
		stats[string(status)] = count
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type enqueueRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	StoreIDs   []int  `json:"store_ids"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.EntityType == "" || req.EntityID <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity_type and entity_id are required"})
		return
	}

	s.enqueuer.Enqueue(r.Context(), req.EntityType, req.EntityID, req.StoreIDs)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.guard.Arm(r.Context()); err != nil {
		s.logger.Error("Failed to arm warm trigger", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not arm warm trigger"})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "armed"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}
