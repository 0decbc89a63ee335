// Package api provides the read-only inspection HTTP API: group listing,
// aggregate status, and merged results.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/application/service"
	"batchflow/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server serves the inspection API.
type Server struct {
	coordinator *service.GroupCoordinator
	httpServer  *http.Server
}

// NewServer creates the inspection API server.
func NewServer(cfg config.APIConfig, coordinator *service.GroupCoordinator) *Server {
	s := &Server{coordinator: coordinator}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/v1/groups", func(r chi.Router) {
		r.Get("/", s.handleListGroups)
		r.Get("/{groupID}", s.handleGroupStatus)
		r.Get("/{groupID}/jobs", s.handleGroupJobs)
		r.Get("/{groupID}/result", s.handleGroupResult)
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	slogger.InfoNoCtx("Inspection API listening", slogger.Field("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.coordinator.ListActiveGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type groupSummary struct {
		GroupID    uuid.UUID `json:"group_id"`
		Processor  string    `json:"processor"`
		TotalItems int       `json:"total_items"`
		JobCount   int       `json:"job_count"`
		IsSplit    bool      `json:"is_split"`
		CreatedAt  time.Time `json:"created_at"`
	}
	summaries := make([]groupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, groupSummary{
			GroupID:    g.ID(),
			Processor:  g.Processor(),
			TotalItems: g.TotalItems(),
			JobCount:   g.JobCount(),
			IsSplit:    g.IsSplit(),
			CreatedAt:  g.CreatedAt(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": summaries})
}

func (s *Server) handleGroupStatus(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseGroupID(w, r)
	if !ok {
		return
	}

	report, err := s.coordinator.GetGroupStatus(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGroupJobs lists the full job history of a group, replaced jobs
// included, so retries stay auditable.
func (s *Server) handleGroupJobs(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseGroupID(w, r)
	if !ok {
		return
	}

	jobs, err := s.coordinator.GroupJobHistory(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID, "jobs": jobs})
}

func (s *Server) handleGroupResult(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseGroupID(w, r)
	if !ok {
		return
	}

	result, err := s.coordinator.CollectGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseGroupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "groupID")
	groupID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return groupID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slogger.ErrorWithErrorNoCtx(err, "Failed to encode response", nil)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
