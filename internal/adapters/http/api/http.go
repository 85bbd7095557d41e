// Package api binds the assignment and mentorship engines to HTTP routes.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/tier"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	TaskDependencies
	OperatorDependencies
	MentorshipDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	tasksHandler      *TasksHandler
	operatorsHandler  *OperatorsHandler
	mentorshipHandler *MentorshipHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		tasksHandler:      NewTasksHandler(deps),
		operatorsHandler:  NewOperatorsHandler(deps),
		mentorshipHandler: NewMentorshipHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /tasks/{id}/assign", MetricsMiddleware(s.tasksHandler.HandleAssign, "assign"))
	mux.HandleFunc("GET /tasks/{id}", MetricsMiddleware(s.tasksHandler.HandleGetTask, "task"))
	mux.HandleFunc("GET /operators/{id}", MetricsMiddleware(s.operatorsHandler.HandleGetOperator, "operator"))
	mux.HandleFunc("POST /mentorship/evaluate", MetricsMiddleware(s.mentorshipHandler.HandleEvaluate, "mentorship_evaluate"))
	mux.HandleFunc("POST /mentorship/events", MetricsMiddleware(s.mentorshipHandler.HandlePostEvent, "mentorship_events"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// taskResponse is the read shape of GET /tasks/{id}.
type taskResponse struct {
	model.Task
	Difficulty tier.Level `json:"difficulty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
