package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/types"
)

// MentorshipDependencies defines the mentorship operations the handlers need.
type MentorshipDependencies interface {
	EvaluateMentorship(ctx context.Context, expertID, beginnerID, taskID string) (types.MentorshipResult, error)

	// SubmitMentorshipEvent queues e for asynchronous evaluation. It reports
	// duplicate=true when the event id was already accepted and returns an
	// error wrapping ErrBackpressure when the queue is full.
	SubmitMentorshipEvent(ctx context.Context, e model.MentorshipEvent) (duplicate bool, err error)
}

// MentorshipHandler handles mentorship requests.
type MentorshipHandler struct {
	deps MentorshipDependencies
}

// NewMentorshipHandler creates a new mentorship handler.
func NewMentorshipHandler(deps MentorshipDependencies) *MentorshipHandler {
	return &MentorshipHandler{deps: deps}
}

type evaluateRequest struct {
	ExpertID   string `json:"expert_id"`
	BeginnerID string `json:"beginner_id"`
	TaskID     string `json:"task_id"`
}

func (e evaluateRequest) validate() error {
	switch {
	case strings.TrimSpace(e.ExpertID) == "":
		return errors.New("missing expert_id")
	case strings.TrimSpace(e.BeginnerID) == "":
		return errors.New("missing beginner_id")
	}
	return nil
}

type eventRequest struct {
	EventID string `json:"event_id"`
	evaluateRequest
}

func (e eventRequest) validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return errors.New("missing event_id")
	}
	return e.evaluateRequest.validate()
}

// HandleEvaluate handles POST /mentorship/evaluate.
func (h *MentorshipHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_mentorship"
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.EvaluateMentorship(r.Context(), req.ExpertID, req.BeginnerID, req.TaskID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePostEvent handles POST /mentorship/events.
func (h *MentorshipHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_mentorship_event"
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	dup, err := h.deps.SubmitMentorshipEvent(r.Context(), model.MentorshipEvent{
		EventID:    req.EventID,
		ExpertID:   req.ExpertID,
		BeginnerID: req.BeginnerID,
		TaskID:     req.TaskID,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
