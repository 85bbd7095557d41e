package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/tier"
	"github.com/okian/rota/internal/domain/types"
)

// TaskDependencies defines the task operations the handlers need.
type TaskDependencies interface {
	AssignTask(ctx context.Context, taskID string) (types.AssignmentResult, error)
	GetTask(ctx context.Context, taskID string) (model.Task, error)
}

// TasksHandler handles task requests.
type TasksHandler struct {
	deps TaskDependencies
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(deps TaskDependencies) *TasksHandler {
	return &TasksHandler{deps: deps}
}

// HandleAssign handles POST /tasks/{id}/assign. Business rejections are
// returned with 200 and success=false.
func (h *TasksHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	const op = "api.assign_task"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}

	res, err := h.deps.AssignTask(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetTask handles GET /tasks/{id}.
func (h *TasksHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_task"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}

	task, err := h.deps.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{
		Task:       task,
		Difficulty: tier.Classify(task.Budget, task.SkillCount()),
	})
}
