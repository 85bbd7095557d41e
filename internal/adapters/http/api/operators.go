package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/rota/internal/domain/types"
)

// OperatorDependencies defines the operator lookups the handlers need.
type OperatorDependencies interface {
	GetOperator(ctx context.Context, operatorID string) (types.OperatorView, error)
}

// OperatorsHandler handles operator requests.
type OperatorsHandler struct {
	deps OperatorDependencies
}

// NewOperatorsHandler creates a new operators handler.
func NewOperatorsHandler(deps OperatorDependencies) *OperatorsHandler {
	return &OperatorsHandler{deps: deps}
}

// HandleGetOperator handles GET /operators/{id}.
func (h *OperatorsHandler) HandleGetOperator(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_operator"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}

	view, err := h.deps.GetOperator(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
