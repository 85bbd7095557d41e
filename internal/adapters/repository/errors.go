package repository

import (
	"errors"

	"github.com/okian/rota/internal/domain/model"
)

// Sentinel kinds for store errors. The domain kinds are re-exported so
// callers of this package need not import model for errors.Is checks.
var (
	ErrNotFound       = model.ErrNotFound
	ErrConflict       = model.ErrConflict
	ErrDuplicateBonus = model.ErrDuplicateBonus
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrClosed         = errors.New("store closed")
)
