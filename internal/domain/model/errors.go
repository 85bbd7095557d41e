package model

import "errors"

// Sentinel kinds shared by the stores and the engines.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("task is no longer open")
	ErrDuplicateBonus = errors.New("mentorship bonus already recorded")
)
