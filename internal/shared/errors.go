package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent-update conflict; callers retry with a fresh read.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrCompanyRequired occurs when an operation runs without company context.
	ErrCompanyRequired = errors.New("company context required")
)
