package entity

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrExternalTool      = errors.New("external tool failure")
	ErrStorage           = errors.New("storage failure")
	ErrNotFound          = errors.New("not found")
	ErrNotReady          = errors.New("job not ready")
	ErrInvalidTransition = errors.New("invalid job state transition")
)
