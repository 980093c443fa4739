package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means a required table or artifact is missing or unreadable.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrMalformedArtifact means a model bundle exists but cannot be used.
	ErrMalformedArtifact = fmt.Errorf("malformed artifact: %w", ErrDataUnavailable)
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNotTrained        = errors.New("model not trained")
	ErrNoHistory         = errors.New("no history before target date")
)

// ParamError describes a rejected input.
type ParamError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

// UnavailableError names the resource that could not be loaded.
type UnavailableError struct {
	Resource string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Resource)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Resource, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDataUnavailable}
	}
	return []error{ErrDataUnavailable, e.Err}
}
