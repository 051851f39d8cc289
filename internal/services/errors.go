package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// PermissionError covers both unauthenticated callers and callers that do
// not own the resource.
type PermissionError struct {
	Action          string
	Unauthenticated bool
}

func (e *PermissionError) Error() string {
	if e.Unauthenticated {
		return "authentication required to " + e.Action
	}
	return "not allowed to " + e.Action
}

type PrivateAccessError struct {
	Resource string
	ID       string
}

func (e *PrivateAccessError) Error() string {
	return fmt.Sprintf("%s %s is private", e.Resource, e.ID)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError is returned when a write was made against a stale version.
type ConflictError struct {
	Resource string
	ID       string
	Current  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (current version %d)", e.Resource, e.ID, e.Current)
}

// PartialFailureError reports a multi-step write that failed after its first
// step. RolledBack tells the caller whether the earlier steps were undone.
type PartialFailureError struct {
	Op         string
	Step       string
	RolledBack bool
	Err        error
}

func (e *PartialFailureError) Error() string {
	state := "not rolled back"
	if e.RolledBack {
		state = "rolled back"
	}
	return fmt.Sprintf("%s failed at %s (%s): %v", e.Op, e.Step, state, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// stepError tags an error from inside a transaction with the step that
// produced it.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func atStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return &stepError{step: step, err: err}
}

// partialFailure turns a failed transaction into a PartialFailureError.
// Domain errors raised inside the transaction pass through untouched.
func partialFailure(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	var se *stepError
	step := "commit"
	if errors.As(err, &se) {
		step = se.step
		err = se.err
	}
	return &PartialFailureError{Op: op, Step: step, RolledBack: true, Err: err}
}

func isDomainError(err error) bool {
	var (
		ve *ValidationError
		pe *PermissionError
		pa *PrivateAccessError
		nf *NotFoundError
		ce *ConflictError
	)
	return errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &pa) ||
		errors.As(err, &nf) || errors.As(err, &ce)
}

func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}
