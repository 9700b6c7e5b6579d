package schedule

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed input field. It is always recoverable:
// the caller re-prompts, nothing retries.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// NotFoundError reports a missing rule, exception or profile.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ForbiddenError reports a mutation attempted by a non-owner.
type ForbiddenError struct {
	Resource string
	ID       string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s is owned by another builder", e.Resource, e.ID)
}

// ConflictError reports a write the current state refuses: a second
// exception on the same date, a plan limit hit, a slot already booked.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
}

// InvalidTimeError reports an unparsable time-of-day, date or timezone. At
// store boundaries it surfaces wrapped in a ValidationError; inside the
// resolution engine the offending row is skipped and logged instead.
type InvalidTimeError struct {
	Value  string
	Reason string
	Cause  error
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Value, e.Reason)
}

func (e *InvalidTimeError) Unwrap() error { return e.Cause }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// invalid builds a ValidationError, attaching an InvalidTimeError cause when
// the reason originated in time parsing.
func invalid(field, reason string, cause error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Cause: cause}
}
