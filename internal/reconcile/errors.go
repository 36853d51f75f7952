package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// ValidationError is an input that fails a schema, range or cross-field rule,
// or that would change an immutable field. It aborts the whole run.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s: %s", e.Kind, e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(kind Kind, field, format string, args ...any) error {
	return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ResolutionError is a named reference that does not exist on the controller.
type ResolutionError struct {
	Kind Kind
	What string
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s %q not found", e.Kind, e.What, e.Name)
}

// NotFound builds a ResolutionError.
func NotFound(kind Kind, what, name string) error {
	return &ResolutionError{Kind: kind, What: what, Name: name}
}

// VerifyError is a post-apply difference between desired and observed state.
type VerifyError struct {
	Kind       Kind
	Object     string
	Mismatches []Mismatch
	// Detail is a human-readable diff of the whole object, when available.
	Detail string
}

func (e *VerifyError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	msg := fmt.Sprintf("verification failed for %s %s: %s", e.Kind, e.Object, strings.Join(parts, "; "))
	if e.Detail != "" {
		msg += "\n" + e.Detail
	}
	return msg
}

// Mismatched builds a VerifyError with a structural diff of want and have.
func Mismatched(kind Kind, object string, want, have any, ms []Mismatch) error {
	return &VerifyError{
		Kind:       kind,
		Object:     object,
		Mismatches: ms,
		Detail:     cmp.Diff(want, have),
	}
}

// Absent builds a VerifyError for an object that should exist but does not,
// or the reverse when deleting.
func Absent(kind Kind, object string, deleting bool) error {
	m := Mismatch{Field: "present", Want: true, Have: false}
	if deleting {
		m.Want, m.Have = false, true
	}
	return &VerifyError{Kind: kind, Object: object, Mismatches: []Mismatch{m}}
}

type fatalError struct{ error }

func (e *fatalError) Unwrap() error { return e.error }

// Fatal marks err as aborting the run even though it is not a validation
// error.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err}
}

// IsFatal reports whether err must abort the remaining items of the run.
func IsFatal(err error) bool {
	var ve *ValidationError
	var fe *fatalError
	return errors.As(err, &ve) || errors.As(err, &fe)
}
