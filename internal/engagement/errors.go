package engagement

import (
	"errors"
	"fmt"
)

// Error classes. Every failure from this package matches exactly one of them
// with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// Reference kinds carried by NotFoundError
const (
	KindOffering    = "offering"
	KindDocument    = "document"
	KindInstallment = "installment"
	KindStage       = "stage"
)

// NotFoundError reports an identifier the catalog or session does not recognize
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Ref)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError reports malformed input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func notFound(kind, ref string) error {
	return &NotFoundError{Kind: kind, Ref: ref}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
