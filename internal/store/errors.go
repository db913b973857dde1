package store

import (
	"errors"
	"fmt"
)

// Kind discriminates the business error variants of the core. Callers match
// on kind rather than on concrete types.
type Kind string

const (
	// KindNotFound means a referenced loan, employee, asset item or stock
	// item does not exist (or is hidden by soft-delete filtering).
	KindNotFound Kind = "NOT_FOUND"
	// KindValidation means a business-rule violation: double-booking an
	// asset item, insufficient stock, closing twice, writing to a non-open
	// or deleted loan.
	KindValidation Kind = "VALIDATION"
)

// Error is the typed error surfaced by every core operation. Details carries
// structured payload (which asset tag, how many units available) so callers
// can self-correct.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithDetail attaches a structured detail and returns the error for chaining
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// NotFoundf builds a KindNotFound error
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a KindValidation error
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a core error of kind NOT_FOUND
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// IsValidation reports whether err is a core error of kind VALIDATION
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}
