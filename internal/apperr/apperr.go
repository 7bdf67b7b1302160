// Package apperr defines the error taxonomy shared by the persistence layer.
// Callers match on kind with errors.Is against the exported sentinels.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindStorage         Kind = "storage"
	KindNotFound        Kind = "not_found"
	KindImportIntegrity Kind = "import_integrity"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation      = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrStorage         = &Error{Kind: KindStorage, Message: "storage failure"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrImportIntegrity = &Error{Kind: KindImportIntegrity, Message: "snapshot integrity check failed"}
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind     Kind
	Op       string
	Message  string
	Problems []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Problems) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Problems, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Validation reports malformed input such as a bad date key or a missing field.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a failure of the underlying persistence.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) && existing.Kind == KindStorage {
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Message: "storage unavailable", Err: err}
}

// NotFound signals a reference to an unknown record or message.
func NotFound(op, what, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// ImportIntegrity lists every problem found in a snapshot.
func ImportIntegrity(op string, problems []string) error {
	return &Error{
		Kind:     KindImportIntegrity,
		Op:       op,
		Message:  "snapshot rejected",
		Problems: append([]string(nil), problems...),
	}
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
