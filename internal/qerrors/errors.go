// Package qerrors defines the error taxonomy shared by the graph, the
// composer and the domain query parser.
package qerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	// Configuration errors are caused by the caller's declarations: unknown
	// relationships, ordering by missing columns, updating grouped queries.
	Configuration Kind = iota + 1
	// Validation errors are raised for comparisons against unknown columns
	// when strict filtering is enabled.
	Validation
	// NotFound is raised when a single record was requested and none matched.
	NotFound
	// Storage wraps any error returned by the database client.
	Storage
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case Validation:
		return "validation error"
	case NotFound:
		return "not found"
	case Storage:
		return "storage error"
	default:
		return "unknown error"
	}
}

var (
	ErrConfiguration = errors.New(Configuration.String())
	ErrValidation    = errors.New(Validation.String())
	ErrNotFound      = errors.New(NotFound.String())
	ErrStorage       = errors.New(Storage.String())
)

// Error is the concrete error type returned by this module.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "composer.OrderBy".
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel value of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == Configuration
	case ErrValidation:
		return e.Kind == Validation
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrStorage:
		return e.Kind == Storage
	}
	return false
}

// Configurationf builds a configuration error.
func Configurationf(op, format string, args ...any) error {
	return &Error{Kind: Configuration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation error.
func Validationf(op, format string, args ...any) error {
	return &Error{Kind: Validation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(op, format string, args ...any) error {
	return &Error{Kind: NotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WrapStorage wraps an error returned by the database client. A nil err
// yields nil.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) && qe.Kind == Storage {
		return err
	}
	return &Error{Kind: Storage, Op: op, Err: err}
}

// RelationshipNotFound reports a relationship name that could not be
// resolved from the given table.
func RelationshipNotFound(op, table, name string) error {
	return Configurationf(op, "relationship %q not found on %q", name, table)
}

func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
