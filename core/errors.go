package core

import "github.com/pkg/errors"

var (
	// ErrAuthenticationFailed is returned on any failed credential exchange.
	// It is deliberately uniform: callers must not be able to tell an unknown
	// identity from a wrong secret.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoPrivilege is returned by a directory lookup that found no
	// privileged-account row for an identity.
	ErrNoPrivilege = errors.New("no privileged account")

	// ErrNotFound is the generic row-absence sentinel shared by gateway
	// adapters.
	ErrNotFound = errors.New("record not found")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// UploadError wraps an object-storage failure that aborted an enclosing
// create/update before any row mutation was attempted.
type UploadError struct {
	Path string
	Err  error
}

func (err UploadError) Error() string {
	return "uploading " + err.Path + ": " + err.Err.Error()
}

func (err UploadError) Unwrap() error { return err.Err }

func IsUploadError(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
