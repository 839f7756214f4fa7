// Package apperr defines the failure taxonomy shared by the directory services.
//
// Every failure is a *errors.Error from github.com/goliatone/go-errors so callers
// can inspect the category, text code and metadata, or render it with the
// go-errors response helpers. Three kinds are raised by the core:
//
//   - NotFound: a requested id or name has no record (CategoryNotFound)
//   - AlreadyExists: a write would violate email/phone or name uniqueness (CategoryConflict)
//   - InvalidInput: a request fails a precondition before any lookup (CategoryBadInput,
//     or CategoryValidation when produced from ozzo-validation rules)
//
// None of them are retryable.
package apperr

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeNotFound      = "NOT_FOUND"
	TextCodeAlreadyExists = "ALREADY_EXISTS"
	TextCodeInvalidInput  = "INVALID_INPUT"
)

// NotFound reports a missing record.
func NotFound(format string, args ...any) *errors.Error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryNotFound).
		WithTextCode(TextCodeNotFound)
}

// AlreadyExists reports a uniqueness violation detected before any write.
func AlreadyExists(format string, args ...any) *errors.Error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryConflict).
		WithTextCode(TextCodeAlreadyExists)
}

// InvalidInput reports a request that fails a precondition.
func InvalidInput(format string, args ...any) *errors.Error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryBadInput).
		WithTextCode(TextCodeInvalidInput)
}

// Validate runs an ozzo-validation rule set and converts its failure into an
// InvalidInput error carrying the per-field messages.
func Validate(v validation.Validatable, message string) error {
	if err := v.Validate(); err != nil {
		return errors.FromOzzoValidation(err, message).WithTextCode(TextCodeInvalidInput)
	}
	return nil
}

// Internal wraps an unexpected failure coming from a collaborator.
func Internal(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.IsWrapped(err) {
		return err
	}
	return errors.Wrap(err, errors.CategoryInternal, message)
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool {
	return errors.IsNotFound(err)
}

// IsAlreadyExists reports whether err is an AlreadyExists failure.
func IsAlreadyExists(err error) bool {
	return errors.IsCategory(err, errors.CategoryConflict)
}

// IsInvalidInput reports whether err is an InvalidInput failure, including
// field validation failures.
func IsInvalidInput(err error) bool {
	return errors.IsCategory(err, errors.CategoryBadInput) || errors.IsValidation(err)
}

type requestIDKey struct{}

// WithRequestID stores a request id on ctx so failures raised while serving the
// request can be correlated.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Tag attaches the context request id to err when err is a go-errors value.
func Tag(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	id := RequestID(ctx)
	if id == "" {
		return err
	}
	var e *errors.Error
	if errors.As(err, &e) && e.RequestID == "" {
		return e.Clone().WithRequestID(id)
	}
	return err
}
