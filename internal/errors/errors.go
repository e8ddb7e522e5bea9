package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used to classify failures. Errors built with the builder below are
// marked with one of these so callers can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrVersionConflict  = errors.New("version conflict")
	ErrValidation       = errors.New("validation error")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrPermissionDenied = errors.New("permission denied")
	ErrHTTPClient       = errors.New("http client error")
	ErrDatabase         = errors.New("database error")
	ErrSystem           = errors.New("system error")
	ErrInternal         = errors.New("internal error")
)

var statusCodeMap = map[error]int{
	ErrNotFound:         http.StatusNotFound,
	ErrAlreadyExists:    http.StatusConflict,
	ErrVersionConflict:  http.StatusConflict,
	ErrValidation:       http.StatusBadRequest,
	ErrInvalidOperation: http.StatusBadRequest,
	ErrPermissionDenied: http.StatusForbidden,
	ErrHTTPClient:       http.StatusBadGateway,
	ErrDatabase:         http.StatusInternalServerError,
	ErrSystem:           http.StatusInternalServerError,
	ErrInternal:         http.StatusInternalServerError,
}

// InternalError carries the user facing hint and the reportable details next to the
// wrapped cause.
type InternalError struct {
	Err          error
	DisplayError string
	Details      map[string]any
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError
	}
	return e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// ErrorBuilder builds an InternalError step by step.
type ErrorBuilder struct {
	err     error
	msg     string
	details map[string]any
}

// NewError starts a new error with the given message.
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{
		err: errors.New(msg),
		msg: msg,
	}
}

// NewErrorf starts a new error with a formatted message.
func NewErrorf(format string, args ...any) *ErrorBuilder {
	return NewError(fmt.Sprintf(format, args...))
}

// WithError wraps an existing error.
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ErrorBuilder{
		err: err,
		msg: err.Error(),
	}
}

// WithMessage overrides the internal message while keeping the cause.
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.Wrap(b.err, msg)
	b.msg = msg
	return b
}

// WithHint attaches a user facing hint.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

// WithHintf attaches a formatted user facing hint.
func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	return b.WithHint(fmt.Sprintf(format, args...))
}

// WithReportableDetails attaches details that are safe to return to API callers.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	if b.details == nil {
		b.details = make(map[string]any, len(details))
	}
	for k, v := range details {
		b.details[k] = v
	}
	return b
}

// Mark classifies the error with one of the sentinel errors and returns it.
func (b *ErrorBuilder) Mark(reference error) error {
	return &InternalError{
		Err:          errors.Mark(b.err, reference),
		DisplayError: b.msg,
		Details:      b.details,
	}
}

// Err returns the built error without a classification.
func (b *ErrorBuilder) Err() error {
	return &InternalError{
		Err:          b.err,
		DisplayError: b.msg,
		Details:      b.details,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// HTTPStatusFromErr maps a marked error to an HTTP status code.
func HTTPStatusFromErr(err error) int {
	for ref, code := range statusCodeMap {
		if errors.Is(err, ref) {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Hint returns the flattened user facing hints of err.
func Hint(err error) string {
	return errors.FlattenHints(err)
}
