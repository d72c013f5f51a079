package errors

import (
	stderrors "errors"
	"runtime/debug"
	"time"
)

// TracedError is an AppError with request context attached.
type TracedError struct {
	*AppError
	Stack     string
	Timestamp time.Time
	Context   ErrorContext
}

// ErrorContext describes the request that produced an error.
type ErrorContext struct {
	RequestID string
	UserID    string
	Path      string
	Method    string
}

// NewTracedError wraps err; non-AppErrors become ErrInternal. The stack is
// only captured for internal errors.
func NewTracedError(err error, ctx ErrorContext) *TracedError {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = &AppError{
			Code:    ErrInternal,
			Message: err.Error(),
			Err:     err,
		}
	}

	traced := &TracedError{
		AppError:  appErr,
		Timestamp: time.Now(),
		Context:   ctx,
	}
	if appErr.Code < ErrUnauthorized {
		traced.Stack = string(debug.Stack())
	}
	return traced
}
