package shared

import (
	"errors"
	"fmt"
)

// ErrNotificationThrottled signals that a robot notification was rejected
// by the throttle gate. It converts to an ignored_data entry, never to an
// HTTP error.
var ErrNotificationThrottled = errors.New("notification throttled")

// Kind classifies an AppError so the HTTP boundary can map it to a status
// code without inspecting message strings.
type Kind int

const (
	// KindInternal covers upstream transport failures, parse failures and
	// command protocol failures
	KindInternal Kind = iota
	// KindValidation covers malformed request bodies and payloads
	KindValidation
	// KindPrecondition covers operations rejected by the robot's current
	// attributes (no remaining waypoints)
	KindPrecondition
	// KindConflict covers operations rejected because the robot is busy
	KindConflict
	// KindNotFound covers upstream 404 responses
	KindNotFound
	// KindUnavailable covers fleet exhaustion (no available robot)
	KindUnavailable
)

// AppError is the structured error carried from the inner components to the
// HTTP boundary. Context holds extra key/value pairs merged into the error
// body, RootCause carries the upstream response body when there is one.
type AppError struct {
	Kind      Kind
	Message   string
	RootCause string
	Context   map[string]any
}

func (e *AppError) Error() string {
	if e.RootCause != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.RootCause)
	}
	return e.Message
}

// With attaches a context key/value pair and returns the error for chaining.
func (e *AppError) With(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// WithRootCause records the upstream failure body.
func (e *AppError) WithRootCause(rootCause string) *AppError {
	e.RootCause = rootCause
	return e
}

func newError(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports a malformed request or payload.
func NewValidationError(format string, args ...any) *AppError {
	return newError(KindValidation, format, args...)
}

// NewPreconditionError reports an operation rejected by the robot state.
func NewPreconditionError(format string, args ...any) *AppError {
	return newError(KindPrecondition, format, args...)
}

// NewConflictError reports an operation rejected because the robot is busy.
func NewConflictError(format string, args ...any) *AppError {
	return newError(KindConflict, format, args...)
}

// NewNotFoundError reports a missing upstream entity.
func NewNotFoundError(format string, args ...any) *AppError {
	return newError(KindNotFound, format, args...)
}

// NewUnavailableError reports fleet exhaustion.
func NewUnavailableError(format string, args ...any) *AppError {
	return newError(KindUnavailable, format, args...)
}

// NewInternalError reports an upstream or protocol failure.
func NewInternalError(format string, args ...any) *AppError {
	return newError(KindInternal, format, args...)
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// AsAppError unwraps err into an *AppError when possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
