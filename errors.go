// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrInvoker is the base error for invoker failures.
	ErrInvoker = errors.New("invoker error")

	// ErrConfig indicates invalid construction options or a missing scope
	// key field at call time.
	ErrConfig = fmt.Errorf("%w: configuration", ErrInvoker)

	// ErrHistory is the base error for history store failures.
	ErrHistory = errors.New("history error")

	// ErrHistoryUnavailable indicates the store could not be read. The inner
	// transform is never invoked when this is returned.
	ErrHistoryUnavailable = fmt.Errorf("%w: unavailable", ErrHistory)

	// ErrHistoryPersist indicates the store rejected an append after the
	// inner transform already succeeded. The result is still delivered.
	ErrHistoryPersist = fmt.Errorf("%w: persist", ErrHistory)

	// ErrChatClient is the base error for chat client failures.
	ErrChatClient = errors.New("chat client error")

	// ErrService is the base error for backend service failures.
	ErrService = errors.New("service error")

	// ErrContentFilter indicates the request was rejected by a content filter.
	ErrContentFilter = fmt.Errorf("%w: content filter", ErrService)

	// ErrInvalidRequest indicates the request was malformed or invalid.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrService)

	// ErrInvalidResponse indicates the service returned an unexpected response.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrService)

	// ErrAuth indicates an authentication or authorization failure.
	ErrAuth = fmt.Errorf("%w: authentication", ErrService)
)

// PersistError reports a failed history append after a successful inner
// invocation. The invoker returns it alongside the inner transform's result:
// the caller already holds a valid response, only the history update is
// behind (at most once, never retried). It matches ErrHistoryPersist under
// errors.Is.
type PersistError struct {
	Scope ScopeKey
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("append history for scope %q: %v", e.Scope.String(), e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func newPersistError(scope ScopeKey, cause error) *PersistError {
	return &PersistError{
		Scope: scope,
		Err:   fmt.Errorf("%w: %v", ErrHistoryPersist, cause),
	}
}

// ServiceError provides rich context for backend service failures.
// Use errors.As to extract it from a wrapped error chain.
type ServiceError struct {
	StatusCode int
	Message    string
	Code       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("service error %d: %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }
