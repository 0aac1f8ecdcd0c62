// Package executor defines the execution-backend contract and the
// dispatcher that normalises backend output for callers.
//
// BACKENDS ARE INTERCHANGEABLE:
// Each language maps to exactly one Adapter, chosen at startup by
// configuration — never by branching at call sites. Three adapter styles
// exist for the compiled-language case (in-process interpreter, remote
// execution API, local toolchain); the dispatcher neither knows nor cares
// which one is behind the interface.
package executor

import (
	"context"
	"fmt"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/model"
)

// Sink receives output chunks as the backend produces them. A backend may
// call it many times (true streaming) or once with the whole batch — callers
// must not assume either. Chunks for one execution arrive in production
// order.
type Sink func(chunk string)

// Adapter is the execution-backend contract: run the request, forward output
// through emit, and return the normalised outcome.
//
// ERROR SPLIT:
// Failures OF the program (non-zero exit, compile diagnostics, timeout) are
// not errors — they are outcomes. The error return is reserved for failures
// of the BACKEND itself: the runtime isn't loaded, the remote API is down or
// answered garbage. The dispatcher turns those into a reported outcome too,
// so neither kind ever crashes the process.
type Adapter interface {
	Run(ctx context.Context, req model.ExecutionRequest, emit Sink) (*model.ExecutionOutcome, error)
}

// BackendHTTPError reports a non-2xx status from a remote execution API.
type BackendHTTPError struct {
	Status int
}

func (e *BackendHTTPError) Error() string {
	return fmt.Sprintf("execution API returned status %d", e.Status)
}

// Unwrap maps the failure into the Unavailable family so the HTTP boundary
// answers 503.
func (e *BackendHTTPError) Unwrap() error { return apperror.ErrUnavailable }

// BackendProtocolError reports a response body that was not valid JSON.
// RawBody is kept for the logs; it is never forwarded to end users verbatim.
type BackendProtocolError struct {
	RawBody string
}

func (e *BackendProtocolError) Error() string {
	return "execution API returned a malformed response"
}

func (e *BackendProtocolError) Unwrap() error { return apperror.ErrUnavailable }
