// Package acloerr defines the sentinel error taxonomy shared across the
// orchestration kernel, so callers can branch with errors.Is/errors.As
// instead of matching on message text.
package acloerr

import "errors"

var (
	// ErrLeaseHeld is returned when the queue lease is held by another token
	// and has not gone stale.
	ErrLeaseHeld = errors.New("aclo: queue lease held by another process")

	// ErrLeaseLost is returned when a lease refresh discovers the on-disk
	// token no longer matches the caller's token.
	ErrLeaseLost = errors.New("aclo: queue lease lost")

	// ErrQueueEmpty identifies a drain cycle that finds no goals left while
	// waitOnEmpty is disabled. The controller reports that case as its
	// queue-empty termination reason and does not return this error.
	ErrQueueEmpty = errors.New("aclo: goal queue is empty")

	// ErrGateFailed identifies an effective gate (after the fallback chain)
	// that failed. Gate evaluation reports failure through gate.Result and
	// does not return this error.
	ErrGateFailed = errors.New("aclo: convergence gate failed")

	// ErrBudgetExhausted identifies a spec-session budget or growth guard
	// hard-fail. The guards report it through their HardFailTriggered field
	// and do not return this error.
	ErrBudgetExhausted = errors.New("aclo: spec-session budget exhausted")

	// ErrRetryBudgetExhausted identifies goals stopped after the retry round
	// ceiling was reached. The retry controller records that case as the
	// plain text "retry budget was exhausted" in BatchResult.Error, not as
	// this value.
	ErrRetryBudgetExhausted = errors.New("aclo: retry budget was exhausted")

	// ErrGovernanceDrift is returned when a resumed governance session's
	// persisted policy knobs conflict with the caller's requested options
	// and allow-drift was not set.
	ErrGovernanceDrift = errors.New("aclo: governance session resume drift")

	// ErrValidation wraps option/config validation failures.
	ErrValidation = errors.New("aclo: validation error")
)
