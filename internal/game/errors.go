package game

import "errors"

// Error taxonomy for the betting core. Handlers map these onto HTTP
// statuses; everything else is treated as an internal error.
var (
	// ErrValidation covers bad stakes and malformed bet parameters.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidGameConfig covers game parameters outside the supported
	// range (zero-length reel, non-positive die range, ...).
	ErrInvalidGameConfig = errors.New("invalid game config")

	// ErrStateConflict covers operations that race the seed lifecycle:
	// double settlement, bets placed during rotation, nonce races.
	ErrStateConflict = errors.New("state conflict")

	// ErrInsufficientFunds is surfaced as-is, never retried.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPersistenceFailure means a bet could not be durably recorded.
	// The stake is refunded; the outcome is discarded.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrEntropyUnavailable means the secure random source failed. The
	// betting surface must refuse new commitments rather than fall back
	// to a weaker generator.
	ErrEntropyUnavailable = errors.New("entropy source unavailable")

	// ErrAlreadyCommitted is returned when a commitment is requested
	// while the active one still has unresolved bets.
	ErrAlreadyCommitted = errors.New("seed already committed")

	// ErrRoundInProgress is returned when the client seed is changed
	// while bets are pending under the current commitment.
	ErrRoundInProgress = errors.New("round in progress")

	// ErrNothingToReveal is returned when a reveal is requested with no
	// active commitment or with bets still pending.
	ErrNothingToReveal = errors.New("nothing to reveal")

	// ErrBetNotFound is returned for unknown bet IDs.
	ErrBetNotFound = errors.New("bet not found")

	// ErrBettingClosed is returned for crash bets placed after the
	// betting window has closed.
	ErrBettingClosed = errors.New("betting is closed")
)
