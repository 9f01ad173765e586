package domain

import "errors"

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Prediction / source errors
var (
	// ErrInsufficientSources names the case where fewer than two prediction
	// sources are available for a race — the fusion kernel requires at
	// least two independent sources to pool opinions. BetExecutor.Run does
	// not return it: it reports this case as an "ok" Result with reason
	// "insufficient_sources".
	ErrInsufficientSources = errors.New("fewer than two prediction sources available")

	// ErrPredictionNotFound is returned when no prediction exists for the
	// requested race_id/source pair.
	ErrPredictionNotFound = errors.New("prediction not found")

	// ErrPredictionExpired is returned when a stored prediction's TTL has
	// elapsed.
	ErrPredictionExpired = errors.New("prediction has expired")
)

// Odds / market errors
var (
	// ErrOddsUnavailable is returned when the odds feed cannot supply odds
	// for the requested race, after retries are exhausted.
	ErrOddsUnavailable = errors.New("odds unavailable for race")

	// ErrNoOverlappingHorses names the case where the log-opinion pool finds
	// no horse number common to every source. kernel.LogOpinionPool does not
	// return it; it returns an empty map in that case.
	ErrNoOverlappingHorses = errors.New("no horse numbers common to all sources")
)

// Order / executor errors
var (
	// ErrOrderNotFound is returned when no purchase order matches the given ID.
	ErrOrderNotFound = errors.New("purchase order not found")

	// ErrOrderAlreadyFinalized is returned when attempting to transition an
	// order that has already reached a terminal state.
	ErrOrderAlreadyFinalized = errors.New("purchase order already finalized")

	// ErrInvalidStateTransition is returned when an order status transition
	// does not follow the PENDING -> SUBMITTED -> {COMPLETED,FAILED} machine.
	ErrInvalidStateTransition = errors.New("invalid purchase order state transition")

	// ErrSubmissionFailed wraps a gateway-side submission failure. The order
	// is always persisted in whatever state it reached before propagating
	// this error — callers must not retry the same order automatically.
	ErrSubmissionFailed = errors.New("bet submission to gateway failed")

	// ErrPersistenceFailed is returned when the SUBMITTED status (before the
	// gateway call) or the COMPLETED status (after a successful gateway call)
	// could not be written to the store. A failed write of FAILED status is
	// logged, not returned. When the COMPLETED write fails, the order is left
	// in SUBMITTED and no automatic reconciliation is attempted — this is a
	// known, accepted gap.
	ErrPersistenceFailed = errors.New("failed to persist order state")
)

// Credentials / gateway errors
var (
	// ErrCredentialsNotFound is returned when no gateway credentials are on
	// file for the requested user.
	ErrCredentialsNotFound = errors.New("gateway credentials not found")

	// ErrGatewayUnauthorized is returned when the gateway rejects the
	// configured credentials.
	ErrGatewayUnauthorized = errors.New("gateway rejected credentials")
)

// IPAT wire-format errors
var (
	// ErrInvalidRaceID is returned when a race_id does not match the
	// expected 12-character YYYYMMDDVVRR shape.
	ErrInvalidRaceID = errors.New("invalid race_id format")

	// ErrInvalidRaceNumber is returned when a race number falls outside 1-12.
	ErrInvalidRaceNumber = errors.New("race number out of range (1-12)")

	// ErrInvalidAmount is returned when a bet amount is not a positive
	// multiple of 100.
	ErrInvalidAmount = errors.New("bet amount must be a positive multiple of 100")

	// ErrUnknownVenueCode is returned when a course code has no known venue
	// mapping.
	ErrUnknownVenueCode = errors.New("unknown venue code")

	// ErrUnknownBetType is returned when a BetProposal names a bet type the
	// IPAT converter does not recognize.
	ErrUnknownBetType = errors.New("unknown bet type")
)

// Schedule / orchestrator errors
var (
	// ErrScheduleAlreadyExists is returned by the schedule store when a
	// create-if-absent write loses the race — this is the expected,
	// idempotency-preserving outcome, not a failure.
	ErrScheduleAlreadyExists = errors.New("schedule already exists")
)

// Configuration errors
var (
	// ErrConfigurationError wraps any missing/invalid required configuration
	// value detected at startup.
	ErrConfigurationError = errors.New("configuration error")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrPredictionNotFound,
	ErrOrderNotFound,
	ErrCredentialsNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors representing a state conflict.
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrOrderAlreadyFinalized,
		ErrInvalidStateTransition,
		ErrScheduleAlreadyExists,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for gateway authentication/authorisation errors.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrGatewayUnauthorized)
}
