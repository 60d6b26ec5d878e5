package core

import "errors"

// Sentinel errors returned by stores and machines. Callers are expected to
// branch with errors.Is rather than matching message text.
var (
	// ErrNotFound signals an absent key, cached plan or session. It is a
	// normal miss, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrNoData signals that too few history samples exist to derive a
	// learned multiplier (fewer than MinCategorySamples).
	ErrNoData = errors.New("not enough history data")

	// ErrSessionActive rejects starting an accountability session while one
	// is already running.
	ErrSessionActive = errors.New("session already active")

	// ErrNoActiveSession rejects pause/end when no session is running.
	ErrNoActiveSession = errors.New("no active session")
)

// MinCategorySamples is the minimum number of qualifying history records
// required before a learned per-category multiplier is trusted over the
// generic heuristic.
const MinCategorySamples = 3
