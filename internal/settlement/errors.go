package settlement

import "errors"

// The engine's failure taxonomy. Every outcome is a value-level error; the
// engine never substitutes a guessed percentage or a zero amount for missing
// configuration.
var (
	// ErrAssetNotFound means the asset has no capital account on record.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrNotPartnershipAsset means the asset exists but is not currently
	// configured as shared (no partnership terms).
	ErrNotPartnershipAsset = errors.New("asset is not in partnership")

	// ErrInvalidAmount means the submitted amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrConcurrentModification means conflicting settlements kept colliding
	// on the same asset past the retry budget. The event was not applied and
	// may be resubmitted.
	ErrConcurrentModification = errors.New("concurrent settlement conflict")

	// ErrPersistenceFailure means the store could not complete an atomic
	// commit. The engine does not retry these; recomputation is always safe,
	// so the caller decides.
	ErrPersistenceFailure = errors.New("persistence failure")
)
