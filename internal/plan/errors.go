package plan

import apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"

// The planning sentinels live in pkg/errors so the HTTP layer maps them
// without importing this package.
var (
	// ErrInvalidTarget is returned by callers that reject a non-positive
	// group count before invoking Search.
	ErrInvalidTarget = apperrors.ErrInvalidTarget

	// ErrEmptyInput means Search was handed no units at all.
	ErrEmptyInput = apperrors.ErrEmptyInput

	// ErrPartitionUnavailable means Search never recorded a candidate.
	ErrPartitionUnavailable = apperrors.ErrPartitionUnavailable
)
