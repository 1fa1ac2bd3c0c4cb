package cohort

import "errors"

var (
	// ErrEmptyInput means no order survived normalization.
	ErrEmptyInput = errors.New("no usable orders")
	// ErrEmptyScope means orders exist but no cohort matches the scope filter.
	ErrEmptyScope = errors.New("no cohorts in scope")
	// ErrDegenerateCohort is an internal invariant violation: a grid cohort with size 0.
	ErrDegenerateCohort = errors.New("cohort with zero users")
	// ErrInvalidParams rejects parameters before any computation.
	ErrInvalidParams = errors.New("invalid analysis parameters")
)
