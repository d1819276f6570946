package timeseries

import (
	"errors"

	"EconDash/internal/domain/models"
)

var (
	// ErrNoOverlap means the inputs share no common date range.
	ErrNoOverlap = errors.New("series have no overlapping date range")
	// ErrInvalidRange means a caller range is reversed or selects nothing.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInsufficientData means there are too few points for the computation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrUnorderedDates is returned by series construction.
	ErrUnorderedDates = models.ErrUnorderedDates
)
