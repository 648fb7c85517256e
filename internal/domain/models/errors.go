package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrMissingIndicator = errors.New("missing indicator")
	ErrUpstreamFetch    = errors.New("upstream fetch failed")
	ErrJobNotFound      = errors.New("job not found")
	ErrNoData           = errors.New("no data")
	ErrInvalidTimeFrame = errors.New("invalid time frame")
	ErrInvalidRequest   = errors.New("invalid request")
)

// InsufficientDataError is returned when a series is too short to compute indicators.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d points, need %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// MissingIndicatorError reports a criterion whose required indicator column was never computed.
type MissingIndicatorError struct {
	Criterion string
	Indicator string
}

func (e *MissingIndicatorError) Error() string {
	return fmt.Sprintf("criterion %s: indicator %s not computed", e.Criterion, e.Indicator)
}

func (e *MissingIndicatorError) Is(target error) bool { return target == ErrMissingIndicator }

// UpstreamFetchError wraps a failure from an external data provider.
type UpstreamFetchError struct {
	Provider string
	Symbol   string
	Err      error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("%s fetch %s: %v", e.Provider, e.Symbol, e.Err)
}

func (e *UpstreamFetchError) Is(target error) bool { return target == ErrUpstreamFetch }

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// JobNotFoundError is returned when no record exists for a job id.
type JobNotFoundError struct {
	JobType string
	JobID   string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("%s job %s not found", e.JobType, e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool { return target == ErrJobNotFound }

// ErrorKind classifies an error for metrics labels and per-symbol results.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrMissingIndicator):
		return "missing_indicator"
	case errors.Is(err, ErrUpstreamFetch):
		return "upstream_fetch"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrJobNotFound):
		return "job_not_found"
	case errors.Is(err, ErrInvalidTimeFrame), errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}
