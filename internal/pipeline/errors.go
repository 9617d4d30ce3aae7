package pipeline

import (
	"errors"
	"fmt"

	"github.com/EmpoweredVote/acs-dash/internal/geography"
)

var (
	// ErrNoDataAvailable means no year in the probe range has published data.
	ErrNoDataAvailable = errors.New("pipeline: no ACS data available in year range")

	// ErrFetchFailure is matched by every *FetchError.
	ErrFetchFailure = errors.New("pipeline: fetch failed")

	// ErrUnexpectedRowCount is returned when a state or nation query does
	// not answer with exactly one row.
	ErrUnexpectedRowCount = errors.New("pipeline: unexpected row count")
)

// FetchError reports which year and scope failed during aggregation.
type FetchError struct {
	Year  int
	Scope geography.Scope
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pipeline: fetch %s for %d: %v", e.Scope, e.Year, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailure }
