package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/census"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

// ProxyVariable is the variable queried when probing whether a year exists.
const ProxyVariable = "B01003_001E"

// WindowSize is the number of survey years published.
const WindowSize = 10

// DefaultMinYear is the oldest year probed when none is configured.
const DefaultMinYear = 2010

// ProbeStatus classifies the answer for one candidate year.
type ProbeStatus int

const (
	ProbeFound ProbeStatus = iota + 1
	ProbeNotFound
	ProbeTransient
	ProbeFatal
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbeFound:
		return "found"
	case ProbeNotFound:
		return "not_found"
	case ProbeTransient:
		return "transient"
	case ProbeFatal:
		return "fatal"
	}
	return fmt.Sprintf("probe(%d)", int(s))
}

// ProbeResult is the outcome of probing one year. Err is set for the
// Transient and Fatal statuses.
type ProbeResult struct {
	Status ProbeStatus
	Err    error
}

// Prober checks whether a survey year has published data.
type Prober interface {
	Probe(ctx context.Context, year int) ProbeResult
}

// NationSource is the subset of the upstream client used for probing.
type NationSource interface {
	Nation(ctx context.Context, year int, fields []string) ([]census.Row, error)
}

// CensusProber probes a year with a national query for ProxyVariable.
type CensusProber struct {
	Source NationSource
}

func (p CensusProber) Probe(ctx context.Context, year int) ProbeResult {
	rows, err := p.Source.Nation(ctx, year, []string{ProxyVariable})
	switch {
	case err == nil && len(rows) > 0:
		return ProbeResult{Status: ProbeFound}
	case err == nil:
		return ProbeResult{Status: ProbeNotFound}
	case census.IsNotFound(err):
		return ProbeResult{Status: ProbeNotFound, Err: err}
	case errors.Is(err, census.ErrInvalidKey),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ProbeResult{Status: ProbeFatal, Err: err}
	default:
		return ProbeResult{Status: ProbeTransient, Err: err}
	}
}

// Resolver finds the most recent survey year with published data.
type Resolver struct {
	Prober  Prober
	MinYear int
	// MaxYear is the first year probed. Zero means the current year.
	MaxYear int
	Log     *zap.Logger

	now func() time.Time
}

// Resolve scans from MaxYear down to MinYear and returns the first year the
// prober reports as found.
func (r *Resolver) Resolve(ctx context.Context) (int, error) {
	log := logging.OrNop(r.Log)

	maxYear := r.MaxYear
	if maxYear == 0 {
		now := time.Now
		if r.now != nil {
			now = r.now
		}
		maxYear = now().Year()
	}
	minYear := r.MinYear
	if minYear == 0 {
		minYear = DefaultMinYear
	}

	for year := maxYear; year >= minYear; year-- {
		res := r.Prober.Probe(ctx, year)
		switch res.Status {
		case ProbeFound:
			log.Info("resolved latest year", zap.Int("year", year))
			return year, nil
		case ProbeNotFound:
			log.Debug("year not published", zap.Int("year", year))
			continue
		case ProbeFatal:
			return 0, fmt.Errorf("probe %d: %w", year, res.Err)
		default:
			log.Warn("year probe failed", zap.Int("year", year), zap.Error(res.Err))
			continue
		}
	}
	return 0, fmt.Errorf("%w: %d..%d", ErrNoDataAvailable, minYear, maxYear)
}

// YearWindow returns the WindowSize years ending at latest, ascending.
func YearWindow(latest int) []int {
	years := make([]int, WindowSize)
	for i := range years {
		years[i] = latest - WindowSize + 1 + i
	}
	return years
}
