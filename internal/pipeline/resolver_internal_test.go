package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type yearSet map[int]bool

func (s yearSet) Probe(_ context.Context, year int) ProbeResult {
	if s[year] {
		return ProbeResult{Status: ProbeFound}
	}
	return ProbeResult{Status: ProbeNotFound}
}

func TestResolveDefaultsToCurrentYear(t *testing.T) {
	r := &Resolver{
		Prober: yearSet{2026: true, 2025: true},
		now:    func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) },
	}
	year, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
}

func TestResolveDefaultMinYear(t *testing.T) {
	r := &Resolver{Prober: yearSet{2009: true}, MaxYear: 2012}
	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNoDataAvailable)
}
