package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/acs-dash/internal/census"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

type fakeProber struct {
	results map[int]pipeline.ProbeResult
	calls   []int
}

func (p *fakeProber) Probe(_ context.Context, year int) pipeline.ProbeResult {
	p.calls = append(p.calls, year)
	if r, ok := p.results[year]; ok {
		return r
	}
	return pipeline.ProbeResult{Status: pipeline.ProbeNotFound}
}

func TestResolveSkipsFailedYears(t *testing.T) {
	p := &fakeProber{results: map[int]pipeline.ProbeResult{
		2024: {Status: pipeline.ProbeTransient, Err: errors.New("timeout")},
		2023: {Status: pipeline.ProbeNotFound},
		2022: {Status: pipeline.ProbeFound},
	}}
	r := &pipeline.Resolver{Prober: p, MinYear: 2010, MaxYear: 2024}

	year, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2022, year)
	assert.Equal(t, []int{2024, 2023, 2022}, p.calls)

	assert.Equal(t, []int{2013, 2014, 2015, 2016, 2017, 2018, 2019, 2020, 2021, 2022}, pipeline.YearWindow(year))
}

func TestResolveReturnsLargestFoundYear(t *testing.T) {
	tests := []struct {
		name  string
		found []int
		want  int
	}{
		{"only min", []int{2010}, 2010},
		{"only max", []int{2020}, 2020},
		{"several", []int{2012, 2015, 2018}, 2018},
		{"all", []int{2010, 2011, 2012, 2013, 2014, 2015, 2016, 2017, 2018, 2019, 2020}, 2020},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProber{results: map[int]pipeline.ProbeResult{}}
			for _, y := range tt.found {
				p.results[y] = pipeline.ProbeResult{Status: pipeline.ProbeFound}
			}
			r := &pipeline.Resolver{Prober: p, MinYear: 2010, MaxYear: 2020}
			year, err := r.Resolve(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, year)
		})
	}
}

func TestResolveNoData(t *testing.T) {
	p := &fakeProber{results: map[int]pipeline.ProbeResult{
		2012: {Status: pipeline.ProbeTransient, Err: errors.New("503")},
	}}
	r := &pipeline.Resolver{Prober: p, MinYear: 2010, MaxYear: 2012}

	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrNoDataAvailable)
	assert.Equal(t, []int{2012, 2011, 2010}, p.calls)
}

func TestResolveFatalAborts(t *testing.T) {
	p := &fakeProber{results: map[int]pipeline.ProbeResult{
		2024: {Status: pipeline.ProbeFatal, Err: census.ErrInvalidKey},
		2022: {Status: pipeline.ProbeFound},
	}}
	r := &pipeline.Resolver{Prober: p, MinYear: 2010, MaxYear: 2024}

	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, census.ErrInvalidKey)
	assert.NotErrorIs(t, err, pipeline.ErrNoDataAvailable)
	assert.Equal(t, []int{2024}, p.calls)
}

func TestYearWindowAlwaysTenYears(t *testing.T) {
	for latest := 2010; latest <= 2030; latest++ {
		w := pipeline.YearWindow(latest)
		require.Len(t, w, pipeline.WindowSize)
		assert.Equal(t, latest-9, w[0])
		assert.Equal(t, latest, w[len(w)-1])
		for i := 1; i < len(w); i++ {
			assert.Equal(t, w[i-1]+1, w[i])
		}
	}
}

type nationFunc func(ctx context.Context, year int, fields []string) ([]census.Row, error)

func (f nationFunc) Nation(ctx context.Context, year int, fields []string) ([]census.Row, error) {
	return f(ctx, year, fields)
}

func TestCensusProberClassifies(t *testing.T) {
	tests := []struct {
		name string
		rows []census.Row
		err  error
		want pipeline.ProbeStatus
	}{
		{"rows", []census.Row{{"B01003_001E": "331097593", "us": "1"}}, nil, pipeline.ProbeFound},
		{"empty", nil, nil, pipeline.ProbeNotFound},
		{"unpublished", nil, &census.APIError{StatusCode: 404}, pipeline.ProbeNotFound},
		{"bad key", nil, census.ErrInvalidKey, pipeline.ProbeFatal},
		{"canceled", nil, context.Canceled, pipeline.ProbeFatal},
		{"server error", nil, &census.APIError{StatusCode: 500}, pipeline.ProbeTransient},
		{"malformed", nil, census.ErrMalformed, pipeline.ProbeTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotFields []string
			p := pipeline.CensusProber{Source: nationFunc(func(_ context.Context, _ int, fields []string) ([]census.Row, error) {
				gotFields = fields
				return tt.rows, tt.err
			})}
			res := p.Probe(context.Background(), 2022)
			assert.Equal(t, tt.want, res.Status, res.Status.String())
			assert.Equal(t, []string{pipeline.ProxyVariable}, gotFields)
		})
	}
}
