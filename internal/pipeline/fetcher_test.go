package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/acs-dash/internal/census"
	"github.com/EmpoweredVote/acs-dash/internal/geography"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

type call struct {
	scope  string
	year   int
	state  string
	fields []string
}

type fakeSource struct {
	counties []census.Row
	state    []census.Row
	nation   []census.Row
	err      error
	calls    []call
}

func (s *fakeSource) Counties(_ context.Context, year int, fips string, fields []string) ([]census.Row, error) {
	s.calls = append(s.calls, call{"county", year, fips, fields})
	return s.counties, s.err
}

func (s *fakeSource) State(_ context.Context, year int, fips string, fields []string) ([]census.Row, error) {
	s.calls = append(s.calls, call{"state", year, fips, fields})
	return s.state, s.err
}

func (s *fakeSource) Nation(_ context.Context, year int, fields []string) ([]census.Row, error) {
	s.calls = append(s.calls, call{"nation", year, "", fields})
	return s.nation, s.err
}

func TestFetchCounties(t *testing.T) {
	src := &fakeSource{counties: []census.Row{
		{"NAME": "Norfolk city, Virginia", "B01003_001E": "238005", "B25064_001E": "N", "state": "51", "county": "710"},
		{"NAME": "Accomack County, Virginia", "B01003_001E": "33413", "state": "51", "county": "001"},
	}}
	f := pipeline.NewFetcher(src, nil)

	recs, err := f.Fetch(context.Background(), 2022, []string{"B01003_001E", "B25064_001E"}, geography.ScopeCounty)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.Len(t, src.calls, 1)
	assert.Equal(t, call{"county", 2022, "51", []string{"NAME", "B01003_001E", "B25064_001E"}}, src.calls[0])

	assert.Equal(t, 238005.0, recs[0]["B01003_001E"])
	assert.Equal(t, "N", recs[0]["B25064_001E"])
	assert.Equal(t, "710", recs[0]["county"])
	assert.Equal(t, "Norfolk city, Virginia", recs[0][pipeline.NameField])

	_, ok := recs[1]["B25064_001E"]
	assert.False(t, ok, "null cells stay absent")
}

func TestFetchKeepsNonFiniteTextAsString(t *testing.T) {
	src := &fakeSource{counties: []census.Row{
		{"NAME": "A", "B01003_001E": "NaN", "state": "51", "county": "001"},
		{"NAME": "B", "B01003_001E": "Inf", "state": "51", "county": "003"},
		{"NAME": "C", "B01003_001E": "-infinity", "state": "51", "county": "005"},
		{"NAME": "D", "B01003_001E": "1e3", "state": "51", "county": "007"},
	}}
	f := pipeline.NewFetcher(src, nil)

	recs, err := f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeCounty)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "NaN", recs[0]["B01003_001E"])
	assert.Equal(t, "Inf", recs[1]["B01003_001E"])
	assert.Equal(t, "-infinity", recs[2]["B01003_001E"])
	assert.Equal(t, 1000.0, recs[3]["B01003_001E"])
}

func TestFetchStateAndNationSynthesizeName(t *testing.T) {
	src := &fakeSource{
		state:  []census.Row{{"B01003_001E": "8624511", "state": "51"}},
		nation: []census.Row{{"B01003_001E": "331097593", "us": "1"}},
	}
	f := pipeline.NewFetcher(src, nil)

	recs, err := f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeState)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Virginia", recs[0][pipeline.NameField])
	assert.Equal(t, 8624511.0, recs[0]["B01003_001E"])

	recs, err = f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeNation)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "United States", recs[0][pipeline.NameField])

	assert.Equal(t, []string{"B01003_001E"}, src.calls[0].fields, "NAME is synthesized, not requested")
	assert.Equal(t, "51", src.calls[0].state)
}

func TestFetchRowCount(t *testing.T) {
	tests := []struct {
		name string
		rows []census.Row
	}{
		{"none", nil},
		{"two", []census.Row{{"B01003_001E": "1"}, {"B01003_001E": "2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := pipeline.NewFetcher(&fakeSource{state: tt.rows, nation: tt.rows}, nil)
			_, err := f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeState)
			assert.ErrorIs(t, err, pipeline.ErrUnexpectedRowCount)
			_, err = f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeNation)
			assert.ErrorIs(t, err, pipeline.ErrUnexpectedRowCount)
		})
	}
}

func TestFetchEmptyCountiesIsNotAnError(t *testing.T) {
	f := pipeline.NewFetcher(&fakeSource{}, nil)
	recs, err := f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeCounty)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFetchReturnsUpstreamError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{err: boom}
	f := pipeline.NewFetcher(src, nil)

	_, err := f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.ScopeNation)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, src.calls, 1, "no retries")

	_, err = f.Fetch(context.Background(), 2022, nil, geography.ScopeNation)
	assert.Error(t, err)
	_, err = f.Fetch(context.Background(), 2022, []string{"B01003_001E"}, geography.Scope(9))
	assert.Error(t, err)
}
