package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/census"
	"github.com/EmpoweredVote/acs-dash/internal/geography"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

// NameField is the display-name column every record carries.
const NameField = "NAME"

// RawRecord is one geography's values keyed by variable code. Estimates are
// float64 when they parse, strings otherwise. Nulls are absent.
type RawRecord map[string]any

// Source is the upstream query surface, one method per geography scope.
type Source interface {
	Counties(ctx context.Context, year int, stateFIPS string, fields []string) ([]census.Row, error)
	State(ctx context.Context, year int, stateFIPS string, fields []string) ([]census.Row, error)
	Nation(ctx context.Context, year int, fields []string) ([]census.Row, error)
}

// Fetcher retrieves raw records for one year and scope.
type Fetcher struct {
	Source Source
	State  geography.State
	Log    *zap.Logger
}

// NewFetcher returns a Fetcher for Virginia.
func NewFetcher(src Source, log *zap.Logger) *Fetcher {
	return &Fetcher{Source: src, State: geography.Virginia, Log: log}
}

// Label returns the jurisdiction records of scope are published under.
func (f *Fetcher) Label(scope geography.Scope) string {
	return Jurisdiction(scope, f.State)
}

// Fetch queries codes for year at scope. County queries return every county
// in the state. State and nation queries must return exactly one row and get
// a synthesized NAME.
func (f *Fetcher) Fetch(ctx context.Context, year int, codes []string, scope geography.Scope) ([]RawRecord, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("pipeline: no codes to fetch")
	}
	start := time.Now()

	var (
		rows []census.Row
		err  error
		name string
	)
	switch scope {
	case geography.ScopeCounty:
		fields := append([]string{NameField}, codes...)
		rows, err = f.Source.Counties(ctx, year, f.State.FIPS, fields)
	case geography.ScopeState:
		rows, err = f.Source.State(ctx, year, f.State.FIPS, codes)
		name = f.State.Name
	case geography.ScopeNation:
		rows, err = f.Source.Nation(ctx, year, codes)
		name = geography.Nation
	default:
		return nil, fmt.Errorf("pipeline: unknown scope %s", scope)
	}
	if err != nil {
		return nil, err
	}
	if scope != geography.ScopeCounty && len(rows) != 1 {
		return nil, fmt.Errorf("%w: %s query for %d returned %d rows", ErrUnexpectedRowCount, scope, year, len(rows))
	}

	isCode := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		isCode[c] = struct{}{}
	}

	records := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := make(RawRecord, len(row)+1)
		for k, v := range row {
			if _, ok := isCode[k]; ok {
				rec[k] = parseValue(v)
				continue
			}
			rec[k] = v
		}
		if name != "" {
			rec[NameField] = name
		}
		records = append(records, rec)
	}

	logging.LogTransform(logging.OrNop(f.Log), "fetcher", len(rows), len(records), time.Since(start),
		zap.Int("year", year), zap.Stringer("scope", scope))
	return records, nil
}

func parseValue(s string) any {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	return v
}
