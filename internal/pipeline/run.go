package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/catalog"
	"github.com/EmpoweredVote/acs-dash/internal/geography"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

// Sink publishes a finished table.
type Sink interface {
	Publish(ctx context.Context, t *Table) error
}

// YearResolver is implemented by *Resolver.
type YearResolver interface {
	Resolve(ctx context.Context) (int, error)
}

// Deps wires one refresh run.
type Deps struct {
	Resolver YearResolver
	Fetcher  RecordFetcher
	Catalog  *catalog.Catalog
	Targets  geography.TargetList
	Sink     Sink
	Log      *zap.Logger

	// IncludeRecent adds the recent-only catalog groups, requested for the
	// latest year only.
	IncludeRecent bool
}

// Result describes a run. On failure it holds whatever was known when the
// run stopped.
type Result struct {
	LatestYear int
	Years      []int
	Records    int
	Table      *Table
	Published  bool
	Duration   time.Duration
}

// Run resolves the year window, fetches every year and scope, normalizes
// the records and publishes the table. Nothing is published unless the
// whole table was built.
func Run(ctx context.Context, d Deps) (*Result, error) {
	log := logging.OrNop(d.Log)
	start := time.Now()
	res := &Result{}
	defer func() { res.Duration = time.Since(start) }()

	if d.Resolver == nil || d.Fetcher == nil || d.Catalog == nil || d.Sink == nil {
		return res, fmt.Errorf("pipeline: incomplete dependencies")
	}

	latest, err := d.Resolver.Resolve(ctx)
	if err != nil {
		return res, fmt.Errorf("resolve year: %w", err)
	}
	res.LatestYear = latest
	res.Years = YearWindow(latest)
	log.Info("year window", zap.Int("latest", latest), zap.Ints("years", res.Years))

	active := d.Catalog.Active(d.IncludeRecent)
	records, err := Aggregate(ctx, d.Fetcher, Requests(active, res.Years, d.IncludeRecent), log)
	if err != nil {
		return res, err
	}
	res.Records = len(records)

	n := Normalizer{Catalog: active, Targets: d.Targets, Log: log}
	table, err := n.Normalize(records)
	if err != nil {
		return res, fmt.Errorf("normalize: %w", err)
	}
	res.Table = table

	if err := d.Sink.Publish(ctx, table); err != nil {
		return res, fmt.Errorf("publish: %w", err)
	}
	res.Published = true
	log.Info("published table", zap.Int("rows", table.Len()), zap.Int("columns", len(table.Columns())))
	return res, nil
}

// Requests builds one request per year. Recent-only codes are requested for
// the last year only, when includeRecent is set.
func Requests(cat *catalog.Catalog, years []int, includeRecent bool) []Request {
	core := cat.CoreCodes()
	all := cat.Codes()
	reqs := make([]Request, 0, len(years))
	for i, y := range years {
		codes := core
		if includeRecent && i == len(years)-1 {
			codes = all
		}
		reqs = append(reqs, Request{Year: y, Codes: codes})
	}
	return reqs
}
