package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/geography"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

// RecordFetcher is implemented by *Fetcher. Label names the jurisdiction
// records of scope are published under.
type RecordFetcher interface {
	Fetch(ctx context.Context, year int, codes []string, scope geography.Scope) ([]RawRecord, error)
	Label(scope geography.Scope) string
}

// Request asks for a set of codes in one survey year.
type Request struct {
	Year  int
	Codes []string
}

// TaggedRecord is a raw record stamped with its survey year and the
// jurisdiction label it is published under.
type TaggedRecord struct {
	Year         int
	Jurisdiction string
	Fields       RawRecord
}

// Jurisdiction returns the label records of a scope are published under.
// County records are labeled with their state.
func Jurisdiction(scope geography.Scope, state geography.State) string {
	if scope == geography.ScopeNation {
		return geography.Nation
	}
	return state.Name
}

// Aggregate runs the county, state and nation fetches for every request, in
// that order, and returns all records. The first failed fetch stops the
// run with a *FetchError.
func Aggregate(ctx context.Context, f RecordFetcher, reqs []Request, log *zap.Logger) ([]TaggedRecord, error) {
	log = logging.OrNop(log)
	start := time.Now()

	var out []TaggedRecord
	for _, req := range reqs {
		for _, scope := range geography.Scopes {
			if err := ctx.Err(); err != nil {
				return nil, &FetchError{Year: req.Year, Scope: scope, Err: err}
			}
			recs, err := f.Fetch(ctx, req.Year, req.Codes, scope)
			if err != nil {
				return nil, &FetchError{Year: req.Year, Scope: scope, Err: err}
			}
			label := f.Label(scope)
			for _, rec := range recs {
				out = append(out, TaggedRecord{Year: req.Year, Jurisdiction: label, Fields: rec})
			}
			log.Debug("fetched scope",
				zap.Int("year", req.Year),
				zap.Stringer("scope", scope),
				zap.Int("records", len(recs)))
		}
	}

	logging.LogTransform(log, "aggregate", len(reqs), len(out), time.Since(start))
	return out, nil
}
