package pipeline

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/catalog"
	"github.com/EmpoweredVote/acs-dash/internal/geography"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

// Normalizer turns tagged records into the published table.
type Normalizer struct {
	Catalog *catalog.Catalog
	Targets geography.TargetList
	Log     *zap.Logger
}

// Normalize is shorthand for a Normalizer without a logger.
func Normalize(records []TaggedRecord, cat *catalog.Catalog, targets geography.TargetList) (*Table, error) {
	n := Normalizer{Catalog: cat, Targets: targets}
	return n.Normalize(records)
}

// Normalize builds the table, renames codes to metric names, keeps target
// geographies, types the year column and projects to the published schema:
// NAME, catalog names in order, year, state.
func (n *Normalizer) Normalize(records []TaggedRecord) (*Table, error) {
	if n.Catalog == nil {
		return nil, fmt.Errorf("pipeline: normalize: nil catalog")
	}
	log := logging.OrNop(n.Log)
	start := time.Now()

	columns, rows := frame(records)

	renamed, sources := n.rename(columns)

	kept := rows[:0:0]
	nameAt := indexOf(columns, NameField)
	for _, r := range rows {
		if nameAt < 0 {
			break
		}
		name, _ := r[nameAt].(string)
		if n.Targets.Contains(name) {
			kept = append(kept, r)
		}
	}

	yearAt := indexOf(columns, YearField)
	for _, r := range kept {
		if y, ok := r[yearAt].(int); ok {
			r[yearAt] = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	schema := append([]string{NameField}, n.Catalog.Names()...)
	schema = append(schema, YearField, StateField)
	at := make(map[string]int, len(renamed))
	for i, c := range renamed {
		if _, ok := at[c]; !ok {
			at[c] = sources[i]
		}
	}

	var missing []string
	for _, c := range n.Catalog.Names() {
		if _, ok := at[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		log.Warn("missing catalog columns", zap.Strings("columns", missing))
	}

	out := make([][]any, 0, len(kept))
	for _, r := range kept {
		row := make([]any, len(schema))
		for i, c := range schema {
			if j, ok := at[c]; ok {
				row[i] = r[j]
			}
		}
		out = append(out, row)
	}

	t, err := NewTable(schema, out)
	if err != nil {
		return nil, err
	}
	logging.LogTransform(log, "normalize", len(records), t.Len(), time.Since(start))
	return t, nil
}

// frame lays records out as rows over the union of their keys, in first-seen
// order with each record's keys sorted, followed by year and state.
func frame(records []TaggedRecord) ([]string, [][]any) {
	var columns []string
	seen := map[string]int{}
	for _, rec := range records {
		keys := make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			if k == YearField || k == StateField {
				continue
			}
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = len(columns)
			columns = append(columns, k)
		}
	}
	columns = append(columns, YearField, StateField)

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(columns))
		for k, v := range rec.Fields {
			if j, ok := seen[k]; ok {
				row[j] = v
			}
		}
		row[len(columns)-2] = rec.Year
		row[len(columns)-1] = rec.Jurisdiction
		rows = append(rows, row)
	}
	return columns, rows
}

// rename maps every code column to each of its metric names. sources[i] is
// the frame column renamed[i] reads from.
func (n *Normalizer) rename(columns []string) (renamed []string, sources []int) {
	for i, c := range columns {
		names := n.Catalog.NamesFor(c)
		if len(names) == 0 {
			renamed = append(renamed, c)
			sources = append(sources, i)
			continue
		}
		for _, name := range names {
			renamed = append(renamed, name)
			sources = append(sources, i)
		}
	}
	return renamed, sources
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
