package pipeline

import (
	"fmt"
	"time"
)

const (
	// YearField holds the survey year as a time.Time on January 1.
	YearField = "year"
	// StateField holds the jurisdiction label.
	StateField = "state"
)

// Table is the published result: ordered columns and rows of values. A nil
// cell is a missing value. Tables are not modified after construction.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// NewTable builds a table. Every row must have one cell per column and
// column names must be unique.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]any, 0, len(rows)),
	}
	for i, c := range columns {
		if _, ok := t.index[c]; ok {
			return nil, fmt.Errorf("pipeline: duplicate column %q", c)
		}
		t.index[c] = i
	}
	for n, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("pipeline: row %d has %d cells, want %d", n, len(r), len(columns))
		}
		t.rows = append(t.rows, append([]any(nil), r...))
	}
	return t, nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []any { return append([]any(nil), t.rows[i]...) }

// Value returns the cell of row i in column col.
func (t *Table) Value(i int, col string) (any, bool) {
	j, ok := t.index[col]
	if !ok {
		return nil, false
	}
	return t.rows[i][j], true
}

// Record returns row i keyed by column.
func (t *Table) Record(i int) map[string]any {
	out := make(map[string]any, len(t.columns))
	for j, c := range t.columns {
		out[c] = t.rows[i][j]
	}
	return out
}

// Name returns the NAME cell of row i, or "".
func (t *Table) Name(i int) string {
	v, _ := t.Value(i, NameField)
	s, _ := v.(string)
	return s
}

// Year returns the survey year of row i, or 0.
func (t *Table) Year(i int) int {
	v, _ := t.Value(i, YearField)
	if ts, ok := v.(time.Time); ok {
		return ts.Year()
	}
	return 0
}

// Jurisdiction returns the state cell of row i, or "".
func (t *Table) Jurisdiction(i int) string {
	v, _ := t.Value(i, StateField)
	s, _ := v.(string)
	return s
}
