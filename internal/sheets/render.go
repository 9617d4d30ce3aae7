package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

// DateLayout is how the year column is written.
const DateLayout = "2006-01-02"

// Values renders the header row followed by every table row.
func Values(t *pipeline.Table) [][]interface{} {
	out := make([][]interface{}, 0, t.Len()+1)

	header := make([]interface{}, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	out = append(out, header)

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = Cell(v)
		}
		out = append(out, cells)
	}
	return out
}

// Cell converts a table value to what the Sheets API accepts. Nil is an
// empty cell.
func Cell(v any) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64, float32, int, int64, int32:
		return x
	case bool:
		return x
	case time.Time:
		return x.Format(DateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// ColumnLetter returns the A1 column name for a 1-based index: 1 is A, 27 is AA.
func ColumnLetter(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// QuoteTitle quotes a worksheet title for use in an A1 range.
func QuoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Range returns the A1 range covering rows x cols from the top-left cell.
func Range(title string, rows, cols int) string {
	if rows < 1 || cols < 1 {
		return QuoteTitle(title) + "!A1"
	}
	return fmt.Sprintf("%s!A1:%s%d", QuoteTitle(title), ColumnLetter(cols), rows)
}

// Remainder returns the A1 ranges of a gridRows x gridCols worksheet that lie
// outside the rows x cols block at A1: the rows below it across the full
// width, and the columns to its right.
func Remainder(title string, gridRows, gridCols, rows, cols int) []string {
	var out []string
	q := QuoteTitle(title)
	if gridRows > rows && gridCols > 0 {
		out = append(out, fmt.Sprintf("%s!A%d:%s%d", q, rows+1, ColumnLetter(gridCols), gridRows))
	}
	if gridCols > cols && rows > 0 {
		out = append(out, fmt.Sprintf("%s!%s1:%s%d", q, ColumnLetter(cols+1), ColumnLetter(gridCols), rows))
	}
	return out
}

// Grow returns the grid size needed to hold rows x cols without shrinking
// the current one, and whether a resize is needed.
func Grow(curRows, curCols, rows, cols int) (int, int, bool) {
	newRows, newCols := curRows, curCols
	if rows > newRows {
		newRows = rows
	}
	if cols > newCols {
		newCols = cols
	}
	return newRows, newCols, newRows != curRows || newCols != curCols
}

func driveQuery(title string) string {
	escaped := strings.ReplaceAll(title, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escaped, spreadsheetMimeType)
}
