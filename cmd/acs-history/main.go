// Command acs-history lists archived refresh runs.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

var (
	dsn    = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	limit  = flag.Int("limit", 20, "Number of runs to show")
	status = flag.String("status", "", "Only show runs with this status (started, completed, failed)")
)

type runRow struct {
	ID          string
	Status      string
	Spreadsheet string
	LatestYear  sql.NullInt64
	Years       pq.Int64Array
	RowCount    int
	Error       sql.NullString
	StartedAt   time.Time
	FinishedAt  sql.NullTime
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}
	if *limit < 1 {
		fatalf("--limit must be positive")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runs, err := listRuns(ctx, db, *status, *limit)
	if err != nil {
		fatalf("query: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs archived.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tLATEST\tWINDOW\tROWS\tDURATION\tID\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			latest(r),
			window(r.Years),
			r.RowCount,
			duration(r),
			r.ID,
			truncate(r.Error.String, 60))
	}
	_ = tw.Flush()
}

func listRuns(ctx context.Context, db *sql.DB, status string, limit int) ([]runRow, error) {
	q := `
		SELECT id, status, spreadsheet, latest_year, years, row_count, error, started_at, finished_at
		FROM acs.runs
		WHERE ($1 = '' OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2`
	rows, err := db.QueryContext(ctx, q, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []runRow
	for rows.Next() {
		var r runRow
		if err := rows.Scan(&r.ID, &r.Status, &r.Spreadsheet, &r.LatestYear, &r.Years,
			&r.RowCount, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func latest(r runRow) string {
	if !r.LatestYear.Valid || r.LatestYear.Int64 == 0 {
		return "-"
	}
	return fmt.Sprint(r.LatestYear.Int64)
}

func window(years pq.Int64Array) string {
	if len(years) == 0 {
		return "-"
	}
	return fmt.Sprintf("%d..%d", years[0], years[len(years)-1])
}

func duration(r runRow) string {
	if !r.FinishedAt.Valid {
		return "-"
	}
	return r.FinishedAt.Time.Sub(r.StartedAt).Round(time.Second).String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", a...)
	os.Exit(1)
}
