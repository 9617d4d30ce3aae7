// Package status serves a read-only view of archived refresh runs.
package status

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/archive"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
	"github.com/EmpoweredVote/acs-dash/internal/sheets"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// RunReader is implemented by *archive.Store.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]archive.Run, error)
	LatestRun(ctx context.Context) (*archive.Run, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*pipeline.Table, error)
}

type handlers struct {
	store RunReader
	log   *zap.Logger
}

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func (h handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	start := time.Now()
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		logging.LogError(h.log, "status", "list runs", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	addServerTiming(w, "db", time.Since(start))
	if runs == nil {
		runs = []archive.Run{}
	}
	writeJSON(w, runs)
}

func (h handlers) latestRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	run, err := h.store.LatestRun(r.Context())
	if errors.Is(err, archive.ErrRunNotFound) {
		http.Error(w, "No completed runs", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.LogError(h.log, "status", "latest run", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	addServerTiming(w, "db", time.Since(start))
	writeJSON(w, run)
}

func (h handlers) runTable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	start := time.Now()
	table, err := h.store.Snapshot(r.Context(), id)
	if errors.Is(err, archive.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.LogError(h.log, "status", "snapshot", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	addServerTiming(w, "db", time.Since(start))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="acs-%s.csv"`, id))
	if err := WriteCSV(w, table); err != nil {
		logging.LogError(h.log, "status", "write csv", err)
	}
}

// WriteCSV writes the table with a header row, formatting cells the way the
// spreadsheet shows them.
func WriteCSV(w io.Writer, t *pipeline.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns()))
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			rec[j] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch x := sheets.Cell(v).(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func addServerTiming(w http.ResponseWriter, name string, d time.Duration) {
	w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.1f", name, float64(d.Microseconds())/1000))
}
