// Package archive records refresh runs and the tables they published.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/acs-dash/internal/db"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

// Schema holds the archive tables.
const Schema = "acs"

const batchSize = 200

var ErrRunNotFound = errors.New("archive: run not found")

// Store reads and writes archived runs.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewStore(d *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: d, log: logging.OrNop(log), now: time.Now}
}

// Migrate creates the schema and tables.
func (s *Store) Migrate(ctx context.Context) error {
	d := s.db.WithContext(ctx)
	if err := db.EnsureSchema(d, Schema); err != nil {
		return fmt.Errorf("archive: schema: %w", err)
	}
	if err := d.AutoMigrate(&Run{}, &SnapshotRow{}); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// StartRun records a new run in the started state.
func (s *Store) StartRun(ctx context.Context, spreadsheet string) (*Run, error) {
	run := &Run{
		ID:          uuid.New(),
		Status:      StatusStarted,
		Spreadsheet: spreadsheet,
		StartedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("archive: start run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run completed or failed from its pipeline result.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, res *pipeline.Result, runErr error) error {
	updates := FinishUpdates(res, runErr, s.now().UTC())
	tx := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("archive: finish run: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// FinishUpdates returns the column updates that close a run.
func FinishUpdates(res *pipeline.Result, runErr error, at time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"status":      StatusCompleted,
		"finished_at": at,
		"error":       "",
	}
	if runErr != nil {
		updates["status"] = StatusFailed
		updates["error"] = runErr.Error()
	}
	if res != nil {
		updates["latest_year"] = res.LatestYear
		years := make(pq.Int64Array, 0, len(res.Years))
		for _, y := range res.Years {
			years = append(years, int64(y))
		}
		updates["years"] = years
		if res.Table != nil {
			updates["columns"] = pq.StringArray(res.Table.Columns())
			updates["row_count"] = res.Table.Len()
		}
	}
	return updates
}

// SaveSnapshot replaces the archived rows of a run with t.
func (s *Store) SaveSnapshot(ctx context.Context, runID uuid.UUID, t *pipeline.Table) error {
	start := time.Now()
	rows, err := BuildSnapshot(runID, t)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&SnapshotRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("archive: save snapshot: %w", err)
	}
	logging.LogUpsert(s.log, "archive", len(rows), time.Since(start))
	return nil
}

// BuildSnapshot converts a table to archive rows. Row ids are derived from
// the run id, NAME and year, so saving the same table twice yields the same
// ids.
func BuildSnapshot(runID uuid.UUID, t *pipeline.Table) ([]SnapshotRow, error) {
	rows := make([]SnapshotRow, 0, t.Len())
	seen := make(map[uuid.UUID]struct{}, t.Len())
	for i := 0; i < t.Len(); i++ {
		cells, err := json.Marshal(t.Record(i))
		if err != nil {
			return nil, fmt.Errorf("archive: encode row %d: %w", i, err)
		}
		name, year := t.Name(i), t.Year(i)
		id := RowID(runID, name, year)
		if _, dup := seen[id]; dup {
			id = dupRowID(runID, name, year, i)
		}
		seen[id] = struct{}{}

		rows = append(rows, SnapshotRow{
			ID:           id,
			RunID:        runID,
			Position:     i,
			Name:         name,
			Year:         year,
			Jurisdiction: t.Jurisdiction(i),
			Cells:        JSONB(cells),
		})
	}
	return rows, nil
}

// DefaultListLimit is used when ListRuns is given a non-positive limit.
const DefaultListLimit = 20

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var runs []Run
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent completed run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusCompleted).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: latest run: %w", err)
	}
	return &run, nil
}

// Run returns one run by id.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get run: %w", err)
	}
	return &run, nil
}

// Snapshot rebuilds the table a run published.
func (s *Store) Snapshot(ctx context.Context, id uuid.UUID) (*pipeline.Table, error) {
	run, err := s.Run(ctx, id)
	if err != nil {
		return nil, err
	}
	var rows []SnapshotRow
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", id).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("archive: snapshot rows: %w", err)
	}
	return RestoreTable(run.Columns, rows)
}

// RestoreTable is the inverse of BuildSnapshot for the given column order.
func RestoreTable(columns []string, rows []SnapshotRow) (*pipeline.Table, error) {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		var cells map[string]any
		if err := json.Unmarshal(r.Cells, &cells); err != nil {
			return nil, fmt.Errorf("archive: decode row %s: %w", r.ID, err)
		}
		row := make([]any, len(columns))
		for i, c := range columns {
			if c == pipeline.YearField {
				row[i] = time.Date(r.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
				continue
			}
			row[i] = cells[c]
		}
		out = append(out, row)
	}
	return pipeline.NewTable(columns, out)
}
