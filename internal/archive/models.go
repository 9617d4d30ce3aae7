package archive

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Run statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JSONB wraps json.RawMessage with Scanner/Valuer for GORM JSONB columns.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("unsupported type: %T", value)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return json.RawMessage(j).MarshalJSON()
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSONB: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// Run is one refresh attempt.
type Run struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Status      string         `gorm:"not null;index" json:"status"`
	Spreadsheet string         `gorm:"not null" json:"spreadsheet"`
	LatestYear  int            `json:"latest_year,omitempty"`
	Years       pq.Int64Array  `gorm:"type:bigint[]" json:"years"`
	Columns     pq.StringArray `gorm:"type:text[]" json:"columns"`
	RowCount    int            `gorm:"default:0" json:"row_count"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `gorm:"not null;index" json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

func (Run) TableName() string { return "acs.runs" }

// SnapshotRow is one published table row.
type SnapshotRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID        uuid.UUID `gorm:"type:uuid;not null;index" json:"run_id"`
	Position     int       `gorm:"not null" json:"position"`
	Name         string    `gorm:"not null;index" json:"name"`
	Year         int       `gorm:"not null;index" json:"year"`
	Jurisdiction string    `gorm:"not null" json:"jurisdiction"`
	Cells        JSONB     `gorm:"type:jsonb;not null" json:"cells"`
}

func (SnapshotRow) TableName() string { return "acs.snapshot_rows" }
