// Package sheets publishes result tables to a Google spreadsheet, replacing
// the contents of its first worksheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/EmpoweredVote/acs-dash/internal/logging"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// DefaultSpreadsheet is the title of the dashboard spreadsheet.
const DefaultSpreadsheet = "dash_demo"

var (
	ErrSpreadsheetNotFound = errors.New("sheets: spreadsheet not found")
	ErrNoWorksheet         = errors.New("sheets: spreadsheet has no worksheets")
)

// Scopes are the OAuth scopes the service account needs.
var Scopes = []string{
	gsheets.SpreadsheetsScope,
	drive.DriveMetadataReadonlyScope,
}

// Publisher overwrites the first worksheet of a spreadsheet found by title.
type Publisher struct {
	sheets *gsheets.Service
	drive  *drive.Service
	title  string
	log    *zap.Logger
}

// New authenticates with service-account JSON and returns a Publisher for the
// spreadsheet with the given title.
func New(ctx context.Context, credentialsJSON []byte, title string, log *zap.Logger) (*Publisher, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("sheets: credentials: %w", err)
	}
	sheetsSvc, err := gsheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheets: sheets service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheets: drive service: %w", err)
	}
	return NewFromServices(sheetsSvc, driveSvc, title, log), nil
}

// NewFromServices wraps already configured API services.
func NewFromServices(sheetsSvc *gsheets.Service, driveSvc *drive.Service, title string, log *zap.Logger) *Publisher {
	if title == "" {
		title = DefaultSpreadsheet
	}
	return &Publisher{
		sheets: sheetsSvc,
		drive:  driveSvc,
		title:  title,
		log:    logging.OrNop(log),
	}
}

// Publish writes t from A1 of the first worksheet, then clears every cell
// outside it.
func (p *Publisher) Publish(ctx context.Context, t *pipeline.Table) error {
	start := time.Now()

	id, err := p.findSpreadsheet(ctx)
	if err != nil {
		return err
	}

	ws, err := p.firstWorksheet(ctx, id)
	if err != nil {
		return err
	}

	values := Values(t)
	rows, cols := len(values), len(t.Columns())

	gridRows, gridCols, err := p.ensureSize(ctx, id, ws, rows, cols)
	if err != nil {
		return err
	}

	// Write before clearing so a failed write leaves the previous table intact.
	rng := Range(ws.Title, rows, cols)
	resp, err := p.sheets.Spreadsheets.Values.
		Update(id, rng, &gsheets.ValueRange{Range: rng, MajorDimension: "ROWS", Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		logging.LogError(p.log, "sheets", "update", err)
		return fmt.Errorf("sheets: update %s: %w", rng, err)
	}

	if stale := Remainder(ws.Title, gridRows, gridCols, rows, cols); len(stale) > 0 {
		if _, err := p.sheets.Spreadsheets.Values.
			BatchClear(id, &gsheets.BatchClearValuesRequest{Ranges: stale}).
			Context(ctx).Do(); err != nil {
			logging.LogError(p.log, "sheets", "clear", err)
			return fmt.Errorf("sheets: clear outside %s: %w", rng, err)
		}
	}

	p.log.Info("worksheet updated",
		zap.String("spreadsheet", p.title),
		zap.String("worksheet", ws.Title),
		zap.String("range", rng),
		zap.Int64("updated_rows", resp.UpdatedRows),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

// findSpreadsheet returns the id of the most recently modified spreadsheet
// titled p.title.
func (p *Publisher) findSpreadsheet(ctx context.Context) (string, error) {
	logging.LogRequest(p.log, "drive", "GET", "files", zap.String("title", p.title))
	list, err := p.drive.Files.List().
		Q(driveQuery(p.title)).
		OrderBy("modifiedTime desc").
		Fields("files(id, name, modifiedTime)").
		PageSize(10).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		logging.LogError(p.log, "drive", "list", err)
		return "", fmt.Errorf("sheets: find %q: %w", p.title, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: %q", ErrSpreadsheetNotFound, p.title)
	}
	if len(list.Files) > 1 {
		p.log.Warn("several spreadsheets share a title, using the newest",
			zap.String("title", p.title),
			zap.Int("matches", len(list.Files)),
			zap.String("id", list.Files[0].Id))
	}
	return list.Files[0].Id, nil
}

type worksheet struct {
	ID    int64
	Title string
	Rows  int
	Cols  int
}

func (p *Publisher) firstWorksheet(ctx context.Context, id string) (worksheet, error) {
	ss, err := p.sheets.Spreadsheets.Get(id).
		Fields("sheets.properties").
		Context(ctx).Do()
	if err != nil {
		logging.LogError(p.log, "sheets", "get", err)
		return worksheet{}, fmt.Errorf("sheets: get spreadsheet: %w", err)
	}

	var first *gsheets.SheetProperties
	for _, s := range ss.Sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		if first == nil || s.Properties.Index < first.Index {
			first = s.Properties
		}
	}
	if first == nil {
		return worksheet{}, ErrNoWorksheet
	}

	ws := worksheet{ID: first.SheetId, Title: first.Title}
	if g := first.GridProperties; g != nil {
		ws.Rows, ws.Cols = int(g.RowCount), int(g.ColumnCount)
	}
	return ws, nil
}

func (p *Publisher) ensureSize(ctx context.Context, id string, ws worksheet, rows, cols int) (int, int, error) {
	newRows, newCols, grow := Grow(ws.Rows, ws.Cols, rows, cols)
	if !grow {
		return newRows, newCols, nil
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			UpdateSheetProperties: &gsheets.UpdateSheetPropertiesRequest{
				Properties: &gsheets.SheetProperties{
					SheetId: ws.ID,
					GridProperties: &gsheets.GridProperties{
						RowCount:    int64(newRows),
						ColumnCount: int64(newCols),
					},
					// Sheet id 0 is valid and would be dropped as empty.
					ForceSendFields: []string{"SheetId"},
				},
				Fields: "gridProperties.rowCount,gridProperties.columnCount",
			},
		}},
	}
	if _, err := p.sheets.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do(); err != nil {
		logging.LogError(p.log, "sheets", "resize", err)
		return 0, 0, fmt.Errorf("sheets: resize %q: %w", ws.Title, err)
	}
	p.log.Debug("worksheet resized",
		zap.String("worksheet", ws.Title),
		zap.Int("rows", newRows),
		zap.Int("cols", newCols))
	return newRows, newCols, nil
}
