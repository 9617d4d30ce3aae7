package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

type fakeGoogle struct {
	mu       sync.Mutex
	files    string
	sheets   string
	ops      []string
	query    string
	resize   map[string]any
	update   map[string]any
	updateIn string
	cleared  []any

	failUpdate bool
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasPrefix(path, "/drive/v3/files"):
		f.ops = append(f.ops, "list")
		f.query = r.URL.Query().Get("q")
		io.WriteString(w, f.files)
	case strings.HasSuffix(path, ":batchUpdate"):
		f.ops = append(f.ops, "resize")
		_ = json.Unmarshal(body, &f.resize)
		io.WriteString(w, `{"spreadsheetId":"abc"}`)
	case strings.HasSuffix(path, ":batchClear"):
		f.ops = append(f.ops, "clear")
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		f.cleared, _ = req["ranges"].([]any)
		io.WriteString(w, `{"spreadsheetId":"abc"}`)
	case r.Method == http.MethodPut:
		f.ops = append(f.ops, "update")
		if f.failUpdate {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"code":500,"message":"backend error"}}`)
			return
		}
		f.updateIn = r.URL.Query().Get("valueInputOption")
		_ = json.Unmarshal(body, &f.update)
		io.WriteString(w, `{"spreadsheetId":"abc","updatedRows":3}`)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		f.ops = append(f.ops, "get:"+strings.TrimPrefix(path, "/v4/spreadsheets/"))
		io.WriteString(w, f.sheets)
	default:
		http.NotFound(w, r)
	}
}

func newTestPublisher(t *testing.T, f *fakeGoogle) *Publisher {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	sheetsSvc, err := gsheets.NewService(ctx,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	driveSvc, err := drive.NewService(ctx,
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewFromServices(sheetsSvc, driveSvc, "", nil)
}

func sampleTable(t *testing.T) *pipeline.Table {
	t.Helper()
	table, err := pipeline.NewTable(
		[]string{"NAME", "population", "year", "state"},
		[][]any{
			{"Virginia", 8624511.0, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), "Virginia"},
			{"United States", nil, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), "United States"},
		})
	require.NoError(t, err)
	return table
}

const twoFiles = `{"files":[
	{"id":"newest","name":"dash_demo","modifiedTime":"2024-05-01T00:00:00Z"},
	{"id":"older","name":"dash_demo","modifiedTime":"2023-01-01T00:00:00Z"}]}`

func TestPublishOverwritesFirstWorksheet(t *testing.T) {
	f := &fakeGoogle{
		files: twoFiles,
		sheets: `{"spreadsheetId":"newest","sheets":[
			{"properties":{"sheetId":99,"title":"notes","index":1,"gridProperties":{"rowCount":10,"columnCount":2}}},
			{"properties":{"sheetId":0,"title":"Sheet1","index":0,"gridProperties":{"rowCount":1000,"columnCount":26}}}]}`,
	}
	p := newTestPublisher(t, f)

	require.NoError(t, p.Publish(context.Background(), sampleTable(t)))

	assert.Equal(t, []string{"list", "get:newest", "update", "clear"}, f.ops)
	assert.Contains(t, f.query, "name = 'dash_demo'")
	assert.Equal(t, "USER_ENTERED", f.updateIn)
	assert.Equal(t, "'Sheet1'!A1:D3", f.update["range"])
	assert.Equal(t, []any{
		[]any{"NAME", "population", "year", "state"},
		[]any{"Virginia", 8624511.0, "2022-01-01", "Virginia"},
		[]any{"United States", "", "2022-01-01", "United States"},
	}, f.update["values"])
	assert.Equal(t, []any{"'Sheet1'!A4:Z1000", "'Sheet1'!E1:Z3"}, f.cleared)
}

func TestPublishKeepsPreviousTableWhenWriteFails(t *testing.T) {
	f := &fakeGoogle{
		files:      `{"files":[{"id":"abc","name":"dash_demo"}]}`,
		sheets:     `{"spreadsheetId":"abc","sheets":[{"properties":{"sheetId":0,"title":"Sheet1","index":0,"gridProperties":{"rowCount":1000,"columnCount":26}}}]}`,
		failUpdate: true,
	}
	p := newTestPublisher(t, f)

	err := p.Publish(context.Background(), sampleTable(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update")
	assert.Equal(t, []string{"list", "get:abc", "update"}, f.ops)
	assert.Empty(t, f.cleared)
}

func TestPublishGrowsSmallGrid(t *testing.T) {
	f := &fakeGoogle{
		files:  `{"files":[{"id":"abc","name":"dash_demo"}]}`,
		sheets: `{"spreadsheetId":"abc","sheets":[{"properties":{"sheetId":0,"title":"Sheet1","index":0,"gridProperties":{"rowCount":2,"columnCount":3}}}]}`,
	}
	p := newTestPublisher(t, f)

	require.NoError(t, p.Publish(context.Background(), sampleTable(t)))
	assert.Equal(t, []string{"list", "get:abc", "resize", "update"}, f.ops)

	reqs := f.resize["requests"].([]any)
	require.Len(t, reqs, 1)
	props := reqs[0].(map[string]any)["updateSheetProperties"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, 0.0, props["sheetId"])
	grid := props["gridProperties"].(map[string]any)
	assert.Equal(t, 3.0, grid["rowCount"])
	assert.Equal(t, 4.0, grid["columnCount"])
}

func TestPublishSpreadsheetNotFound(t *testing.T) {
	f := &fakeGoogle{files: `{"files":[]}`}
	p := newTestPublisher(t, f)

	err := p.Publish(context.Background(), sampleTable(t))
	assert.ErrorIs(t, err, ErrSpreadsheetNotFound)
	assert.Equal(t, []string{"list"}, f.ops)
}

func TestPublishNoWorksheet(t *testing.T) {
	f := &fakeGoogle{
		files:  `{"files":[{"id":"abc","name":"dash_demo"}]}`,
		sheets: `{"spreadsheetId":"abc","sheets":[]}`,
	}
	p := newTestPublisher(t, f)

	err := p.Publish(context.Background(), sampleTable(t))
	assert.ErrorIs(t, err, ErrNoWorksheet)
	assert.NotContains(t, f.ops, "update")
	assert.NotContains(t, f.ops, "clear")
}

func TestNewRejectsBadCredentials(t *testing.T) {
	_, err := New(context.Background(), []byte("not json"), "dash_demo", nil)
	assert.Error(t, err)
}
