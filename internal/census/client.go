// Package census is a small client for the Census Bureau Data API, limited to
// the ACS 5-year detailed tables the dashboard reads.
package census

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

const (
	// DefaultBaseURL is the Data API root.
	DefaultBaseURL = "https://api.census.gov/data"

	// Dataset is the ACS 5-year estimates path under a year.
	Dataset = "acs/acs5"

	// MaxFields is the most variables the API accepts in one get=.
	MaxFields = 50

	// DefaultRate is the client-side request rate limit (requests/second).
	DefaultRate = 5
)

// Client is an HTTP client for the Census Data API.
type Client struct {
	apiKey     string
	baseURL    string
	dataset    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit caps outgoing requests. A non-positive limit disables it.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = logging.OrNop(l)
	}
}

// NewClient creates a new Census API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		dataset: Dataset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(DefaultRate, 1),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Counties fetches fields for every county in a state.
func (c *Client) Counties(ctx context.Context, year int, stateFIPS string, fields []string) ([]Row, error) {
	return c.Get(ctx, year, fields, Geo{For: "county:*", In: "state:" + stateFIPS})
}

// State fetches fields for a single state.
func (c *Client) State(ctx context.Context, year int, stateFIPS string, fields []string) ([]Row, error) {
	return c.Get(ctx, year, fields, Geo{For: "state:" + stateFIPS})
}

// Nation fetches fields for the United States aggregate.
func (c *Client) Nation(ctx context.Context, year int, fields []string) ([]Row, error) {
	return c.Get(ctx, year, fields, Geo{For: "us:1"})
}

// Get runs a query, splitting fields into requests of at most MaxFields and
// merging the answers on their geography columns. A 204 answer yields no
// rows and no error.
func (c *Client) Get(ctx context.Context, year int, fields []string, geo Geo) ([]Row, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("census: no fields requested")
	}
	if strings.TrimSpace(geo.For) == "" {
		return nil, fmt.Errorf("census: geography is required")
	}

	var (
		merged []Row
		index  map[string]int
	)
	for i, chunk := range chunkFields(fields, MaxFields) {
		rows, geoCols, err := c.query(ctx, year, chunk, geo)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			merged = rows
			index = make(map[string]int, len(rows))
			for j, row := range rows {
				index[geoKey(row, geoCols)] = j
			}
			continue
		}
		// Every chunk covers the same geographies.
		if len(rows) != len(merged) {
			return nil, fmt.Errorf("%w: field chunk %d returned %d rows, earlier chunks %d",
				ErrMalformed, i+1, len(rows), len(merged))
		}
		for _, row := range rows {
			key := geoKey(row, geoCols)
			j, ok := index[key]
			if !ok {
				index[key] = len(merged)
				merged = append(merged, row)
				continue
			}
			for k, v := range row {
				merged[j][k] = v
			}
		}
	}
	return merged, nil
}

func (c *Client) query(ctx context.Context, year int, fields []string, geo Geo) ([]Row, []string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/%d/%s", strings.TrimRight(c.baseURL, "/"), year, c.dataset)
	params := url.Values{}
	params.Set("get", strings.Join(fields, ","))
	params.Set("for", geo.For)
	if geo.In != "" {
		params.Set("in", geo.In)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	start := time.Now()
	logging.LogRequest(c.log, "census", http.MethodGet, endpoint,
		zap.String("for", geo.For),
		zap.String("in", geo.In),
		zap.Int("fields", len(fields)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogError(c.log, "census", "fetch", err)
		return nil, nil, fmt.Errorf("census request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read census response: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		logging.LogResponse(c.log, "census", resp.StatusCode, time.Since(start), 0)
		return nil, nil, nil
	}
	if isKeyError(body) {
		logging.LogError(c.log, "census", "fetch", ErrInvalidKey)
		return nil, nil, ErrInvalidKey
	}
	if resp.StatusCode != http.StatusOK {
		err := &APIError{StatusCode: resp.StatusCode, Message: summarize(body)}
		logging.LogError(c.log, "census", "fetch", err)
		return nil, nil, err
	}

	rows, geoCols, err := decodeTable(body, fields)
	if err != nil {
		logging.LogError(c.log, "census", "decode", err)
		return nil, nil, err
	}
	logging.LogResponse(c.log, "census", resp.StatusCode, time.Since(start), len(rows))
	return rows, geoCols, nil
}

// decodeTable turns the API's array-of-arrays answer into rows. Header
// columns that were not requested are the geography identifiers.
func decodeTable(body []byte, requested []string) ([]Row, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var table [][]any
	if err := dec.Decode(&table); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(table) == 0 {
		return nil, nil, nil
	}

	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		s, ok := h.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w: header cell %d is %T", ErrMalformed, i, h)
		}
		header[i] = s
	}

	want := make(map[string]struct{}, len(requested))
	for _, f := range requested {
		want[f] = struct{}{}
	}
	var geoCols []string
	for _, h := range header {
		if _, ok := want[h]; !ok {
			geoCols = append(geoCols, h)
		}
	}

	rows := make([]Row, 0, len(table)-1)
	for n, rec := range table[1:] {
		if len(rec) != len(header) {
			return nil, nil, fmt.Errorf("%w: row %d has %d cells, header has %d", ErrMalformed, n+1, len(rec), len(header))
		}
		row := make(Row, len(header))
		for i, cell := range rec {
			switch v := cell.(type) {
			case nil:
			case string:
				row[header[i]] = v
			case json.Number:
				row[header[i]] = v.String()
			case bool:
				row[header[i]] = strconv.FormatBool(v)
			default:
				return nil, nil, fmt.Errorf("%w: row %d cell %q is %T", ErrMalformed, n+1, header[i], cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, geoCols, nil
}

func chunkFields(fields []string, size int) [][]string {
	var out [][]string
	for len(fields) > size {
		out = append(out, fields[:size:size])
		fields = fields[size:]
	}
	if len(fields) > 0 {
		out = append(out, fields)
	}
	return out
}

func geoKey(row Row, geoCols []string) string {
	parts := make([]string, len(geoCols))
	for i, col := range geoCols {
		parts[i] = col + "=" + row[col]
	}
	return strings.Join(parts, "&")
}

// The API answers a bad key with an HTML page, sometimes with status 200.
func isKeyError(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '[' {
		return false
	}
	lower := bytes.ToLower(trimmed)
	return bytes.Contains(lower, []byte("invalid key")) ||
		bytes.Contains(lower, []byte("valid <em>key</em> must be included"))
}

func summarize(body []byte) string {
	msg := strings.Join(strings.Fields(string(body)), " ")
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
