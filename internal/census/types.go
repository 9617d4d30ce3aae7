package census

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidKey = errors.New("census: invalid or missing API key")
	ErrMalformed  = errors.New("census: malformed response")
)

// Row is one geography from a query, keyed by the header row of the
// response. JSON nulls are left out.
type Row map[string]string

// Geo is the for/in geography predicate of a query.
type Geo struct {
	For string
	In  string
}

// APIError is a non-2xx answer from the Data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "census: api error"
	}
	if e.Message == "" {
		return fmt.Sprintf("census: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("census: http status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the Data API, which is what
// it answers for a dataset year that is not published yet.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
