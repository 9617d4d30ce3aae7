// Package catalog holds the fixed set of ACS variables the dashboard publishes,
// keyed by the metric names used as spreadsheet columns.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/goccy/go-yaml"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	ErrDuplicateName = errors.New("catalog: duplicate metric name")
	ErrInvalidName   = errors.New("catalog: invalid metric name")
	ErrInvalidCode   = errors.New("catalog: invalid variable code")
	ErrEmpty         = errors.New("catalog: no variables")
)

var (
	nameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	// Detailed-table estimate codes, e.g. B01003_001E or C24010_003E.
	codeRe = regexp.MustCompile(`^[A-Z][0-9]{5}[A-Z]?_[0-9]{3}[A-Z]{1,2}$`)
)

// Entry maps one metric name to its upstream variable code.
type Entry struct {
	Name       string
	Code       string
	Group      string
	RecentOnly bool
}

type fileFormat struct {
	Groups []struct {
		Name       string `yaml:"name"`
		RecentOnly bool   `yaml:"recent_only"`
		Variables  []struct {
			Name string `yaml:"name"`
			Code string `yaml:"code"`
		} `yaml:"variables"`
	} `yaml:"groups"`
}

// Catalog is an immutable name -> code table. Build it with Load or Default.
type Catalog struct {
	entries []Entry
	byName  map[string]string
	byCode  map[string][]string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// Load parses a YAML catalog and validates every entry.
func Load(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	var entries []Entry
	for _, g := range f.Groups {
		for _, v := range g.Variables {
			entries = append(entries, Entry{
				Name:       v.Name,
				Code:       v.Code,
				Group:      g.Name,
				RecentOnly: g.RecentOnly,
			})
		}
	}
	return New(entries...)
}

// New builds a catalog from entries in column order.
func New(entries ...Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]string, len(entries)),
		byCode:  make(map[string][]string, len(entries)),
	}
	for _, e := range entries {
		if !nameRe.MatchString(e.Name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, e.Name)
		}
		if !codeRe.MatchString(e.Code) {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidCode, e.Code, e.Name)
		}
		if _, ok := c.byName[e.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}
		c.entries = append(c.entries, e)
		c.byName[e.Name] = e.Code
		c.byCode[e.Code] = append(c.byCode[e.Code], e.Name)
	}
	return c, nil
}

// FromMap builds a catalog from a name -> code map. Map iteration order is
// random, so entries are sorted by name.
func FromMap(m map[string]string) (*Catalog, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Code: m[name]})
	}
	return New(entries...)
}

// Active returns the sub-catalog used for a run. Recent-only groups are
// dropped unless includeRecent is set.
func (c *Catalog) Active(includeRecent bool) *Catalog {
	if includeRecent {
		return c
	}
	var keep []Entry
	for _, e := range c.entries {
		if !e.RecentOnly {
			keep = append(keep, e)
		}
	}
	out, err := New(keep...)
	if err != nil {
		// Only reachable when every entry is recent-only.
		return &Catalog{byName: map[string]string{}, byCode: map[string][]string{}}
	}
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of the entries in column order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Names returns the metric names in column order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Name)
	}
	return out
}

// Codes returns each distinct variable code once, in first-seen order.
// Aliased names share a single request field.
func (c *Catalog) Codes() []string {
	return c.codes(func(Entry) bool { return true })
}

// CoreCodes returns the distinct codes outside recent-only groups.
func (c *Catalog) CoreCodes() []string {
	return c.codes(func(e Entry) bool { return !e.RecentOnly })
}

func (c *Catalog) codes(keep func(Entry) bool) []string {
	seen := make(map[string]struct{}, len(c.entries))
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		if !keep(e) {
			continue
		}
		if _, ok := seen[e.Code]; ok {
			continue
		}
		seen[e.Code] = struct{}{}
		out = append(out, e.Code)
	}
	return out
}

// CodeFor returns the variable code for a metric name.
func (c *Catalog) CodeFor(name string) (string, bool) {
	code, ok := c.byName[name]
	return code, ok
}

// NamesFor returns every metric name mapped to code, in column order.
func (c *Catalog) NamesFor(code string) []string {
	return append([]string(nil), c.byCode[code]...)
}
