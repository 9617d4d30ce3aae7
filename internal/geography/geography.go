// Package geography names the places the dashboard covers and the query
// scopes used to reach them.
package geography

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Scope selects the shape of an upstream query.
type Scope int

const (
	ScopeCounty Scope = iota + 1
	ScopeState
	ScopeNation
)

// Scopes lists every scope in fetch order.
var Scopes = []Scope{ScopeCounty, ScopeState, ScopeNation}

func (s Scope) String() string {
	switch s {
	case ScopeCounty:
		return "county"
	case ScopeState:
		return "state"
	case ScopeNation:
		return "nation"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// State identifies a state by display name and FIPS code.
type State struct {
	Name string
	FIPS string
}

// Virginia is the only state the dashboard queries.
var Virginia = State{Name: "Virginia", FIPS: "51"}

// Nation is the display name of the national aggregate.
const Nation = "United States"

// HamptonRoadsPlaces are the county-equivalents reported for Virginia,
// without the ", Virginia" suffix the upstream appends.
var HamptonRoadsPlaces = []string{
	"Chesapeake city",
	"Hampton city",
	"Newport News city",
	"Norfolk city",
	"Portsmouth city",
	"Suffolk city",
	"Virginia Beach city",
	"James City County",
	"York County",
}

// HamptonRoadsMetro is the metro area display name kept on the allow-list.
const HamptonRoadsMetro = "Virginia Beach-Chesapeake-Norfolk, VA-NC Metro Area"

// TargetList is an ordered allow-list of display names. The zero value
// contains nothing.
type TargetList struct {
	names []string
	set   map[string]struct{}
}

// NewTargetList builds an allow-list, dropping repeated names.
func NewTargetList(names ...string) TargetList {
	t := TargetList{set: make(map[string]struct{}, len(names))}
	for _, name := range names {
		key := normalize(name)
		if _, ok := t.set[key]; ok {
			continue
		}
		t.set[key] = struct{}{}
		t.names = append(t.names, name)
	}
	return t
}

// DefaultTargets returns the Hampton Roads places, the metro area, the state
// and the nation, in that order.
func DefaultTargets() TargetList {
	names := make([]string, 0, len(HamptonRoadsPlaces)+3)
	for _, place := range HamptonRoadsPlaces {
		names = append(names, place+", "+Virginia.Name)
	}
	names = append(names, HamptonRoadsMetro, Virginia.Name, Nation)
	return NewTargetList(names...)
}

// Contains reports whether name is on the list. Names are compared after
// NFC normalization so composed and decomposed accents match.
func (t TargetList) Contains(name string) bool {
	_, ok := t.set[normalize(name)]
	return ok
}

func (t TargetList) Names() []string {
	return append([]string(nil), t.names...)
}

func (t TargetList) Len() int { return len(t.names) }

func normalize(name string) string {
	return norm.NFC.String(name)
}
