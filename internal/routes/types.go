// Package routes resolves route patterns ("users#index", route names, or
// free-text fragments) against a host application's route table. The table
// itself is an external collaborator consumed through the narrow Table
// interface; FileTable provides the config/routes.rb adapter.
package routes

import (
	"errors"
	"fmt"
)

// ErrRouteNotFound indicates the pattern matched nothing in the route table.
// It is an expected condition for batch callers, not a programmer error.
var ErrRouteNotFound = errors.New("route not found")

// Entry is the narrow capability set routepack requires from a host route
// table entry. Defaults must carry at least "controller" and "action" for an
// entry to be resolvable; partial entries are tolerated and skipped.
type Entry struct {
	Method       string
	Path         string
	Name         string
	Defaults     map[string]string
	Requirements map[string]string
}

// Table enumerates host route entries in declared order.
type Table interface {
	Entries() ([]Entry, error)
}

// Route is a resolved, immutable route descriptor. Identity is the
// (Controller, Action) pair; the table may contain duplicates, in which case
// resolution picks the first match by declared order.
type Route struct {
	Controller string `json:"controller"`
	Action     string `json:"action"`
	Method     string `json:"method"`
	Path       string `json:"path,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Pattern returns the canonical "controller#action" form.
func (r Route) Pattern() string {
	return fmt.Sprintf("%s#%s", r.Controller, r.Action)
}

// SkippedEntry records a table entry that could not be interpreted, together
// with the reason. Skips never abort enumeration.
type SkippedEntry struct {
	Path   string
	Reason string
}
