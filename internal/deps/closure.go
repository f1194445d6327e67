// Package deps builds the dependency closure of a route: the categorised set
// of application files plus the gems detected in them. Lookup is by naming
// convention first, then by scanning discovered files for framework idioms.
package deps

import "sort"

// Closure is the categorised dependency set of one route. Paths are relative
// to the application root, forward-slashed. Append-only while a resolution
// is running; Finish deduplicates and sorts.
type Closure struct {
	Models      []string `json:"models"`
	Views       []string `json:"views"`
	Controllers []string `json:"controllers"`
	Helpers     []string `json:"helpers"`
	Concerns    []string `json:"concerns"`
	Gems        []string `json:"gems"`
}

// NewClosure returns an empty, well-formed closure. Category slices are
// non-nil so an empty closure serialises as [] rather than null.
func NewClosure() *Closure {
	return &Closure{
		Models:      []string{},
		Views:       []string{},
		Controllers: []string{},
		Helpers:     []string{},
		Concerns:    []string{},
		Gems:        []string{},
	}
}

// FileCount returns the number of files across all file categories (gems are
// package names, not files).
func (c *Closure) FileCount() int {
	return len(c.Models) + len(c.Views) + len(c.Controllers) + len(c.Helpers) + len(c.Concerns)
}

// Files returns every file path in the closure, category order.
func (c *Closure) Files() []string {
	out := make([]string, 0, c.FileCount())
	out = append(out, c.Models...)
	out = append(out, c.Views...)
	out = append(out, c.Controllers...)
	out = append(out, c.Helpers...)
	out = append(out, c.Concerns...)
	return out
}

// Finish deduplicates and sorts every category in place.
func (c *Closure) Finish() {
	c.Models = sortedUnique(c.Models)
	c.Views = sortedUnique(c.Views)
	c.Controllers = sortedUnique(c.Controllers)
	c.Helpers = sortedUnique(c.Helpers)
	c.Concerns = sortedUnique(c.Concerns)
	c.Gems = sortedUnique(c.Gems)
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
