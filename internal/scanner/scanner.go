// Package scanner detects framework idioms in a single file's text using a
// declarative regular-expression table. It is heuristic by design: no AST,
// no framework coupling, false positives and negatives accepted. Cross-file
// deduplication is the dependency resolver's job; within one scan each
// category is deduplicated with insertion order preserved.
package scanner

import "sort"

// Result is the set of categorised references found in one file.
type Result struct {
	Models   []string `json:"models,omitempty"`
	Concerns []string `json:"concerns,omitempty"`
	Partials []string `json:"partials,omitempty"`
	Helpers  []string `json:"helpers,omitempty"`
	Gems     []string `json:"gems,omitempty"`
	Requires []string `json:"requires,omitempty"`
}

// Empty reports whether the scan found nothing.
func (r Result) Empty() bool {
	return len(r.Models) == 0 && len(r.Concerns) == 0 && len(r.Partials) == 0 &&
		len(r.Helpers) == 0 && len(r.Gems) == 0 && len(r.Requires) == 0
}

// Merge appends the other result's references, preserving first-seen order.
func (r *Result) Merge(other Result) {
	r.Models = appendUnique(r.Models, other.Models...)
	r.Concerns = appendUnique(r.Concerns, other.Concerns...)
	r.Partials = appendUnique(r.Partials, other.Partials...)
	r.Helpers = appendUnique(r.Helpers, other.Helpers...)
	r.Gems = appendUnique(r.Gems, other.Gems...)
	r.Requires = appendUnique(r.Requires, other.Requires...)
}

// Scan walks the idiom table over the file content. Pure function: no I/O,
// no shared state.
func Scan(content string) Result {
	var result Result

	for _, p := range idiomPatterns {
		for _, m := range p.Regexp.FindAllStringSubmatch(content, -1) {
			name := firstGroup(m)
			if name == "" {
				continue
			}
			switch p.Category {
			case CategoryModel:
				if !modelSkip[name] {
					result.Models = appendUnique(result.Models, name)
				}
			case CategoryConcern:
				if !mixinSkip[name] {
					result.Concerns = appendUnique(result.Concerns, name)
				}
			case CategoryPartial:
				result.Partials = appendUnique(result.Partials, name)
			case CategoryHelper:
				result.Helpers = appendUnique(result.Helpers, name)
			case CategoryRequire:
				result.Requires = appendUnique(result.Requires, name)
			}
		}
	}

	// Gem signatures are keyed by name; iterate sorted for deterministic
	// output.
	names := make([]string, 0, len(gemSignatures))
	for name := range gemSignatures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if gemSignatures[name].MatchString(content) {
			result.Gems = appendUnique(result.Gems, name)
		}
	}

	return result
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
