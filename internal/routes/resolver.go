package routes

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"
)

// Controllers in these namespaces belong to the framework, not the
// application, and are never resolution candidates.
var reservedControllerRe = regexp.MustCompile(`^(rails|action_mailbox|active_storage|action_cable|turbo)(/|$)`)

var formatSuffixRe = regexp.MustCompile(`\(\.:format\)$|\.:format$`)

// Resolver turns route patterns into Route descriptors by enumerating a
// Table.
type Resolver struct {
	table  Table
	logger *logrus.Logger
}

// NewResolver creates a Resolver over the given route table.
func NewResolver(table Table, logger *logrus.Logger) *Resolver {
	return &Resolver{table: table, logger: logger}
}

// List enumerates the table once and returns every interpretable application
// route in declared order, plus a side list of entries that were skipped and
// why. Skips never abort the listing.
func (r *Resolver) List() ([]Route, []SkippedEntry, error) {
	entries, err := r.table.Entries()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate route table: %w", err)
	}

	var out []Route
	var skipped []SkippedEntry
	for _, e := range entries {
		route, reason := interpret(e)
		if reason != "" {
			skipped = append(skipped, SkippedEntry{Path: e.Path, Reason: reason})
			r.logger.WithFields(logrus.Fields{
				"path":   e.Path,
				"reason": reason,
			}).Debug("Skipping route entry")
			continue
		}
		out = append(out, route)
	}
	return out, skipped, nil
}

// interpret converts a table entry into a Route, returning a non-empty skip
// reason when the entry is internal or not resolvable.
func interpret(e Entry) (Route, string) {
	controller := e.Defaults["controller"]
	action := e.Defaults["action"]
	if controller == "" {
		controller = e.Requirements["controller"]
	}
	if action == "" {
		action = e.Requirements["action"]
	}
	if controller == "" || action == "" {
		return Route{}, "no controller/action defaults"
	}
	if reservedControllerRe.MatchString(controller) {
		return Route{}, "framework-internal controller"
	}

	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if method == "" {
		method = "GET"
	}

	return Route{
		Controller: controller,
		Action:     action,
		Method:     method,
		Path:       displayPath(e.Path),
		Name:       e.Name,
	}, ""
}

// displayPath strips the format suffix and normalises the leading slash,
// best effort.
func displayPath(path string) string {
	path = formatSuffixRe.ReplaceAllString(path, "")
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Resolve returns the first route matching the pattern. "controller#action"
// patterns match exactly on the pair; bare names match the declared route
// name first, then fall back to a case-insensitive substring match.
func (r *Resolver) Resolve(pattern string) (*Route, error) {
	all, _, err := r.List()
	if err != nil {
		return nil, err
	}

	if controller, action, ok := strings.Cut(pattern, "#"); ok {
		for _, route := range all {
			if route.Controller == controller && route.Action == action {
				return &route, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, pattern)
	}

	for _, route := range all {
		if route.Name != "" && strings.EqualFold(route.Name, pattern) {
			return &route, nil
		}
	}
	if matches := substringMatches(all, pattern); len(matches) > 0 {
		return &matches[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, pattern)
}

// Search returns every route matching the pattern, for batch operations and
// interactive listing. Exact pattern matches rank first, then substring
// matches in declared order, then fuzzy matches by score. An empty pattern
// returns all routes.
func (r *Resolver) Search(pattern string) ([]Route, error) {
	all, _, err := r.List()
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return all, nil
	}

	if controller, action, ok := strings.Cut(pattern, "#"); ok {
		var matches []Route
		for _, route := range all {
			if route.Controller == controller && route.Action == action {
				matches = append(matches, route)
			}
		}
		return matches, nil
	}

	matches := substringMatches(all, pattern)
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		seen[m.Pattern()] = true
	}

	// Fuzzy fallback ranks near-misses ("userindex" -> users#index) after
	// the literal matches.
	targets := make([]string, len(all))
	for i, route := range all {
		targets[i] = route.Pattern()
	}
	results := fuzzy.Find(pattern, targets)
	sort.Stable(results)
	for _, res := range results {
		route := all[res.Index]
		if !seen[route.Pattern()] {
			matches = append(matches, route)
			seen[route.Pattern()] = true
		}
	}
	return matches, nil
}

func substringMatches(all []Route, pattern string) []Route {
	needle := strings.ToLower(pattern)
	var out []Route
	for _, route := range all {
		haystacks := []string{route.Path, route.Controller, route.Action, route.Name}
		for _, h := range haystacks {
			if h != "" && strings.Contains(strings.ToLower(h), needle) {
				out = append(out, route)
				break
			}
		}
	}
	return out
}
