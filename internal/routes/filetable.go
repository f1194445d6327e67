package routes

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Route DSL patterns, line-based. This is deliberately not a Ruby parser;
// it covers the declarations that appear in practice in routes files.
var (
	httpVerbRe  = regexp.MustCompile(`^\s*(get|post|put|patch|delete)\s+(?:['"]([^'"]+)['"]|:(\w+))(?:\s*,\s*to:\s*['"]([^'"#]+)#([^'"]+)['"])?(?:.*\bas:\s*:(\w+))?`)
	resourcesRe = regexp.MustCompile(`^\s*(resources|resource)\s+:(\w+)`)
	namespaceRe = regexp.MustCompile(`^\s*namespace\s+:(\w+)`)
	scopeModRe  = regexp.MustCompile(`^\s*scope\s+module:\s*[:'"](\w+)`)
	rootRe      = regexp.MustCompile(`^\s*root\s+(?:to:\s*)?['"]([^'"#]+)#([^'"]+)['"]`)
	memberRe    = regexp.MustCompile(`^\s*(member|collection)\s+do\b`)
	doBlockRe   = regexp.MustCompile(`\bdo\s*(?:\|[^|]*\|)?\s*$`)
	onlyRe      = regexp.MustCompile(`only:\s*(?:\[([^\]]*)\]|:(\w+))`)
	exceptRe    = regexp.MustCompile(`except:\s*(?:\[([^\]]*)\]|:(\w+))`)
	symbolRe    = regexp.MustCompile(`:(\w+)`)
)

// FileTable reads route entries from config/routes.rb (plus any files under
// config/routes/) of a Rails application.
type FileTable struct {
	appRoot string
	logger  *logrus.Logger
}

// NewFileTable creates a Table backed by the application's routes files.
func NewFileTable(appRoot string, logger *logrus.Logger) *FileTable {
	return &FileTable{appRoot: appRoot, logger: logger}
}

// Entries parses every routes file and returns the declared entries in file
// order. A missing primary routes file is an error; unreadable supplementary
// files are logged and skipped.
func (t *FileTable) Entries() ([]Entry, error) {
	primary := filepath.Join(t.appRoot, "config", "routes.rb")
	if _, err := os.Stat(primary); err != nil {
		return nil, fmt.Errorf("no routes file at %s: %w", primary, err)
	}

	files := []string{primary}
	extraDir := filepath.Join(t.appRoot, "config", "routes")
	if extras, err := os.ReadDir(extraDir); err == nil {
		var names []string
		for _, e := range extras {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".rb") {
				names = append(names, filepath.Join(extraDir, e.Name()))
			}
		}
		sort.Strings(names)
		files = append(files, names...)
	}

	var entries []Entry
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			t.logger.WithError(err).WithField("file", file).Warn("Skipping unreadable routes file")
			continue
		}
		entries = append(entries, parseRoutesFile(f)...)
		_ = f.Close()
	}
	return entries, nil
}

// scopeFrame tracks one level of namespace/scope/resource nesting. depth is
// the block depth the frame lives at; the frame pops when depth drops below
// it again.
type scopeFrame struct {
	pathPrefix   string
	modulePrefix string
	resource     string // non-empty inside a resources block
	member       bool   // inside a member do block
	depth        int
}

func parseRoutesFile(f *os.File) []Entry {
	var entries []Entry
	var stack []scopeFrame
	depth := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if trimmed == "end" {
			depth--
			if depth < 0 {
				depth = 0
			}
			for len(stack) > 0 && stack[len(stack)-1].depth > depth {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		// The outer "Rails.application.routes.draw do" block only
		// contributes depth, no scope.
		if strings.Contains(trimmed, "routes.draw") {
			depth++
			continue
		}

		pathPrefix, modPrefix := framePrefixes(stack)

		if m := namespaceRe.FindStringSubmatch(line); m != nil {
			depth++
			stack = append(stack, scopeFrame{pathPrefix: "/" + m[1], modulePrefix: m[1], depth: depth})
			continue
		}

		if m := scopeModRe.FindStringSubmatch(line); m != nil {
			if doBlockRe.MatchString(line) {
				depth++
				stack = append(stack, scopeFrame{modulePrefix: m[1], depth: depth})
			}
			continue
		}

		if m := memberRe.FindStringSubmatch(line); m != nil {
			depth++
			frame := scopeFrame{member: m[1] == "member", depth: depth}
			if res := currentResource(stack); res != "" && frame.member {
				frame.pathPrefix = "/:id"
			}
			stack = append(stack, frame)
			continue
		}

		if m := rootRe.FindStringSubmatch(line); m != nil {
			entries = append(entries, Entry{
				Method: "GET",
				Path:   joinPath(pathPrefix, "/"),
				Name:   "root",
				Defaults: map[string]string{
					"controller": qualify(modPrefix, m[1]),
					"action":     m[2],
				},
			})
			continue
		}

		if m := httpVerbRe.FindStringSubmatch(line); m != nil {
			method := strings.ToUpper(m[1])
			path := m[2]
			if path == "" {
				path = ":" + m[3] // symbol form: get :preview
			}
			controller, action := m[4], m[5]
			name := m[6]

			if controller == "" {
				// Verb route inside a member/collection block of a
				// resources declaration: "get :preview" style.
				res := currentResource(stack)
				if res == "" {
					continue
				}
				controller = res
				action = strings.TrimPrefix(path, ":")
				action = strings.TrimPrefix(action, "/")
				path = "/" + action
			}

			entries = append(entries, Entry{
				Method: method,
				Path:   joinPath(pathPrefix, ensureSlash(path)),
				Name:   name,
				Defaults: map[string]string{
					"controller": qualify(modPrefix, controller),
					"action":     action,
				},
			})
			if doBlockRe.MatchString(line) {
				depth++
			}
			continue
		}

		if m := resourcesRe.FindStringSubmatch(line); m != nil {
			singular := m[1] == "resource"
			name := m[2]
			controller := qualify(modPrefix, name)
			base := joinPath(pathPrefix, "/"+name)

			for _, a := range restfulActions(line, singular) {
				entries = append(entries, Entry{
					Method: a.method,
					Path:   base + a.suffix,
					Name:   routeNameFor(a.name, name, singular),
					Defaults: map[string]string{
						"controller": controller,
						"action":     a.name,
					},
				})
			}

			if doBlockRe.MatchString(line) {
				depth++
				stack = append(stack, scopeFrame{pathPrefix: "/" + name, resource: controller, depth: depth})
			}
			continue
		}

		if doBlockRe.MatchString(line) {
			depth++
		}
	}

	return entries
}

func framePrefixes(stack []scopeFrame) (string, string) {
	var paths, mods []string
	for _, f := range stack {
		if f.pathPrefix != "" {
			paths = append(paths, f.pathPrefix)
		}
		if f.modulePrefix != "" {
			mods = append(mods, f.modulePrefix)
		}
	}
	return strings.Join(paths, ""), strings.Join(mods, "/")
}

func currentResource(stack []scopeFrame) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].resource != "" {
			return stack[i].resource
		}
	}
	return ""
}

func qualify(modPrefix, controller string) string {
	if modPrefix == "" {
		return controller
	}
	return modPrefix + "/" + controller
}

func joinPath(prefix, path string) string {
	if path == "/" && prefix != "" {
		return prefix
	}
	return prefix + path
}

func ensureSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func routeNameFor(action, resource string, singular bool) string {
	switch action {
	case "index":
		return resource
	case "show", "update", "destroy":
		if singular {
			return resource
		}
		return "" // member routes have no stable conventional name here
	case "new":
		return "new_" + resource
	case "edit":
		return "edit_" + resource
	default:
		return ""
	}
}

// restAction is one RESTful action generated by a resources declaration.
type restAction struct {
	name   string
	method string
	suffix string
}

func restfulActions(line string, singular bool) []restAction {
	all := []restAction{
		{name: "index", method: "GET", suffix: ""},
		{name: "create", method: "POST", suffix: ""},
		{name: "new", method: "GET", suffix: "/new"},
		{name: "show", method: "GET", suffix: "/:id"},
		{name: "update", method: "PATCH", suffix: "/:id"},
		{name: "edit", method: "GET", suffix: "/:id/edit"},
		{name: "destroy", method: "DELETE", suffix: "/:id"},
	}
	if singular {
		all = []restAction{
			{name: "create", method: "POST", suffix: ""},
			{name: "new", method: "GET", suffix: "/new"},
			{name: "show", method: "GET", suffix: ""},
			{name: "update", method: "PATCH", suffix: ""},
			{name: "edit", method: "GET", suffix: "/edit"},
			{name: "destroy", method: "DELETE", suffix: ""},
		}
	}

	if m := onlyRe.FindStringSubmatch(line); m != nil {
		allowed := symbolSet(m[1] + " :" + m[2])
		return filterActions(all, allowed, true)
	}
	if m := exceptRe.FindStringSubmatch(line); m != nil {
		excluded := symbolSet(m[1] + " :" + m[2])
		return filterActions(all, excluded, false)
	}
	return all
}

func symbolSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range symbolRe.FindAllStringSubmatch(s, -1) {
		set[m[1]] = true
	}
	return set
}

func filterActions(all []restAction, names map[string]bool, allow bool) []restAction {
	var out []restAction
	for _, a := range all {
		if names[a.name] == allow {
			out = append(out, a)
		}
	}
	return out
}
