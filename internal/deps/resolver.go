package deps

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/routes"
	"github.com/routepack/routepack/internal/scanner"
)

// Options bounds one closure resolution. The zero value means depth 1 with
// no association following.
type Options struct {
	MaxDepth           int
	FollowAssociations bool
}

// Resolver resolves a route's dependency closure against the configured
// application tree.
type Resolver struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewResolver creates a Resolver for the application rooted at cfg.AppRoot.
func NewResolver(cfg *config.Config, logger *logrus.Logger) *Resolver {
	return &Resolver{cfg: cfg, logger: logger}
}

// ResolveClosure builds the full dependency closure for the route. Files
// that cannot be read are omitted from the closure, never fatal. A route
// with no matching files yields an empty, well-formed closure.
func (r *Resolver) ResolveClosure(route *routes.Route, opts Options) *Closure {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}

	closure := NewClosure()
	visited := make(map[string]bool)

	// Convention-derived starting points.
	controller := r.controllerFile(route.Controller)
	if controller != "" {
		closure.Controllers = append(closure.Controllers, controller)
	}
	if model := r.modelFile(modelNameFor(route.Controller)); model != "" {
		closure.Models = append(closure.Models, model)
	}
	views := r.viewFiles(route.Controller, route.Action)
	closure.Views = append(closure.Views, views...)
	if helper := r.helperFile(route.Controller); helper != "" {
		closure.Helpers = append(closure.Helpers, helper)
	}

	// Scan the direct files; discovered references may recurse into model
	// files up to maxDepth when association following is on.
	toScan := append([]string{}, closure.Controllers...)
	toScan = append(toScan, closure.Views...)
	for _, file := range toScan {
		r.scanInto(file, route, closure, visited, 1, maxDepth, opts.FollowAssociations)
	}

	closure.Finish()
	return closure
}

// scanInto scans one file and merges its references into the closure.
func (r *Resolver) scanInto(relPath string, route *routes.Route, closure *Closure, visited map[string]bool, depth, maxDepth int, follow bool) {
	if visited[relPath] || depth > maxDepth {
		return
	}
	visited[relPath] = true

	content, err := os.ReadFile(filepath.Join(r.cfg.AppRoot, filepath.FromSlash(relPath)))
	if err != nil {
		r.logger.WithError(err).WithField("file", relPath).Debug("Skipping unreadable file")
		return
	}

	result := scanner.Scan(string(content))
	closure.Gems = append(closure.Gems, result.Gems...)

	for _, model := range result.Models {
		file := r.modelFile(Underscore(model))
		if file == "" {
			continue
		}
		closure.Models = append(closure.Models, file)
		if follow && depth < maxDepth {
			r.scanInto(file, route, closure, visited, depth+1, maxDepth, follow)
		}
	}

	for _, concern := range result.Concerns {
		closure.Concerns = append(closure.Concerns, r.concernFiles(concern)...)
	}

	for _, partial := range result.Partials {
		closure.Views = append(closure.Views, r.partialFiles(route.Controller, partial)...)
	}

	for _, helper := range result.Helpers {
		if file := r.helperFileByName(helper); file != "" {
			closure.Helpers = append(closure.Helpers, file)
		}
	}
}

// controllerFile returns the conventional controller path if it exists.
func (r *Resolver) controllerFile(controller string) string {
	return r.existing(filepath.Join("app", "controllers", controller+"_controller.rb"))
}

// modelFile returns the conventional model path for a snake_case model name.
func (r *Resolver) modelFile(name string) string {
	if name == "" {
		return ""
	}
	return r.existing(filepath.Join("app", "models", name+".rb"))
}

// viewFiles returns every template for the action, any extension
// (index.html.erb, index.json.jbuilder, ...).
func (r *Resolver) viewFiles(controller, action string) []string {
	dir := filepath.Join(r.cfg.AppRoot, "app", "views", filepath.FromSlash(controller))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), action+".") {
			out = append(out, path("app", "views", controller, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

// partialFiles resolves a render target to template files. Qualified names
// ("shared/nav") resolve against the views root; bare names resolve inside
// the controller's own view directory. Partial templates carry a leading
// underscore on the file name.
func (r *Resolver) partialFiles(controller, partial string) []string {
	dir, base := controller, partial
	if strings.Contains(partial, "/") {
		idx := strings.LastIndex(partial, "/")
		dir, base = partial[:idx], partial[idx+1:]
	}
	base = strings.TrimPrefix(base, "_")

	viewDir := filepath.Join(r.cfg.AppRoot, "app", "views", filepath.FromSlash(dir))
	entries, err := os.ReadDir(viewDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "_"+base+".") {
			out = append(out, path("app", "views", dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

// helperFile returns the controller's conventional helper file.
func (r *Resolver) helperFile(controller string) string {
	return r.existing(filepath.Join("app", "helpers", controller+"_helper.rb"))
}

// helperFileByName resolves a scanned helper reference (UsersHelper or
// :users) to its file.
func (r *Resolver) helperFileByName(helper string) string {
	name := helper
	if strings.HasSuffix(helper, "Helper") {
		name = Underscore(strings.TrimSuffix(helper, "Helper"))
	}
	return r.existing(filepath.Join("app", "helpers", name+"_helper.rb"))
}

// concernFiles resolves a mixin name against the conventional concern roots.
func (r *Resolver) concernFiles(concern string) []string {
	name := Underscore(concern)
	var out []string
	for _, root := range []string{
		filepath.Join("app", "models", "concerns"),
		filepath.Join("app", "controllers", "concerns"),
	} {
		if file := r.existing(filepath.Join(root, name+".rb")); file != "" {
			out = append(out, file)
		}
	}
	return out
}

// existing returns the forward-slashed relative path when the file exists
// under the app root, empty string otherwise.
func (r *Resolver) existing(rel string) string {
	info, err := os.Stat(filepath.Join(r.cfg.AppRoot, rel))
	if err != nil || info.IsDir() {
		return ""
	}
	return filepath.ToSlash(rel)
}

// modelNameFor derives the conventional model file name from a controller
// path: "admin/user_profiles" -> "user_profile".
func modelNameFor(controller string) string {
	base := controller
	if idx := strings.LastIndex(controller, "/"); idx >= 0 {
		base = controller[idx+1:]
	}
	return Singularize(base)
}

func path(parts ...string) string {
	return strings.Join(parts, "/")
}
