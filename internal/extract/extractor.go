// Package extract orchestrates route resolution, dependency closure and gem
// analysis into a manifested bundle directory on disk.
package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/deps"
	"github.com/routepack/routepack/internal/gems"
	"github.com/routepack/routepack/internal/routes"
)

// TimestampLayout encodes bundle creation time into the directory name so
// lifecycle policies never depend on file-system metadata.
const TimestampLayout = "20060102_150405"

// Options gates what goes into one extraction. Mode governs the m/v/c
// categories; the auxiliary toggles are independent of it.
type Options struct {
	Mode            string `json:"mode,omitempty"`
	IncludeGems     bool   `json:"include_gems"`
	IncludeTests    bool   `json:"include_tests"`
	IncludeHelpers  bool   `json:"include_helpers"`
	IncludePartials bool   `json:"include_partials"`
	IncludeConcerns bool   `json:"include_concerns"`
	Compress        bool   `json:"compress"`
}

// OptionsFromConfig seeds Options from the configuration defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Mode:            cfg.Mode(),
		IncludeGems:     cfg.IncludeGems,
		IncludeTests:    cfg.IncludeTests,
		IncludeHelpers:  cfg.IncludeHelpers,
		IncludePartials: cfg.IncludePartials,
		IncludeConcerns: cfg.IncludeConcerns,
		Compress:        cfg.Compress,
	}
}

// Result reports one extraction attempt. Expected failures (unresolvable
// route, copy error) land in Error with Success=false; batch callers keep
// going.
type Result struct {
	Success    bool   `json:"success"`
	Pattern    string `json:"pattern"`
	Error      string `json:"error,omitempty"`
	BundlePath string `json:"bundle_path,omitempty"`
	FileCount  int    `json:"file_count"`
	TotalSize  int64  `json:"total_size"`
	GemCount   int    `json:"gem_count,omitempty"`
}

// BatchResult aggregates a multi-route extraction. Counts and sizes are
// summed from successful results only.
type BatchResult struct {
	SuccessCount int      `json:"success_count"`
	FailureCount int      `json:"failure_count"`
	TotalFiles   int      `json:"total_files"`
	TotalSize    int64    `json:"total_size"`
	Results      []Result `json:"results"`
}

// Extractor copies resolved route dependencies into manifested bundles.
type Extractor struct {
	cfg      *config.Config
	resolver *routes.Resolver
	deps     *deps.Resolver
	gems     *gems.Analyzer
	logger   *logrus.Logger
}

// NewExtractor wires the pipeline together.
func NewExtractor(cfg *config.Config, resolver *routes.Resolver, depResolver *deps.Resolver, analyzer *gems.Analyzer, logger *logrus.Logger) *Extractor {
	return &Extractor{
		cfg:      cfg,
		resolver: resolver,
		deps:     depResolver,
		gems:     analyzer,
		logger:   logger,
	}
}

// ExtractRoute resolves the pattern and materialises its bundle. An invalid
// mode is a configuration error returned as a real error; everything else is
// reported through the Result.
func (e *Extractor) ExtractRoute(pattern string, opts Options) (Result, error) {
	cfg := *e.cfg // copy: mode application is per-call
	// "none" is not a selectable mode; it is what OptionsFromConfig reports
	// when all m/v/c toggles are off. The configured toggles already say it
	// all, so there is nothing to apply.
	if opts.Mode != "" && opts.Mode != "none" {
		if err := cfg.ApplyMode(opts.Mode); err != nil {
			return Result{}, err
		}
	}

	result := Result{Pattern: pattern}

	route, err := e.resolver.Resolve(pattern)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	closure := e.deps.ResolveClosure(route, deps.Options{
		MaxDepth:           cfg.MaxDepth,
		FollowAssociations: cfg.FollowAssociations,
	})

	bundleDir := filepath.Join(cfg.ExtractPath(), bundleName(route, time.Now()))
	if _, err := os.Stat(bundleDir); err == nil {
		result.Error = fmt.Sprintf("bundle directory already exists: %s", bundleDir)
		return result, nil
	}
	if err := os.MkdirAll(bundleDir, 0755); err != nil {
		result.Error = fmt.Sprintf("failed to create bundle directory: %v", err)
		return result, nil
	}

	copied, totalSize, err := e.populate(bundleDir, &cfg, opts, route, closure)
	if err == nil {
		categories := enabledCategories(&cfg, opts)
		manifest := newManifest(uuid.New().String(), route, cfg.Mode(), opts.IncludeGems, opts.IncludeTests, categories, copied, totalSize)
		err = manifest.Write(bundleDir)
	}
	if err != nil {
		// No partial bundles are left behind.
		_ = os.RemoveAll(bundleDir)
		result.Error = err.Error()
		return result, nil
	}

	finalPath := bundleDir
	if opts.Compress {
		finalPath, err = compressBundle(bundleDir)
		if err != nil {
			_ = os.RemoveAll(bundleDir)
			result.Error = err.Error()
			return result, nil
		}
	}

	result.Success = true
	result.BundlePath = finalPath
	result.FileCount = len(copied)
	result.TotalSize = totalSize
	result.GemCount = len(closure.Gems)

	e.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"bundle":  finalPath,
		"files":   result.FileCount,
	}).Info("Extraction complete")
	return result, nil
}

// ExtractRoutes attempts every pattern independently. Patterns without an
// explicit controller#action form are expanded to every route they match, so
// "users" extracts each users route. One failure never aborts the siblings.
func (e *Extractor) ExtractRoutes(patterns []string, opts Options) (BatchResult, error) {
	var batch BatchResult
	for _, pattern := range patterns {
		for _, target := range e.expand(pattern) {
			result, err := e.ExtractRoute(target, opts)
			if err != nil {
				if errors.Is(err, config.ErrInvalidMode) {
					return batch, err // configuration error: fatal to the batch call
				}
				result = Result{Pattern: target, Error: err.Error()}
			}
			batch.Results = append(batch.Results, result)
			if result.Success {
				batch.SuccessCount++
				batch.TotalFiles += result.FileCount
				batch.TotalSize += result.TotalSize
			} else {
				batch.FailureCount++
				e.logger.WithFields(logrus.Fields{
					"pattern": target,
					"error":   result.Error,
				}).Warn("Extraction failed")
			}
		}
	}
	return batch, nil
}

// expand turns a bare pattern into the controller#action patterns it matches.
// Patterns that already name an action, or that match nothing, pass through
// unchanged so resolution reports the failure per pattern.
func (e *Extractor) expand(pattern string) []string {
	if pattern == "" || strings.Contains(pattern, "#") {
		return []string{pattern}
	}
	matches, err := e.resolver.Search(pattern)
	if err != nil || len(matches) == 0 {
		return []string{pattern}
	}

	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, r := range matches {
		p := r.Pattern()
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// populate copies the closure's files into the bundle's category
// subdirectories and returns bundle-relative paths of everything copied.
// Per-file copy failures abort the bundle (caller rolls back).
func (e *Extractor) populate(bundleDir string, cfg *config.Config, opts Options, route *routes.Route, closure *deps.Closure) ([]string, int64, error) {
	var copied []string
	var totalSize int64

	copyCategory := func(category string, files []string, stripPrefix string) error {
		for _, rel := range files {
			src := filepath.Join(cfg.AppRoot, filepath.FromSlash(rel))
			inner := strings.TrimPrefix(rel, stripPrefix)
			dst := filepath.Join(bundleDir, category, filepath.FromSlash(inner))

			n, err := copyFile(src, dst)
			if err != nil {
				return fmt.Errorf("failed to copy %s: %w", rel, err)
			}
			copied = append(copied, category+"/"+inner)
			totalSize += n
		}
		return nil
	}

	if cfg.IncludeModels {
		if err := copyCategory("models", closure.Models, "app/models/"); err != nil {
			return nil, 0, err
		}
	}
	if cfg.IncludeViews {
		views := closure.Views
		if !opts.IncludePartials {
			views = withoutPartials(views)
		}
		if err := copyCategory("views", views, "app/views/"); err != nil {
			return nil, 0, err
		}
	}
	if cfg.IncludeControllers {
		if err := copyCategory("controllers", closure.Controllers, "app/controllers/"); err != nil {
			return nil, 0, err
		}
	}
	if opts.IncludeHelpers {
		if err := copyCategory("helpers", closure.Helpers, "app/helpers/"); err != nil {
			return nil, 0, err
		}
	}
	if opts.IncludeConcerns {
		if err := copyCategory("concerns", closure.Concerns, "app/"); err != nil {
			return nil, 0, err
		}
	}
	if opts.IncludeTests {
		if err := copyCategory("tests", e.deps.TestFiles(closure), ""); err != nil {
			return nil, 0, err
		}
	}

	if opts.IncludeGems {
		for _, gem := range closure.Gems {
			meta := e.gems.Analyze(gem)
			if !meta.Found {
				e.logger.WithFields(logrus.Fields{
					"gem":   gem,
					"error": meta.Error,
				}).Debug("Skipping gem not present in registry")
				continue
			}
			for _, rel := range meta.EssentialFiles {
				src := filepath.Join(meta.InstallDir, filepath.FromSlash(rel))
				dst := filepath.Join(bundleDir, "gems", meta.Name, filepath.FromSlash(rel))
				n, err := copyFile(src, dst)
				if err != nil {
					return nil, 0, fmt.Errorf("failed to copy gem file %s/%s: %w", meta.Name, rel, err)
				}
				copied = append(copied, "gems/"+meta.Name+"/"+rel)
				totalSize += n
			}
		}
	}

	return copied, totalSize, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// withoutPartials filters view templates whose file name starts with an
// underscore.
func withoutPartials(views []string) []string {
	var out []string
	for _, v := range views {
		if !strings.HasPrefix(filepath.Base(v), "_") {
			out = append(out, v)
		}
	}
	return out
}

func enabledCategories(cfg *config.Config, opts Options) []string {
	var out []string
	if cfg.IncludeModels {
		out = append(out, "models")
	}
	if cfg.IncludeViews {
		out = append(out, "views")
	}
	if cfg.IncludeControllers {
		out = append(out, "controllers")
	}
	if opts.IncludeHelpers {
		out = append(out, "helpers")
	}
	if opts.IncludeConcerns {
		out = append(out, "concerns")
	}
	if opts.IncludeGems {
		out = append(out, "gems")
	}
	if opts.IncludeTests {
		out = append(out, "tests")
	}
	return out
}

// bundleName encodes controller, action and a second-precision timestamp:
// users_index_20240131_154500. Slashes in namespaced controllers flatten to
// underscores so the name stays a single path segment.
func bundleName(route *routes.Route, at time.Time) string {
	controller := strings.ReplaceAll(route.Controller, "/", "_")
	return fmt.Sprintf("%s_%s_%s", controller, route.Action, at.Format(TimestampLayout))
}
