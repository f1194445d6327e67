package gems

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/cache"
)

// Metadata is the analysis result for one gem. Found=false with a non-empty
// Error is the normal shape for gems that are detected in source but not
// installed.
type Metadata struct {
	Found          bool     `json:"found"`
	Error          string   `json:"error,omitempty"`
	Name           string   `json:"name"`
	Version        string   `json:"version,omitempty"`
	InstallDir     string   `json:"install_dir,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	EssentialFiles []string `json:"essential_files,omitempty"`
	TotalSize      int64    `json:"total_size,omitempty"`
}

// essentialPrefixes keep library source and framework-integration trees.
var essentialPrefixes = []string{
	"lib/",
	"app/", // engine-style gems ship app code
}

// essentialBaseGlobs keep docs, licensing and the gemspec at any depth of
// the gem root.
var essentialBaseGlobs = []string{
	"README*", "LICENSE*", "LICENCE*", "CHANGELOG*", "*.gemspec",
}

// excludedPrefixes drop test suites, build artifacts and vendored
// sub-dependencies even when they live under an essential prefix.
var excludedPrefixes = []string{
	"test/", "spec/", "features/", "vendor/", "tmp/", "pkg/", "doc/", "benchmarks/",
}

var excludedExtensions = map[string]bool{
	".so": true, ".o": true, ".bundle": true, ".dll": true, ".jar": true,
}

// Analyzer classifies gem contents using a Registry for lookups. Lookups are
// cached; the cache is an optimization, not a correctness requirement.
type Analyzer struct {
	registry Registry
	specs    *cache.Cache[*Spec]
	logger   *logrus.Logger
}

// NewAnalyzer creates an Analyzer over the registry. ttl of zero disables
// the lookup cache.
func NewAnalyzer(registry Registry, specs *cache.Cache[*Spec], logger *logrus.Logger) *Analyzer {
	return &Analyzer{registry: registry, specs: specs, logger: logger}
}

// Analyze resolves the gem's install metadata and classifies its essential
// files. A missing gem is reported in the result, never as an error: absent
// gems are expected during batch extraction.
func (a *Analyzer) Analyze(name string) *Metadata {
	spec, ok := a.specs.Get(name)
	if !ok {
		var err error
		spec, err = a.registry.FindByName(name)
		if err != nil {
			if !errors.Is(err, ErrGemNotFound) {
				a.logger.WithError(err).WithField("gem", name).Warn("Gem lookup failed")
			}
			return &Metadata{Found: false, Name: name, Error: err.Error()}
		}
		a.specs.Set(name, spec)
	}

	return &Metadata{
		Found:          true,
		Name:           spec.Name,
		Version:        spec.Version,
		InstallDir:     spec.Dir,
		Dependencies:   spec.Dependencies,
		EssentialFiles: classifyEssential(spec.Files),
		TotalSize:      spec.TotalSize,
	}
}

// classifyEssential applies the allow-list to the gem's full file list.
func classifyEssential(files []string) []string {
	var out []string
	for _, f := range files {
		if isEssential(f) {
			out = append(out, f)
		}
	}
	return out
}

func isEssential(file string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(file, prefix) {
			return false
		}
	}
	if excludedExtensions[strings.ToLower(filepath.Ext(file))] {
		return false
	}

	for _, prefix := range essentialPrefixes {
		if strings.HasPrefix(file, prefix) {
			return true
		}
	}
	if !strings.Contains(file, "/") {
		base := filepath.Base(file)
		for _, glob := range essentialBaseGlobs {
			if ok, _ := filepath.Match(glob, base); ok {
				return true
			}
		}
	}

	// Railtie / engine entry points occasionally live outside lib in older
	// gems; keep them wherever they are.
	base := filepath.Base(file)
	return base == "railtie.rb" || base == "engine.rb" || base == "install_generator.rb"
}
