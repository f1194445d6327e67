// Package config holds the explicit configuration value that every routepack
// component receives through its constructor. There is no ambient global
// state; callers build a Config once (Default, Load, or both) and pass it down.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidMode is returned when a mode string is not one of the seven
// recognised m/v/c combinations. It is a configuration error and fatal to
// the call that supplied the mode.
var ErrInvalidMode = errors.New("invalid extraction mode")

// validModes is the set of recognised mode short codes.
var validModes = map[string]struct{}{
	"m": {}, "v": {}, "c": {},
	"mv": {}, "mc": {}, "vc": {},
	"mvc": {},
}

// Duration decodes either a Go duration string ("15m") or integer
// nanoseconds from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config carries all tunables for route resolution, dependency scanning,
// extraction and bundle lifecycle management.
type Config struct {
	// AppRoot is the root of the Rails application under analysis.
	AppRoot string `yaml:"app_root"`

	// ExtractBase is the directory bundles are written to. Relative paths
	// are resolved against AppRoot.
	ExtractBase string `yaml:"extract_base"`

	// Category toggles applied when no explicit mode is given.
	IncludeModels      bool `yaml:"include_models"`
	IncludeViews       bool `yaml:"include_views"`
	IncludeControllers bool `yaml:"include_controllers"`
	IncludeHelpers     bool `yaml:"include_helpers"`
	IncludePartials    bool `yaml:"include_partials"`
	IncludeConcerns    bool `yaml:"include_concerns"`
	IncludeGems        bool `yaml:"include_gems"`
	IncludeTests       bool `yaml:"include_tests"`

	// MaxDepth bounds recursive dependency scanning when FollowAssociations
	// is set. Depth 1 scans only the directly resolved files.
	MaxDepth           int  `yaml:"max_depth"`
	FollowAssociations bool `yaml:"follow_associations"`

	// GemPaths lists directories that contain installed gems
	// (e.g. $GEM_HOME/gems, vendor/bundle/ruby/*/gems).
	GemPaths []string `yaml:"gem_paths"`

	// GemCacheTTL bounds how long gem specs are reused between registry
	// lookups. Zero disables the cache.
	GemCacheTTL Duration `yaml:"gem_cache_ttl"`

	Compress bool `yaml:"compress"`
	Verbose  bool `yaml:"verbose"`
}

// Default returns the baseline configuration, rooted at the current working
// directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		AppRoot:            cwd,
		ExtractBase:        "route_extracts",
		IncludeModels:      true,
		IncludeViews:       true,
		IncludeControllers: true,
		IncludeHelpers:     true,
		IncludePartials:    true,
		IncludeConcerns:    true,
		IncludeGems:        false,
		IncludeTests:       false,
		MaxDepth:           3,
		FollowAssociations: false,
		GemCacheTTL:        Duration(15 * time.Minute),
	}
}

// Load reads a YAML configuration file and applies it on top of the
// defaults, then applies ROUTEPACK_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault loads .routepack.yml from the app root when present and
// falls back to defaults otherwise. Environment overrides apply either way.
func LoadOrDefault(appRoot string) *Config {
	if appRoot != "" {
		candidate := filepath.Join(appRoot, ".routepack.yml")
		if _, err := os.Stat(candidate); err == nil {
			if cfg, err := Load(candidate); err == nil {
				cfg.AppRoot = appRoot
				return cfg
			}
		}
	}

	cfg := Default()
	if appRoot != "" {
		cfg.AppRoot = appRoot
	}
	cfg.applyEnv()
	return cfg
}

// applyEnv applies ROUTEPACK_* environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("ROUTEPACK_APP_ROOT"); v != "" {
		c.AppRoot = v
	}
	if v := os.Getenv("ROUTEPACK_EXTRACT_BASE"); v != "" {
		c.ExtractBase = v
	}
	if v := os.Getenv("ROUTEPACK_GEM_PATHS"); v != "" {
		c.GemPaths = splitList(v)
	}
	if v := os.Getenv("ROUTEPACK_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxDepth = n
		}
	}
	if v := os.Getenv("ROUTEPACK_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Verbose = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, string(os.PathListSeparator)) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExtractPath returns the absolute bundle store root.
func (c *Config) ExtractPath() string {
	if filepath.IsAbs(c.ExtractBase) {
		return c.ExtractBase
	}
	return filepath.Join(c.AppRoot, c.ExtractBase)
}

// ApplyMode sets the model/view/controller toggles from a mode short code.
// Auxiliary category toggles (helpers, partials, concerns, gems, tests) are
// deliberately left untouched; they are independent of the m/v/c mode.
func (c *Config) ApplyMode(mode string) error {
	if _, ok := validModes[mode]; !ok {
		return fmt.Errorf("%w: %q (expected one of m, v, c, mv, mc, vc, mvc)", ErrInvalidMode, mode)
	}
	c.IncludeModels = strings.Contains(mode, "m")
	c.IncludeViews = strings.Contains(mode, "v")
	c.IncludeControllers = strings.Contains(mode, "c")
	return nil
}

// Mode derives the short code from the m/v/c toggles alone. Auxiliary
// toggles never influence the reported mode: with all three m/v/c flags off
// the mode is "none" even if helpers or partials are still enabled.
func (c *Config) Mode() string {
	var b strings.Builder
	if c.IncludeModels {
		b.WriteByte('m')
	}
	if c.IncludeViews {
		b.WriteByte('v')
	}
	if c.IncludeControllers {
		b.WriteByte('c')
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}

// ValidMode reports whether mode is a recognised short code.
func ValidMode(mode string) bool {
	_, ok := validModes[mode]
	return ok
}
