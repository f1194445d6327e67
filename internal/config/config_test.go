package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMode(t *testing.T) {
	tests := []struct {
		mode        string
		models      bool
		views       bool
		controllers bool
	}{
		{"m", true, false, false},
		{"v", false, true, false},
		{"c", false, false, true},
		{"mv", true, true, false},
		{"mc", true, false, true},
		{"vc", false, true, true},
		{"mvc", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.ApplyMode(tt.mode))
			assert.Equal(t, tt.models, cfg.IncludeModels)
			assert.Equal(t, tt.views, cfg.IncludeViews)
			assert.Equal(t, tt.controllers, cfg.IncludeControllers)
			assert.Equal(t, tt.mode, cfg.Mode())
		})
	}
}

func TestApplyModeInvalid(t *testing.T) {
	for _, mode := range []string{"", "x", "vm", "mvcx", "MVC", "models"} {
		t.Run("invalid_"+mode, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyMode(mode)
			require.ErrorIs(t, err, ErrInvalidMode)
		})
	}
}

func TestApplyModeLeavesAuxiliaryTogglesAlone(t *testing.T) {
	cfg := Default()
	cfg.IncludeHelpers = true
	cfg.IncludeGems = true
	cfg.IncludeTests = true

	require.NoError(t, cfg.ApplyMode("v"))

	assert.True(t, cfg.IncludeHelpers)
	assert.True(t, cfg.IncludeGems)
	assert.True(t, cfg.IncludeTests)
}

func TestModeNoneWhenAllPrimaryTogglesOff(t *testing.T) {
	cfg := Default()
	cfg.IncludeModels = false
	cfg.IncludeViews = false
	cfg.IncludeControllers = false
	cfg.IncludeHelpers = true // auxiliary toggles never influence the mode

	assert.Equal(t, "none", cfg.Mode())
}

func TestValidMode(t *testing.T) {
	assert.True(t, ValidMode("mvc"))
	assert.True(t, ValidMode("m"))
	assert.False(t, ValidMode("vm"))
	assert.False(t, ValidMode(""))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".routepack.yml")
	content := `
extract_base: bundles
include_gems: true
include_tests: true
max_depth: 5
follow_associations: true
compress: true
gem_cache_ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bundles", cfg.ExtractBase)
	assert.True(t, cfg.IncludeGems)
	assert.True(t, cfg.IncludeTests)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.True(t, cfg.FollowAssociations)
	assert.True(t, cfg.Compress)
	assert.Equal(t, Duration(time.Minute), cfg.GemCacheTTL)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.IncludeModels)
}

func TestLoadGemCacheTTLForms(t *testing.T) {
	tests := []struct {
		yaml string
		want Duration
	}{
		{"gem_cache_ttl: 15m", Duration(15 * time.Minute)},
		{"gem_cache_ttl: 1h30m", Duration(90 * time.Minute)},
		{"gem_cache_ttl: 60000000000", Duration(time.Minute)}, // raw nanoseconds
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), ".routepack.yml")
		require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

		cfg, err := Load(path)
		require.NoError(t, err, tt.yaml)
		assert.Equal(t, tt.want, cfg.GemCacheTTL, tt.yaml)
	}

	path := filepath.Join(t.TempDir(), ".routepack.yml")
	require.NoError(t, os.WriteFile(path, []byte("gem_cache_ttl: soon"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("no config file", func(t *testing.T) {
		dir := t.TempDir()
		cfg := LoadOrDefault(dir)
		assert.Equal(t, dir, cfg.AppRoot)
		assert.Equal(t, "route_extracts", cfg.ExtractBase)
	})

	t.Run("config file present", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".routepack.yml"), []byte("extract_base: out\n"), 0644))
		cfg := LoadOrDefault(dir)
		assert.Equal(t, dir, cfg.AppRoot)
		assert.Equal(t, "out", cfg.ExtractBase)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROUTEPACK_EXTRACT_BASE", "/tmp/elsewhere")
	t.Setenv("ROUTEPACK_MAX_DEPTH", "7")

	cfg := LoadOrDefault(t.TempDir())
	assert.Equal(t, "/tmp/elsewhere", cfg.ExtractBase)
	assert.Equal(t, 7, cfg.MaxDepth)
}

func TestExtractPath(t *testing.T) {
	cfg := Default()
	cfg.AppRoot = "/srv/app"
	cfg.ExtractBase = "route_extracts"
	assert.Equal(t, filepath.Join("/srv/app", "route_extracts"), cfg.ExtractPath())

	cfg.ExtractBase = "/var/bundles"
	assert.Equal(t, "/var/bundles", cfg.ExtractPath())
}
