package extract

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routepack/routepack/internal/cache"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/deps"
	"github.com/routepack/routepack/internal/gems"
	"github.com/routepack/routepack/internal/routes"
)

type staticTable struct {
	entries []routes.Entry
}

func (t staticTable) Entries() ([]routes.Entry, error) {
	return t.entries, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeAppFile(t *testing.T, appRoot, rel, content string) {
	t.Helper()
	path := filepath.Join(appRoot, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func fixtureExtractor(t *testing.T) (*Extractor, *config.Config) {
	t.Helper()
	appRoot := t.TempDir()

	writeAppFile(t, appRoot, "app/controllers/users_controller.rb", `
class UsersController < ApplicationController
  def index
    @users = User.where(active: true)
  end
end
`)
	writeAppFile(t, appRoot, "app/models/user.rb", "class User < ApplicationRecord\nend\n")
	writeAppFile(t, appRoot, "app/views/users/index.html.erb", "<h1>Users</h1>")
	writeAppFile(t, appRoot, "app/helpers/users_helper.rb", "module UsersHelper\nend\n")

	cfg := config.Default()
	cfg.AppRoot = appRoot

	table := staticTable{entries: []routes.Entry{
		{
			Method: "GET",
			Path:   "/users(.:format)",
			Name:   "users",
			Defaults: map[string]string{
				"controller": "users",
				"action":     "index",
			},
		},
		{
			Method: "GET",
			Path:   "/users/archive(.:format)",
			Name:   "archive_users",
			Defaults: map[string]string{
				"controller": "users",
				"action":     "archive",
			},
		},
	}}

	resolver := routes.NewResolver(table, testLogger())
	depResolver := deps.NewResolver(cfg, testLogger())
	registry := gems.NewLocalRegistry(appRoot, []string{filepath.Join(appRoot, "no_gems")}, testLogger())
	analyzer := gems.NewAnalyzer(registry, cache.New[*gems.Spec](0), testLogger())

	return NewExtractor(cfg, resolver, depResolver, analyzer, testLogger()), cfg
}

func TestExtractRoute(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	result, err := e.ExtractRoute("users#index", OptionsFromConfig(cfg))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Regexp(t, regexp.MustCompile(`^users_index_\d{8}_\d{6}$`), filepath.Base(result.BundlePath))
	assert.Equal(t, 4, result.FileCount)
	assert.Positive(t, result.TotalSize)

	// Bundle contents mirror the closure's categories.
	for _, rel := range []string{
		"controllers/users_controller.rb",
		"models/user.rb",
		"views/users/index.html.erb",
		"helpers/users_helper.rb",
		ManifestFileName,
	} {
		_, statErr := os.Stat(filepath.Join(result.BundlePath, filepath.FromSlash(rel)))
		assert.NoError(t, statErr, rel)
	}

	manifest, err := ReadManifest(result.BundlePath)
	require.NoError(t, err)
	assert.Equal(t, ManifestVersion, manifest.Version)
	assert.NotEmpty(t, manifest.ExtractionID)
	assert.Equal(t, "users#index", manifest.Route.Pattern)
	assert.Equal(t, "mvc", manifest.Options.Mode)
	assert.Equal(t, result.FileCount, manifest.Files.Count)
	assert.Len(t, manifest.Files.List, manifest.Files.Count)
	assert.NotContains(t, manifest.Files.List, ManifestFileName)
	assert.Equal(t, result.TotalSize, manifest.Statistics.TotalSizeBytes)
}

func TestExtractRouteModeLimitsCategories(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	opts := OptionsFromConfig(cfg)
	opts.Mode = "v"
	opts.IncludeHelpers = false

	result, err := e.ExtractRoute("users#index", opts)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	manifest, err := ReadManifest(result.BundlePath)
	require.NoError(t, err)
	assert.Equal(t, "v", manifest.Options.Mode)
	assert.Equal(t, []string{"views/users/index.html.erb"}, manifest.Files.List)

	_, statErr := os.Stat(filepath.Join(result.BundlePath, "controllers"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractRouteHelpersOnly(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	// All three primary toggles off is a legal configuration; the derived
	// mode is "none" and only the auxiliary categories are copied.
	cfg.IncludeModels = false
	cfg.IncludeViews = false
	cfg.IncludeControllers = false

	opts := OptionsFromConfig(cfg)
	require.Equal(t, "none", opts.Mode)

	result, err := e.ExtractRoute("users#index", opts)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	manifest, err := ReadManifest(result.BundlePath)
	require.NoError(t, err)
	assert.Equal(t, "none", manifest.Options.Mode)
	assert.Equal(t, []string{"helpers/users_helper.rb"}, manifest.Files.List)
}

func TestExtractRouteUnresolvable(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	result, err := e.ExtractRoute("ghosts#haunt", OptionsFromConfig(cfg))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "route not found")

	// No partial bundle is left behind.
	entries, readErr := os.ReadDir(cfg.ExtractPath())
	if readErr == nil {
		assert.Empty(t, entries)
	}
}

func TestExtractRouteInvalidMode(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	opts := OptionsFromConfig(cfg)
	opts.Mode = "xyz"

	_, err := e.ExtractRoute("users#index", opts)
	require.ErrorIs(t, err, config.ErrInvalidMode)
}

func TestExtractRoutesBatchIndependence(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	batch, err := e.ExtractRoutes([]string{"users#index", "ghosts#haunt"}, OptionsFromConfig(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
	require.Len(t, batch.Results, 2)
	assert.True(t, batch.Results[0].Success)
	assert.False(t, batch.Results[1].Success)
	assert.Equal(t, batch.Results[0].FileCount, batch.TotalFiles)
}

func TestExtractRoutesExpandsBarePatterns(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	// "users" names no action, so it covers every matching route.
	batch, err := e.ExtractRoutes([]string{"users"}, OptionsFromConfig(cfg))
	require.NoError(t, err)

	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, 0, batch.FailureCount)
	require.Len(t, batch.Results, 2)
	assert.ElementsMatch(t,
		[]string{"users#index", "users#archive"},
		[]string{batch.Results[0].Pattern, batch.Results[1].Pattern})
}

func TestExtractRoutesBarePatternWithoutMatches(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	batch, err := e.ExtractRoutes([]string{"ghosts"}, OptionsFromConfig(cfg))
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, 1, batch.FailureCount)
	assert.Contains(t, batch.Results[0].Error, "route not found")
}

func TestExtractRoutesInvalidModeIsFatal(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	opts := OptionsFromConfig(cfg)
	opts.Mode = "bogus"

	_, err := e.ExtractRoutes([]string{"users#index"}, opts)
	require.ErrorIs(t, err, config.ErrInvalidMode)
}

func TestExtractRouteCompress(t *testing.T) {
	e, cfg := fixtureExtractor(t)

	opts := OptionsFromConfig(cfg)
	opts.Compress = true

	result, err := e.ExtractRoute("users#index", opts)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	require.True(t, filepath.Ext(result.BundlePath) == ".zip")

	// The directory is replaced by the archive.
	dir := result.BundlePath[:len(result.BundlePath)-len(".zip")]
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))

	zr, err := zip.OpenReader(result.BundlePath)
	require.NoError(t, err)
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	root := filepath.Base(dir)
	assert.True(t, names[root+"/"+ManifestFileName])
	assert.True(t, names[root+"/controllers/users_controller.rb"])
}

func TestWithoutPartials(t *testing.T) {
	views := []string{
		"app/views/users/_form.html.erb",
		"app/views/users/index.html.erb",
	}
	assert.Equal(t, []string{"app/views/users/index.html.erb"}, withoutPartials(views))
}

func TestBundleName(t *testing.T) {
	at := time.Date(2024, 1, 31, 15, 45, 0, 0, time.Local)

	route := &routes.Route{Controller: "users", Action: "index"}
	assert.Equal(t, "users_index_20240131_154500", bundleName(route, at))

	namespaced := &routes.Route{Controller: "admin/users", Action: "show"}
	assert.Equal(t, "admin_users_show_20240131_154500", bundleName(namespaced, at))
}
