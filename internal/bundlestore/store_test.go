package bundlestore

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routepack/routepack/internal/extract"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), testLogger())
}

// writeBundle materialises a valid bundle directory with a manifest listing
// the given files.
func writeBundle(t *testing.T, root, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))

	for _, rel := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("content\n"), 0644))
	}

	m := &extract.Manifest{
		Version:      extract.ManifestVersion,
		ExtractionID: "test-" + name,
		GeneratedAt:  time.Now().UTC(),
		Route: extract.ManifestRoute{
			Pattern:    "users#index",
			Controller: "users",
			Action:     "index",
			Method:     "GET",
		},
		Options: extract.ManifestOpts{Mode: "mvc", Categories: []string{"controllers"}},
		Files:   extract.ManifestFiles{Count: len(files), List: files},
	}
	require.NoError(t, m.Write(dir))
	return dir
}

func TestListEmptyStore(t *testing.T) {
	s := testStore(t)

	bundles, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestListMissingRootIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "never_created"), testLogger())

	bundles, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := testStore(t)
	writeBundle(t, s.Root(), "users_index_20240101_120000", "controllers/a.rb")
	writeBundle(t, s.Root(), "posts_show_20240601_120000", "controllers/b.rb")
	writeBundle(t, s.Root(), "undated_bundle", "controllers/c.rb")

	bundles, err := s.List()
	require.NoError(t, err)
	require.Len(t, bundles, 3)

	assert.Equal(t, "posts_show_20240601_120000", bundles[0].Name)
	assert.Equal(t, "users_index_20240101_120000", bundles[1].Name)
	assert.Equal(t, "undated_bundle", bundles[2].Name)
	assert.False(t, bundles[2].HasCreated)
}

func TestListReportsInvalidBundles(t *testing.T) {
	s := testStore(t)
	writeBundle(t, s.Root(), "users_index_20240101_120000", "controllers/a.rb")
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "users_index_20240201_120000"), 0755))

	bundles, err := s.List()
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	// The manifest-less directory is listed, flagged invalid.
	assert.False(t, bundles[0].Valid)
	assert.NotEmpty(t, bundles[0].Error)
	assert.True(t, bundles[1].Valid)
	assert.Equal(t, "users#index", bundles[1].Route)
	assert.Equal(t, 1, bundles[1].FileCount)
}

func TestListArchivedBundles(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.MkdirAll(s.Root(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "users_index_20240101_120000.zip"), []byte("PK"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "stray.txt"), []byte("x"), 0644))

	bundles, err := s.List()
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	assert.True(t, bundles[0].Archived)
	assert.True(t, bundles[0].Valid)
	assert.True(t, bundles[0].HasCreated)
}

func TestValidate(t *testing.T) {
	s := testStore(t)

	t.Run("valid bundle", func(t *testing.T) {
		dir := writeBundle(t, s.Root(), "users_index_20240101_120000", "controllers/a.rb", "models/b.rb")
		result := s.Validate(dir)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		require.NotNil(t, result.Manifest)
		assert.Equal(t, 2, result.Manifest.Files.Count)
	})

	t.Run("missing listed file", func(t *testing.T) {
		dir := writeBundle(t, s.Root(), "users_index_20240102_120000", "controllers/a.rb")
		require.NoError(t, os.Remove(filepath.Join(dir, "controllers", "a.rb")))

		result := s.Validate(dir)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "listed file missing")
	})

	t.Run("count mismatch", func(t *testing.T) {
		dir := writeBundle(t, s.Root(), "users_index_20240103_120000", "controllers/a.rb")
		m, err := extract.ReadManifest(dir)
		require.NoError(t, err)
		m.Files.Count = 5
		require.NoError(t, m.Write(dir))

		result := s.Validate(dir)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "does not match list length")
	})

	t.Run("no manifest", func(t *testing.T) {
		dir := filepath.Join(s.Root(), "users_index_20240104_120000")
		require.NoError(t, os.MkdirAll(dir, 0755))

		result := s.Validate(dir)
		assert.False(t, result.Valid)
		assert.Nil(t, result.Manifest)
	})
}

func TestStatistics(t *testing.T) {
	s := testStore(t)
	writeBundle(t, s.Root(), "users_index_20240101_120000", "controllers/a.rb")
	writeBundle(t, s.Root(), "posts_show_20240601_120000", "controllers/b.rb")

	stats, err := s.Statistics()
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Count)
	assert.Positive(t, stats.TotalSizeBytes)
	assert.NotEmpty(t, stats.TotalSize)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local), stats.Oldest)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local), stats.Newest)
}

func TestParseCreatedAt(t *testing.T) {
	tests := []struct {
		name string
		want time.Time
		ok   bool
	}{
		{"users_index_20240131_154500", time.Date(2024, 1, 31, 15, 45, 0, 0, time.Local), true},
		{"admin_users_show_20231201_000000.zip", time.Date(2023, 12, 1, 0, 0, 0, 0, time.Local), true},
		{"no_timestamp_here", time.Time{}, false},
		{"users_index_2024013_154500", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCreatedAt(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
