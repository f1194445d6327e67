package gems

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeGemFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

// fixtureGems installs two devise versions plus an unrelated gem under one
// gem root.
func fixtureGems(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeGemFile(t, root, "devise-4.8.0/lib/devise.rb", 10)
	writeGemFile(t, root, "devise-4.9.3/lib/devise.rb", 20)
	writeGemFile(t, root, "devise-4.9.3/lib/devise/version.rb", 5)
	writeGemFile(t, root, "devise-4.9.3/README.md", 8)
	writeGemFile(t, root, "devise-4.9.3/spec/devise_spec.rb", 4)
	writeGemFile(t, root, "kaminari-1.2.2/lib/kaminari.rb", 7)

	return root
}

func fixtureAppRoot(t *testing.T) string {
	t.Helper()
	appRoot := t.TempDir()
	lock := `GEM
  remote: https://rubygems.org/
  specs:
    devise (4.9.3)
      bcrypt (~> 3.0)
      warden (~> 1.2.3)
    kaminari (1.2.2)

PLATFORMS
  ruby

DEPENDENCIES
  devise
`
	require.NoError(t, os.WriteFile(filepath.Join(appRoot, "Gemfile.lock"), []byte(lock), 0644))
	return appRoot
}

func TestFindByName(t *testing.T) {
	gemRoot := fixtureGems(t)
	registry := NewLocalRegistry(fixtureAppRoot(t), []string{gemRoot}, testLogger())

	spec, err := registry.FindByName("devise")
	require.NoError(t, err)

	// Highest installed version wins.
	assert.Equal(t, "devise", spec.Name)
	assert.Equal(t, "4.9.3", spec.Version)
	assert.Equal(t, filepath.Join(gemRoot, "devise-4.9.3"), spec.Dir)
	assert.Equal(t, []string{"bcrypt", "warden"}, spec.Dependencies)
	assert.Equal(t, []string{
		"README.md",
		"lib/devise.rb",
		"lib/devise/version.rb",
		"spec/devise_spec.rb",
	}, spec.Files)
	assert.Equal(t, int64(37), spec.TotalSize)
}

func TestFindByNameNotFound(t *testing.T) {
	registry := NewLocalRegistry(fixtureAppRoot(t), []string{fixtureGems(t)}, testLogger())

	_, err := registry.FindByName("pundit")
	require.ErrorIs(t, err, ErrGemNotFound)
}

func TestFindByNameExactPrefixOnly(t *testing.T) {
	// "kaminari" must not match a lookup for "kamin".
	registry := NewLocalRegistry(fixtureAppRoot(t), []string{fixtureGems(t)}, testLogger())

	_, err := registry.FindByName("kamin")
	require.ErrorIs(t, err, ErrGemNotFound)
}

func TestFindByNameWithoutLockfile(t *testing.T) {
	registry := NewLocalRegistry(t.TempDir(), []string{fixtureGems(t)}, testLogger())

	spec, err := registry.FindByName("devise")
	require.NoError(t, err)
	assert.Empty(t, spec.Dependencies)
}
