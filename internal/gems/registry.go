// Package gems resolves installed gem metadata and classifies which files of
// a gem are worth carrying into an extraction bundle. The installed-package
// registry is an external collaborator consumed through the Registry
// interface; LocalRegistry is the file-system implementation.
package gems

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrGemNotFound indicates the gem is not installed in any configured gem
// path. Expected and frequent during batch extraction: a detected signature
// does not guarantee the gem is present.
var ErrGemNotFound = errors.New("gem not found")

// Spec is the install metadata of one gem.
type Spec struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Dir          string   `json:"dir"`
	Dependencies []string `json:"dependencies,omitempty"`
	Files        []string `json:"files,omitempty"`
	TotalSize    int64    `json:"total_size"`
}

// Registry looks up installed gems by name.
type Registry interface {
	FindByName(name string) (*Spec, error)
}

// gemDirRe matches installed gem directory names: name-1.2.3, name-1.2.3.rc1.
var gemDirRe = regexp.MustCompile(`^(.+)-(\d[\w.]*)$`)

// lockfileGemRe matches "    name (1.2.3)" entries in Gemfile.lock.
var lockfileGemRe = regexp.MustCompile(`^ {4}([\w.\-]+) \(([\d][\w.]*)\)`)

// lockfileDepRe matches "      dep (>= 0)" dependency lines in Gemfile.lock.
var lockfileDepRe = regexp.MustCompile(`^ {6}([\w.\-]+)`)

// LocalRegistry finds gems by scanning configured install roots, using the
// application's Gemfile.lock (when present) for declared dependencies.
type LocalRegistry struct {
	gemPaths []string
	lockDeps map[string][]string
	logger   *logrus.Logger
}

// NewLocalRegistry creates a registry over the given gem install roots. When
// no roots are given, $GEM_HOME/gems and vendor/bundle under the app root
// are probed. The Gemfile.lock at appRoot, if readable, supplies declared
// dependency lists.
func NewLocalRegistry(appRoot string, gemPaths []string, logger *logrus.Logger) *LocalRegistry {
	if len(gemPaths) == 0 {
		gemPaths = defaultGemPaths(appRoot)
	}
	return &LocalRegistry{
		gemPaths: gemPaths,
		lockDeps: parseLockfile(filepath.Join(appRoot, "Gemfile.lock"), logger),
		logger:   logger,
	}
}

func defaultGemPaths(appRoot string) []string {
	var paths []string
	if gemHome := os.Getenv("GEM_HOME"); gemHome != "" {
		paths = append(paths, filepath.Join(gemHome, "gems"))
	}
	// vendor/bundle/ruby/<version>/gems
	pattern := filepath.Join(appRoot, "vendor", "bundle", "ruby", "*", "gems")
	if matches, err := filepath.Glob(pattern); err == nil {
		paths = append(paths, matches...)
	}
	return paths
}

// parseLockfile extracts the declared dependencies of each gem from a
// Gemfile.lock GEM section. Missing or malformed lockfiles are tolerated.
func parseLockfile(path string, logger *logrus.Logger) map[string][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	deps := make(map[string][]string)
	var current string
	inGems := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "GEM":
			inGems = true
		case line != "" && !strings.HasPrefix(line, " "):
			inGems = false
		case !inGems:
		case lockfileGemRe.MatchString(line):
			m := lockfileGemRe.FindStringSubmatch(line)
			current = m[1]
			deps[current] = []string{}
		case current != "" && lockfileDepRe.MatchString(line):
			m := lockfileDepRe.FindStringSubmatch(line)
			deps[current] = append(deps[current], m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).WithField("file", path).Debug("Failed reading Gemfile.lock")
	}
	return deps
}

// FindByName locates the gem's install directory and returns its metadata.
// When multiple installed versions exist the highest-sorting one wins.
func (r *LocalRegistry) FindByName(name string) (*Spec, error) {
	var candidates []string
	for _, root := range r.gemPaths {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if m := gemDirRe.FindStringSubmatch(e.Name()); m != nil && m[1] == name {
				candidates = append(candidates, filepath.Join(root, e.Name()))
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGemNotFound, name)
	}

	sort.Strings(candidates)
	dir := candidates[len(candidates)-1]
	version := gemDirRe.FindStringSubmatch(filepath.Base(dir))[2]

	files, totalSize, err := listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of gem %s: %w", name, err)
	}

	return &Spec{
		Name:         name,
		Version:      version,
		Dir:          dir,
		Dependencies: r.lockDeps[name],
		Files:        files,
		TotalSize:    totalSize,
	}, nil
}

// listFiles walks the gem directory, returning relative forward-slashed
// paths and the cumulative size.
func listFiles(dir string) ([]string, int64, error) {
	var files []string
	var total int64
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are omitted, not fatal.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(files)
	return files, total, nil
}
