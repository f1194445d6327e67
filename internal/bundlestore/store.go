// Package bundlestore manages the lifecycle of previously extracted bundles:
// enumeration, manifest-backed validation, aggregate statistics and
// retention-policy cleanup. Creation time comes from the timestamp encoded
// in the bundle name, never from file-system metadata, which copying and
// archiving can alter.
package bundlestore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/extract"
)

// bundleNameRe captures the sortable timestamp suffix of a bundle name.
var bundleNameRe = regexp.MustCompile(`_(\d{8}_\d{6})(?:\.zip)?$`)

// BundleInfo describes one bundle in the store, valid or not.
type BundleInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Valid      bool      `json:"valid"`
	Error      string    `json:"error,omitempty"`
	Archived   bool      `json:"archived,omitempty"`
	Route      string    `json:"route,omitempty"`
	FileCount  int       `json:"file_count,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
	HasCreated bool      `json:"-"`
}

// ValidationResult reports a single bundle validation.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []string          `json:"errors,omitempty"`
	Manifest *extract.Manifest `json:"-"`
}

// Stats aggregates the store.
type Stats struct {
	Count          int       `json:"count"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	TotalSize      string    `json:"total_size"`
	Oldest         time.Time `json:"oldest,omitzero"`
	Newest         time.Time `json:"newest,omitzero"`
}

// Store enumerates and prunes bundles under a single root directory.
type Store struct {
	root   string
	logger *logrus.Logger
}

// NewStore creates a Store over the given root.
func NewStore(root string, logger *logrus.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// List returns every bundle in the store, newest first by encoded timestamp.
// Bundles whose name carries no timestamp sort last. Invalid bundles are
// included with their validation error rather than omitted.
func (s *Store) List() ([]BundleInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []BundleInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read bundle store: %w", err)
	}

	var bundles []BundleInfo
	for _, e := range entries {
		isZip := !e.IsDir() && strings.HasSuffix(e.Name(), ".zip")
		if !e.IsDir() && !isZip {
			continue
		}
		bundles = append(bundles, s.inspect(e.Name(), isZip))
	}

	sort.SliceStable(bundles, func(i, j int) bool {
		a, b := bundles[i], bundles[j]
		if a.HasCreated != b.HasCreated {
			return a.HasCreated
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return bundles, nil
}

// inspect builds the BundleInfo for one store entry.
func (s *Store) inspect(name string, isZip bool) BundleInfo {
	path := filepath.Join(s.root, name)
	info := BundleInfo{Name: name, Path: path, Archived: isZip}

	if created, ok := ParseCreatedAt(name); ok {
		info.CreatedAt = created
		info.HasCreated = true
	}
	info.SizeBytes = dirSize(path)

	if isZip {
		// Archived bundles keep their manifest inside the zip; content
		// validation applies to directory bundles only.
		info.Valid = true
		return info
	}

	result := s.Validate(path)
	info.Valid = result.Valid
	if !result.Valid {
		info.Error = strings.Join(result.Errors, "; ")
		return info
	}
	info.Route = result.Manifest.Route.Pattern
	info.FileCount = result.Manifest.Files.Count
	return info
}

// Validate checks a bundle directory against its manifest: the manifest must
// parse, carry the required keys, and every listed file must exist under the
// bundle root.
func (s *Store) Validate(bundlePath string) ValidationResult {
	manifest, err := extract.ReadManifest(bundlePath)
	if err != nil {
		return ValidationResult{Errors: []string{err.Error()}}
	}

	var errs []string
	if manifest.Version == "" {
		errs = append(errs, "manifest missing version")
	}
	if manifest.Route.Controller == "" || manifest.Route.Action == "" {
		errs = append(errs, "manifest missing route identity")
	}
	if manifest.Files.Count != len(manifest.Files.List) {
		errs = append(errs, fmt.Sprintf("manifest file count %d does not match list length %d", manifest.Files.Count, len(manifest.Files.List)))
	}
	for _, rel := range manifest.Files.List {
		if _, err := os.Stat(filepath.Join(bundlePath, filepath.FromSlash(rel))); err != nil {
			errs = append(errs, fmt.Sprintf("listed file missing: %s", rel))
		}
	}

	if len(errs) > 0 {
		return ValidationResult{Errors: errs, Manifest: manifest}
	}
	return ValidationResult{Valid: true, Manifest: manifest}
}

// Statistics aggregates bundle count, cumulative size and the encoded
// timestamp range.
func (s *Store) Statistics() (Stats, error) {
	bundles, err := s.List()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Count: len(bundles)}
	for _, b := range bundles {
		stats.TotalSizeBytes += b.SizeBytes
		if !b.HasCreated {
			continue
		}
		if stats.Oldest.IsZero() || b.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = b.CreatedAt
		}
		if stats.Newest.IsZero() || b.CreatedAt.After(stats.Newest) {
			stats.Newest = b.CreatedAt
		}
	}
	stats.TotalSize = humanize.Bytes(uint64(stats.TotalSizeBytes))
	return stats, nil
}

// ParseCreatedAt extracts the creation time encoded in a bundle name. A
// non-matching name means "no creation time available", not an error.
func ParseCreatedAt(name string) (time.Time, bool) {
	m := bundleNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(extract.TimestampLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dirSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
