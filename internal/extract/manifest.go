package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/routepack/routepack/internal/routes"
)

// ManifestVersion is stamped into every manifest. Bump when the manifest
// shape changes.
const ManifestVersion = "1.0"

// ManifestFileName is the manifest's name at the bundle root.
const ManifestFileName = "manifest.json"

// Manifest describes a bundle's contents and provenance. Written once at
// extraction time, immutable afterwards, read back during validation.
type Manifest struct {
	Version      string        `json:"version"`
	ExtractionID string        `json:"extraction_id"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Route        ManifestRoute `json:"route"`
	Options      ManifestOpts  `json:"options"`
	Files        ManifestFiles `json:"files"`
	Statistics   ManifestStats `json:"statistics"`
}

// ManifestRoute records the resolved route the bundle was extracted for.
type ManifestRoute struct {
	Pattern    string `json:"pattern"`
	Controller string `json:"controller"`
	Action     string `json:"action"`
	Method     string `json:"method"`
	Path       string `json:"path,omitempty"`
}

// ManifestOpts records the extraction options in effect.
type ManifestOpts struct {
	Mode         string   `json:"mode"`
	IncludeGems  bool     `json:"include_gems"`
	IncludeTests bool     `json:"include_tests"`
	Categories   []string `json:"categories"`
}

// ManifestFiles lists every file in the bundle, paths relative to the
// bundle root.
type ManifestFiles struct {
	Count int      `json:"count"`
	List  []string `json:"list"`
}

// ManifestStats aggregates bundle size and composition.
type ManifestStats struct {
	TotalSizeBytes int64          `json:"total_size_bytes"`
	TotalSize      string         `json:"total_size"`
	FileTypes      map[string]int `json:"file_types"`
}

func newManifest(id string, route *routes.Route, mode string, includeGems, includeTests bool, categories []string, files []string, totalSize int64) *Manifest {
	sorted := append([]string{}, files...)
	sort.Strings(sorted)

	types := make(map[string]int)
	for _, f := range sorted {
		ext := filepath.Ext(f)
		if ext == "" {
			ext = "(none)"
		}
		types[ext]++
	}

	return &Manifest{
		Version:      ManifestVersion,
		ExtractionID: id,
		GeneratedAt:  time.Now().UTC(),
		Route: ManifestRoute{
			Pattern:    route.Pattern(),
			Controller: route.Controller,
			Action:     route.Action,
			Method:     route.Method,
			Path:       route.Path,
		},
		Options: ManifestOpts{
			Mode:         mode,
			IncludeGems:  includeGems,
			IncludeTests: includeTests,
			Categories:   categories,
		},
		Files: ManifestFiles{
			Count: len(sorted),
			List:  sorted,
		},
		Statistics: ManifestStats{
			TotalSizeBytes: totalSize,
			TotalSize:      humanize.Bytes(uint64(totalSize)),
			FileTypes:      types,
		},
	}
}

// Write serialises the manifest to the bundle root.
func (m *Manifest) Write(bundleDir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, ManifestFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest parses the manifest at the bundle root.
func ReadManifest(bundleDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(bundleDir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
