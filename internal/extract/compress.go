package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// compressBundle archives the bundle directory into a sibling .zip and
// removes the directory, returning the archive path. Entry paths are rooted
// at the bundle name so the archive unpacks into a single directory.
func compressBundle(bundleDir string) (string, error) {
	zipPath := bundleDir + ".zip"

	out, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	root := filepath.Base(bundleDir)

	walkErr := filepath.WalkDir(bundleDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bundleDir, p)
		if err != nil {
			return err
		}

		h := &zip.FileHeader{
			Name:   root + "/" + filepath.ToSlash(rel),
			Method: zip.Deflate,
		}
		h.SetMode(0o644)
		if info, err := d.Info(); err == nil {
			h.Modified = info.ModTime()
		}

		w, err := zw.CreateHeader(h)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})

	if walkErr != nil {
		_ = zw.Close()
		_ = out.Close()
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("failed to archive bundle: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("failed to finalise archive: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	if err := os.RemoveAll(bundleDir); err != nil {
		return "", fmt.Errorf("failed to remove uncompressed bundle: %w", err)
	}
	return zipPath, nil
}
