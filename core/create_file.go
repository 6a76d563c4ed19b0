package pak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// CreateFile builds a packed archive from srcDir and writes it to destPath.
//
// The archive is written to a temp file next to destPath and renamed into
// place, so readers never see a partial archive. Parent directories are
// created as needed. destPath may lie inside srcDir; the archive does not
// include itself.
func CreateFile(ctx context.Context, srcDir, destPath string, opts ...CreateOption) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pak-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	opts = slices.Clip(opts)
	for _, p := range []string{tmpPath, destPath} {
		if rel, ok := relWithin(srcDir, p); ok {
			opts = append(opts, createSkipping(rel))
		}
	}

	if err := Create(ctx, srcDir, tmp, opts...); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename to destination: %w", err)
	}
	success = true
	return nil
}

// relWithin returns the slash path of target relative to dir when target
// lies inside dir.
func relWithin(dir, target string) (string, bool) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
