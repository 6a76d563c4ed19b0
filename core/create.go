package pak

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/pak/core/internal/paktype"
	"github.com/meigma/pak/core/internal/platform"
	"github.com/meigma/pak/value"
)

// Create builds a packed archive from the contents of dir and writes it to ws.
//
// Files are written in lexical walk order. The sidecar files at the root
// of dir ("_metadata" and ".metadata" by default) are parsed as JSON and
// the last one present is stored as the archive metadata; it must hold an
// object and is not itself packed.
//
// Create walks dir recursively, including all regular files. Empty
// directories are not preserved. Symbolic links are skipped.
//
// The context can be used for cancellation of long-running archive creation.
func Create(ctx context.Context, dir string, ws io.WriteSeeker, opts ...CreateOption) error {
	cfg := createConfig{metadataFiles: paktype.MetadataFiles}
	for _, opt := range opts {
		opt(&cfg)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	c := &creator{cfg: cfg, root: root}
	c.log().Info("creating archive", "dir", dir)

	metadata, sidecar, err := c.metadata()
	if err != nil {
		return err
	}
	if sidecar != "" {
		c.cfg.skip = withSkip(c.cfg.skip, sidecar)
		c.log().Debug("loaded metadata sidecar", "file", sidecar, "keys", len(metadata))
	}

	w, err := NewWriter(ws)
	if err != nil {
		return err
	}
	if err := w.SetMetadata(metadata); err != nil {
		return err
	}
	if err := c.writeAssets(ctx, w); err != nil {
		return err
	}

	c.reportProgress(StageIndexing, "", w.Len())
	if err := w.Close(); err != nil {
		return err
	}
	c.log().Debug("archive written", "file_count", w.Len(), "data_size", c.bytes)
	return nil
}

// creator holds state for archive creation.
type creator struct {
	cfg   createConfig
	root  *os.Root
	bytes uint64
}

// log returns the logger, falling back to a discard logger if nil.
func (c *creator) log() *slog.Logger {
	if c.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.cfg.logger
}

// reportProgress sends a progress event if a callback is configured.
func (c *creator) reportProgress(stage ProgressStage, path string, filesDone int) {
	if c.cfg.progress == nil {
		return
	}
	c.cfg.progress(ProgressEvent{
		Stage:     stage,
		Path:      path,
		BytesDone: c.bytes,
		FilesDone: filesDone,
	})
}

// metadata loads the sidecar and applies option overrides.
func (c *creator) metadata() (value.Object, string, error) {
	v, name, err := paktype.LoadSidecar(c.root.FS(), c.cfg.metadataFiles)
	if err != nil {
		return nil, "", err
	}
	out := value.Object{}
	if v != nil {
		obj, ok := v.(value.Object)
		if !ok {
			return nil, "", fmt.Errorf("%s: %w", name, ErrMetadataNotObject)
		}
		out = obj
	}
	for k, e := range c.cfg.metadata {
		out[k] = e
	}
	return out, name, nil
}

// writeAssets walks the directory tree and writes each regular file to w.
func (c *creator) writeAssets(ctx context.Context, w *Writer) error {
	maxFiles := c.cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}

	c.reportProgress(StageScanning, "", 0)

	return fs.WalkDir(c.root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == "." {
			return nil
		}
		asset, err := paktype.FromRel(path)
		if err != nil {
			return fmt.Errorf("%w: %q", err, path)
		}
		if d.IsDir() {
			if paktype.MatchAny(c.cfg.ignore, asset) {
				c.log().Debug("skipped ignored directory", "path", asset)
				return fs.SkipDir
			}
			return nil
		}
		if c.cfg.skip[path] || paktype.MatchAny(c.cfg.ignore, asset) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			c.log().Debug("skipped symlink", "path", asset)
			return nil
		}
		if !d.Type().IsRegular() {
			c.log().Debug("skipped irregular file", "path", asset, "type", d.Type().String())
			return nil
		}
		if maxFiles > 0 && w.Len() >= maxFiles {
			return ErrTooManyFiles
		}
		return c.writeAsset(w, path, asset)
	})
}

func (c *creator) writeAsset(w *Writer, path, asset string) error {
	f, err := platform.OpenNoFollow(c.root, filepath.FromSlash(path))
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := w.WriteFile(asset, f)
	if err != nil {
		return err
	}
	c.bytes += uint64(n) //nolint:gosec // io.Copy never returns a negative count
	c.reportProgress(StageWriting, asset, w.Len())
	return nil
}

func withSkip(skip map[string]bool, rel string) map[string]bool {
	if skip == nil {
		skip = make(map[string]bool)
	}
	skip[rel] = true
	return skip
}
