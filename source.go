package pak

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	pakcore "github.com/meigma/pak/core"
	"github.com/meigma/pak/core/cache"
	"github.com/meigma/pak/core/dirtree"
	pakhttp "github.com/meigma/pak/core/http"
	"github.com/meigma/pak/value"
)

// PackedExt is the file extension that selects the packed archive backend.
const PackedExt = ".pak"

// Source is a read-only collection of assets addressed by absolute path.
//
// Both backends satisfy it: *core.Archive for packed archives and
// *dirtree.Tree for directories. Implementations are safe for concurrent
// reads.
type Source interface {
	// Exists reports whether an asset exists at path. Paths that do not
	// start with "/" never exist.
	Exists(path string) bool

	// Read returns the full content of the asset at path. It fails with
	// ErrNotAbsolute for relative paths and fs.ErrNotExist for missing
	// assets, both wrapped in *fs.PathError.
	Read(path string) ([]byte, error)

	// Paths returns every asset path in lexical order.
	Paths() []string

	// Meta returns a copy of the metadata value under key. It fails with
	// ErrKeyNotFound when the key is absent.
	Meta(key string) (value.Value, error)

	// Metadata returns a copy of the whole metadata value.
	Metadata() value.Value

	// Glob returns the asset paths matching a doublestar pattern.
	Glob(pattern string) ([]string, error)

	// Close releases the resources held by the source.
	Close() error
}

var (
	_ Source = (*pakcore.Archive)(nil)
	_ Source = (*dirtree.Tree)(nil)
)

// Open opens the asset source at location and picks its backend:
//
//   - an http:// or https:// URL is read as a packed archive with range requests
//   - a path ending in ".pak" is opened as a packed archive file
//   - any other path is scanned as a directory tree
//
// ctx bounds remote requests for the lifetime of the source; local
// sources ignore it.
func Open(ctx context.Context, location string, opts ...Option) (Source, error) {
	cfg := newConfig(opts)

	switch {
	case IsRemote(location):
		return openRemote(ctx, location, cfg)
	case IsPacked(location):
		a, err := pakcore.OpenFile(location, cfg.archiveOptions()...)
		if err != nil {
			return nil, err
		}
		cfg.log().Info("opened packed archive", "path", location, "assets", a.Len())
		return a, nil
	default:
		t, err := dirtree.Open(location, cfg.treeOptions()...)
		if err != nil {
			return nil, err
		}
		cfg.log().Info("opened directory source", "path", location, "assets", t.Len())
		return t, nil
	}
}

func openRemote(ctx context.Context, url string, cfg *config) (Source, error) {
	httpOpts := []pakhttp.Option{pakhttp.WithLogger(cfg.log())}
	if cfg.httpClient != nil {
		httpOpts = append(httpOpts, pakhttp.WithClient(cfg.httpClient))
	}
	for _, h := range cfg.httpHeaders {
		httpOpts = append(httpOpts, pakhttp.WithHeader(h[0], h[1]))
	}
	src, err := pakhttp.NewSource(ctx, url, httpOpts...)
	if err != nil {
		return nil, err
	}
	a, err := pakcore.New(src, cfg.archiveOptions()...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	cfg.log().Info("opened remote archive", "url", url, "assets", a.Len(), "size", src.Size())
	return a, nil
}

// IsPacked reports whether location names a packed archive file.
func IsPacked(location string) bool {
	return strings.EqualFold(filepath.Ext(location), PackedExt)
}

// IsRemote reports whether location is an HTTP URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ReadString returns the content of the asset at path as a string.
func ReadString(src Source, path string) (string, error) {
	data, err := src.Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// streamer is implemented by sources that can read an asset without
// loading it into memory.
type streamer interface {
	Reader(path string) (*io.SectionReader, error)
}

// sizer is implemented by sources that report asset sizes without
// reading the content.
type sizer interface {
	AssetSize(path string) (int64, error)
}

// OpenAsset returns a reader over the asset at path. Archives stream from
// their byte source; other sources read the asset into memory first.
func OpenAsset(src Source, path string) (*io.SectionReader, error) {
	if s, ok := src.(streamer); ok {
		return s.Reader(path)
	}
	data, err := src.Read(path)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data))), nil
}

// AssetSize returns the size of the asset at path.
func AssetSize(src Source, path string) (int64, error) {
	if s, ok := src.(sizer); ok {
		return s.AssetSize(path)
	}
	data, err := src.Read(path)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Option configures Open.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	cache         cache.Cache
	maxFileSize   *uint64
	metadataFiles []string
	httpClient    *http.Client
	httpHeaders   [][2]string
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *config) archiveOptions() []pakcore.Option {
	opts := []pakcore.Option{pakcore.WithLogger(c.log())}
	if c.cache != nil {
		opts = append(opts, pakcore.WithCache(c.cache))
	}
	if c.maxFileSize != nil {
		opts = append(opts, pakcore.WithMaxFileSize(*c.maxFileSize))
	}
	return opts
}

func (c *config) treeOptions() []dirtree.Option {
	opts := []dirtree.Option{dirtree.WithLogger(c.log())}
	if c.metadataFiles != nil {
		opts = append(opts, dirtree.WithMetadataFiles(c.metadataFiles...))
	}
	if c.maxFileSize != nil {
		opts = append(opts, dirtree.WithMaxFileSize(*c.maxFileSize))
	}
	return opts
}

// WithLogger sets the logger passed to the selected backend.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithCache enables asset caching for packed archives.
func WithCache(store cache.Cache) Option {
	return func(c *config) {
		c.cache = store
	}
}

// WithMaxFileSize limits the size of assets returned by Read on either
// backend, which then fails with ErrTooLarge. Zero disables the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(c *config) {
		c.maxFileSize = &limit
	}
}

// WithMetadataFiles sets the sidecar names read by directory sources.
// The last one present wins.
func WithMetadataFiles(names ...string) Option {
	return func(c *config) {
		c.metadataFiles = append([]string{}, names...)
	}
}

// WithHTTPClient sets the client used for remote archives.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithHTTPHeader adds a header, such as Authorization, to every remote request.
func WithHTTPHeader(key, val string) Option {
	return func(c *config) {
		c.httpHeaders = append(c.httpHeaders, [2]string{key, val})
	}
}
