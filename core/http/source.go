// Package http reads packed archives served over HTTP.
//
// Source turns a URL into a ByteSource using range requests, so an
// archive's index and individual assets can be fetched without
// downloading the whole file.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ErrRangeUnsupported is returned when the server ignores Range headers.
var ErrRangeUnsupported = errors.New("range requests not supported")

// Source implements random access reads via HTTP range requests.
// It satisfies pak.ByteSource (io.ReaderAt plus Size and SourceID) and is
// safe for concurrent use.
type Source struct {
	ctx          context.Context //nolint:containedctx // ReadAt has no context parameter
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	size         int64
	etag         string
	lastModified string
	sourceID     string
	conditional  bool
	logger       *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header on each request, such as Authorization.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier used to key cached assets.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithConditionalHeaders makes range reads conditional on the ETag or
// Last-Modified seen when the source was created, so a replaced archive
// is detected instead of read as garbage. Off by default because some
// servers reject conditional range requests.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.conditional = true
	}
}

// WithLogger sets the logger for request tracing.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource fetches the size and validators of url and returns a Source.
//
// ctx bounds the initial requests and every later ReadAt.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		ctx:    ctx,
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if err := s.stat(); err != nil {
		return nil, fmt.Errorf("stat %s: %w", url, err)
	}
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	s.logger.Debug("http source ready", "url", url, "size", s.size, "etag", s.etag)
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote content.
func (s *Source) SourceID() string {
	return s.sourceID
}

// ReadAt reads len(p) bytes at off with a single range request. It
// implements io.ReaderAt: a read that reaches the end of the content
// returns the bytes available along with io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := min(int64(len(p)), s.size-off)
	resp, err := s.get(off, off+want-1)
	if err != nil {
		return 0, err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case nethttp.StatusOK:
		return 0, ErrRangeUnsupported
	default:
		return 0, fmt.Errorf("range request failed: %s", resp.Status)
	}

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// get issues a range request for [off, end]. A conditional request that
// fails its precondition is retried once without conditions.
func (s *Source) get(off, end int64) (*nethttp.Response, error) {
	s.logger.Debug("range request", "url", s.url, "off", off, "len", end-off+1)
	resp, err := s.do(nethttp.MethodGet, off, end, s.conditional)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == nethttp.StatusPreconditionFailed && s.conditional && s.hasValidators() {
		drain(resp.Body)
		s.logger.Warn("conditional range request rejected; retrying", "url", s.url)
		return s.do(nethttp.MethodGet, off, end, false)
	}
	return resp, nil
}

func (s *Source) defaultSourceID() string {
	key := fmt.Sprintf("%s|%d", s.url, s.size)
	switch {
	case s.etag != "":
		key += "|etag:" + s.etag
	case s.lastModified != "":
		key += "|mod:" + s.lastModified
	}
	return "http:" + digest.FromString(key).Encoded()
}

// stat learns the content size from a HEAD request, then confirms range
// support with a one-byte range request.
func (s *Source) stat() error {
	headSize := int64(-1)
	if resp, err := s.do(nethttp.MethodHead, -1, -1, false); err == nil {
		headSize = resp.ContentLength
		s.etag = resp.Header.Get("ETag")
		s.lastModified = resp.Header.Get("Last-Modified")
		drain(resp.Body)
	}

	resp, err := s.do(nethttp.MethodGet, 0, 0, false)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("range request failed: %s", resp.Status)
	}

	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	if headSize > 0 && headSize != size {
		return fmt.Errorf("content size mismatch: head=%d range=%d", headSize, size)
	}
	s.size = size
	if s.etag == "" {
		s.etag = resp.Header.Get("ETag")
	}
	if s.lastModified == "" {
		s.lastModified = resp.Header.Get("Last-Modified")
	}
	return nil
}

// do sends a request with the configured headers. A negative off omits
// the Range header.
func (s *Source) do(method string, off, end int64, conditional bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(s.ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if off >= 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(off, 10)+"-"+strconv.FormatInt(end, 10))
	}
	if conditional {
		if s.etag != "" && req.Header.Get("If-Match") == "" {
			req.Header.Set("If-Match", s.etag)
		}
		if s.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return s.client.Do(req)
}

func (s *Source) hasValidators() bool {
	return s.etag != "" || s.lastModified != ""
}

// drain discards and closes a response body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain for connection reuse
	_ = body.Close()
}

// parseContentRange extracts the total size from a Content-Range header
// of the form "bytes start-end/size".
func parseContentRange(header string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", header)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", header)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", header)
	}
	return size, nil
}
