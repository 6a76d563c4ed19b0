// Package batch extracts many assets concurrently into a Sink.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultReadAheadBytes bounds the asset bytes held by in-flight workers.
const DefaultReadAheadBytes = 64 << 20

// Item is one asset to process.
type Item struct {
	// Name is the slash-separated destination name, in fs.ValidPath form.
	Name string

	// Path is the asset path in the source.
	Path string

	// Size is the expected content size, or -1 when unknown.
	Size int64
}

// OpenFunc opens the content of an item.
type OpenFunc func(ctx context.Context, item Item) (io.ReadCloser, error)

// Sink receives processed items.
type Sink interface {
	// ShouldProcess reports whether item should be written.
	ShouldProcess(item Item) bool

	// Writer returns a Committer for the item's content.
	Writer(item Item) (Committer, error)
}

// Committer is a destination that becomes visible only on Commit.
type Committer interface {
	io.Writer
	Commit() error
	Discard() error
}

// Result summarizes a Process call.
type Result struct {
	Written int
	Skipped int
	Bytes   int64
}

// Processor runs items through a bounded pool of workers.
type Processor struct {
	workers        int // 0 = GOMAXPROCS, <0 = serial, >0 = fixed count
	readAheadBytes int64
	progress       func(item Item, written int, bytes int64)
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of workers.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithReadAheadBytes bounds the content bytes held by workers at once.
// Values <= 0 disable the bound.
func WithReadAheadBytes(n int64) ProcessorOption {
	return func(p *Processor) {
		p.readAheadBytes = n
	}
}

// WithProgress registers a callback invoked after each committed item with
// the running totals. Calls are serialized.
func WithProgress(fn func(item Item, written int, bytes int64)) ProcessorOption {
	return func(p *Processor) {
		p.progress = fn
	}
}

// NewProcessor creates a Processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{readAheadBytes: DefaultReadAheadBytes}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process opens every item the sink accepts and copies it into the sink.
//
// Processing stops at the first error; items already committed stay in
// place. Cancelling ctx stops dispatching new items and returns ctx.Err().
func (p *Processor) Process(ctx context.Context, items []Item, open OpenFunc, sink Sink) (Result, error) {
	var res Result
	todo := make([]Item, 0, len(items))
	for _, item := range items {
		if sink.ShouldProcess(item) {
			todo = append(todo, item)
			continue
		}
		res.Skipped++
	}
	if len(todo) == 0 {
		return res, ctx.Err()
	}

	var budget *semaphore.Weighted
	if p.readAheadBytes > 0 {
		budget = semaphore.NewWeighted(p.readAheadBytes)
	}

	var (
		mu      sync.Mutex
		written int
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount(len(todo)))
	for _, item := range todo {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			weight := p.weight(item)
			if budget != nil {
				if err := budget.Acquire(gctx, weight); err != nil {
					return err
				}
				defer budget.Release(weight)
			}
			n, err := p.processItem(gctx, item, open, sink)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			written++
			total += n
			if p.progress != nil {
				p.progress(item, written, total)
			}
			return nil
		})
	}
	err := g.Wait()
	res.Written = written
	res.Bytes = total
	if err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func (p *Processor) processItem(ctx context.Context, item Item, open OpenFunc, sink Sink) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rc, err := open(ctx, item)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	w, err := sink.Writer(item)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, rc)
	if err == nil && item.Size >= 0 && n != item.Size {
		err = fmt.Errorf("short copy (%d of %d bytes)", n, item.Size)
	}
	if err != nil {
		discardErr := w.Discard()
		return n, errors.Join(fmt.Errorf("batch: %s: %w", item.Path, err), discardErr)
	}
	if err := w.Commit(); err != nil {
		return n, fmt.Errorf("batch: %s: %w", item.Path, err)
	}
	return n, nil
}

// weight caps an item's budget share at the whole budget so a single
// large asset cannot block forever.
func (p *Processor) weight(item Item) int64 {
	w := max(item.Size, 1)
	return min(w, p.readAheadBytes)
}

func (p *Processor) workerCount(n int) int {
	workers := p.workers
	switch {
	case workers < 0:
		workers = 1
	case workers == 0:
		workers = runtime.GOMAXPROCS(0)
	}
	return max(1, min(workers, n))
}
