// Package pipeline implements the load primitive that turns an image
// reference into a registered raster: acquire, normalize, upsert.
//
// Loads are fire-and-forget. Each Load starts its own goroutine; completion
// is only visible through the image table (and through Wait for callers
// that need to synchronize, such as tests and the MCP server). Table writes
// are serialized by the loader, so the remove-then-add of one upsert never
// interleaves with another upsert.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/map-image-tools/internal/acquire"
	"github.com/ironsheep/map-image-tools/internal/raster"
	"github.com/ironsheep/map-image-tools/internal/registry"
)

// FailureHandler is called once for every load that does not reach the
// table. It runs on the load's goroutine.
type FailureHandler func(*LoadError)

// Loader loads images into a registry.Table.
type Loader struct {
	table     registry.Table
	fetcher   acquire.Fetcher
	density   float64
	logger    *slog.Logger
	onFailure FailureHandler
	guard     *registry.RevisionGuard
	sem       *semaphore.Weighted

	revision atomic.Uint64
	pending  atomic.Int64
	wg       sync.WaitGroup

	// tableMu serializes every upsert.
	tableMu sync.Mutex

	mu       sync.Mutex
	failures []*LoadError
	fatal    []error
}

// Option configures a Loader.
type Option func(*Loader)

// WithDensity sets the display pixel density (physical pixels per logical
// pixel). Values below 1 are treated as 1.
func WithDensity(density float64) Option {
	return func(l *Loader) {
		l.density = density
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFailureHandler registers a callback for failed loads.
func WithFailureHandler(fn FailureHandler) Option {
	return func(l *Loader) {
		l.onFailure = fn
	}
}

// WithRevisionGuard makes competing loads for one name resolve in request
// order: a completion older than the last one written is dropped. Without
// it, the last load to complete wins.
func WithRevisionGuard() Option {
	return func(l *Loader) {
		l.guard = registry.NewRevisionGuard()
	}
}

// WithMaxInFlight bounds how many loads fetch and decode at once. Zero
// means unbounded.
func WithMaxInFlight(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.sem = semaphore.NewWeighted(int64(n))
		} else {
			l.sem = nil
		}
	}
}

// New creates a Loader writing to table. A nil fetcher uses an HTTPFetcher
// with default limits.
func New(table registry.Table, fetcher acquire.Fetcher, opts ...Option) *Loader {
	if fetcher == nil {
		fetcher = acquire.NewHTTPFetcher(0, 0)
	}
	l := &Loader{
		table:   table,
		fetcher: fetcher,
		density: 1,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Density returns the pixel density rasters are produced at.
func (l *Loader) Density() float64 {
	return l.density
}

// Load starts loading ref and returns immediately.
//
// Exactly one fetch is issued. On success the table entry for ref.Name is
// replaced; on failure the table is left untouched and the failure is
// logged and reported. There is no retry and no cancellation: a load whose
// owner has gone away still completes and writes its entry.
func (l *Loader) Load(ref Reference) {
	if err := ref.Validate(); err != nil {
		l.fail(&LoadError{Ref: ref, Err: err})
		return
	}
	if ref.Revision == 0 {
		ref.Revision = l.revision.Add(1)
	}

	l.pending.Add(1)
	l.wg.Add(1)
	go l.run(ref)
}

// LoadDefault loads url into name at raster.DefaultSize.
func (l *Loader) LoadDefault(url, name string, sdf bool) {
	l.Load(Reference{URL: url, Name: name, SDF: sdf, Size: raster.DefaultSize})
}

func (l *Loader) run(ref Reference) {
	defer l.wg.Done()
	defer l.pending.Add(-1)

	ctx := context.Background()
	if l.sem != nil {
		// Acquire only fails when ctx is done, which Background never is.
		_ = l.sem.Acquire(ctx, 1)
	}
	src, err := acquire.Acquire(ctx, l.fetcher, ref.URL)
	var buf *raster.Buffer
	if err == nil {
		buf, err = raster.Normalize(src, ref.Size, l.density)
	}
	if l.sem != nil {
		l.sem.Release(1)
	}
	if err != nil {
		l.fail(&LoadError{Ref: ref, Err: err})
		return
	}

	l.tableMu.Lock()
	defer l.tableMu.Unlock()

	if l.guard != nil && !l.guard.Admit(ref.Name, ref.Revision) {
		l.logger.Debug("dropping stale image load",
			"name", ref.Name, "url", ref.URL, "revision", ref.Revision)
		return
	}
	if err := registry.Upsert(l.table, ref.Name, buf, ref.SDF); err != nil {
		l.fail(&LoadError{Ref: ref, Fatal: true, Err: err})
		return
	}
	l.logger.Debug("registered image",
		"name", ref.Name, "width", buf.Width, "height", buf.Height, "sdf", ref.SDF)
}

func (l *Loader) fail(e *LoadError) {
	if e.Fatal {
		l.logger.Error("image table rejected raster", "name", e.Ref.Name, "error", e.Err)
	} else {
		l.logger.Warn("failed to load image", "name", e.Ref.Name, "url", e.Ref.URL, "error", e.Err)
	}

	l.mu.Lock()
	l.failures = append(l.failures, e)
	if e.Fatal {
		l.fatal = append(l.fatal, e)
	}
	l.mu.Unlock()

	if l.onFailure != nil {
		l.onFailure(e)
	}
}

// Pending returns the number of loads that have started but not finished.
func (l *Loader) Pending() int {
	return int(l.pending.Load())
}

// Wait blocks until every started load has finished and returns the table
// rejections seen since the previous Wait, joined. Fetch and decode
// failures are not returned; see TakeFailures.
//
// Wait must not race with the Load call that starts the first load after
// an idle period; call both from the same goroutine.
func (l *Loader) Wait() error {
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	err := errors.Join(l.fatal...)
	l.fatal = nil
	return err
}

// TakeFailures returns every failure recorded since the previous call and
// clears the list.
func (l *Loader) TakeFailures() []*LoadError {
	l.mu.Lock()
	defer l.mu.Unlock()
	failures := l.failures
	l.failures = nil
	return failures
}
