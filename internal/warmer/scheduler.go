package warmer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is used when no positive interval is given.
const DefaultInterval = 5 * time.Minute

// Summary is what a render reports back to the scheduler.
type Summary struct {
	// Blocks is the number of blocks on the page.
	Blocks int

	// Failed is the number of blocks whose decoration failed.
	Failed int
}

// RenderFunc renders one page.
type RenderFunc func(ctx context.Context, path string) (Summary, error)

// Result holds the outcome of warming a single page.
type Result struct {
	// Path is the rendered page path.
	Path string

	Summary

	// Duration is the time the render took.
	Duration time.Duration

	// RenderedAt is when the render started.
	RenderedAt time.Time

	// Error is the render error, if any.
	Error error
}

// Scheduler manages periodic rendering of pages.
//
// Scheduler implements a worker pool pattern: every interval all pages are
// rendered with at most maxConcurrency renders in flight. Results are
// emitted to a channel that can be consumed by the caller.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	pages          []string
	interval       time.Duration
	maxConcurrency int
	render         RenderFunc
	results        chan Result
	logger         *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a new warming [Scheduler].
//
// Parameters:
//   - pages: page paths to render, optionally with a query
//   - interval: time between warming rounds, [DefaultInterval] if not positive
//   - maxConcurrency: maximum number of renders in flight (at least 1)
//   - render: renders one page
//   - logger: logger for scheduler events (panic recovery, etc.)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(pages []string, interval time.Duration, maxConcurrency int, render RenderFunc, logger *slog.Logger) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pages:          pages,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		render:         render,
		results:        make(chan Result, len(pages)),
		logger:         logger,
	}
}

// Results returns a receive-only channel that emits [Result] values.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed to receive all results.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// Start begins the warming loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The scheduler renders all
// pages immediately, then again every interval until [Scheduler.Stop] is
// called or the context is cancelled.
//
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		s.renderPages(runCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.renderPages(runCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// renderPages renders every page concurrently, respecting maxConcurrency.
func (s *Scheduler) renderPages(ctx context.Context) {
	jobs := make(chan string, len(s.pages))

	var wg sync.WaitGroup
	for i := 0; i < s.maxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				result := s.renderPage(ctx, path)
				select {
				case s.results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for _, path := range s.pages {
		select {
		case jobs <- path:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)

	wg.Wait()
}

// renderPage renders a single page and returns the result.
func (s *Scheduler) renderPage(ctx context.Context, path string) Result {
	start := time.Now()
	summary, err := s.safeRender(ctx, path)
	return Result{
		Path:       path,
		Summary:    summary,
		Duration:   time.Since(start),
		RenderedAt: start,
		Error:      err,
	}
}

// safeRender calls the render function with panic recovery.
// If it panics, the full stack trace is logged with a correlation ID and
// the returned error carries the ID.
func (s *Scheduler) safeRender(ctx context.Context, path string) (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("render panic",
				"page", path,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = fmt.Errorf("render panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.render(ctx, path)
}
