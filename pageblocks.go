package pageblocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/pageblocks/blocks"
	"github.com/jpalmerr/pageblocks/dashboard"
	"github.com/jpalmerr/pageblocks/internal/fetch"
	"github.com/jpalmerr/pageblocks/internal/loader"
	"github.com/jpalmerr/pageblocks/internal/registry"
	"github.com/jpalmerr/pageblocks/internal/rum"
	"github.com/jpalmerr/pageblocks/internal/server"
	"github.com/jpalmerr/pageblocks/internal/store"
	"github.com/jpalmerr/pageblocks/internal/warmer"
	"github.com/jpalmerr/pageblocks/page"
	"golang.org/x/net/html"
)

const (
	defaultPort          = 8080
	defaultTimeout       = 10 * time.Second
	defaultDelayedScript = "/scripts/delayed.js"
	defaultDelay         = 3500 * time.Millisecond
)

// defaultLCPBlocks are loaded eagerly when they are the first block of a page.
var defaultLCPBlocks = []string{"featured-article", "article-header"}

// Renderer renders pages of a block based site on the server.
//
// Each [Renderer.Render] fetches the authored page from the content origin
// and runs the block lifecycle over it: the eager phase decorates the page
// and loads the LCP block, the lazy phase loads header, footer and all other
// blocks, and the delayed phase adds the delayed script in the background.
// Block status changes and sampled checkpoints are kept for the dashboard
// served by [Renderer.Start].
//
//	r, err := pageblocks.New(pageblocks.WithOrigin("https://main--blog--acme.hlx.page"))
//	if err != nil {
//	    slog.Error("failed to create renderer", "error", err)
//	    os.Exit(1)
//	}
//	defer r.Close()
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	r.Start(ctx) // blocks until context cancelled
type Renderer struct {
	cfg    rendererConfig
	client *fetch.Client
	store  *store.MemoryStore
	logger *slog.Logger
}

// New creates a [Renderer] with the given options.
//
// [WithOrigin] is required. Defaults:
//   - Port: 8080
//   - Timeout: 10 seconds
//   - LCP blocks: featured-article, article-header
//   - Delayed script: /scripts/delayed.js after 3.5 seconds
//   - Decorators: [blocks.Default]
func New(opts ...Option) (*Renderer, error) {
	cfg := rendererConfig{
		port:          defaultPort,
		timeout:       defaultTimeout,
		lcpBlocks:     defaultLCPBlocks,
		delayedScript: defaultDelayedScript,
		delay:         defaultDelay,
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.origin == nil {
		return nil, errors.New("content origin is required")
	}
	if cfg.publicURL == nil {
		cfg.publicURL = cfg.origin
	}
	if cfg.resolver == nil {
		cfg.resolver = blocks.Default()
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Renderer{
		cfg:    cfg,
		client: fetch.NewClient(cfg.timeout),
		store:  store.NewMemoryStore(),
		logger: logger,
	}, nil
}

// Close releases idle connections of the fetch client.
func (r *Renderer) Close() {
	r.client.Close()
}

// Port returns the configured HTTP port.
func (r *Renderer) Port() int {
	return r.cfg.port
}

// Origin returns a copy of the content origin.
func (r *Renderer) Origin() *url.URL {
	u := *r.cfg.origin
	return &u
}

// Blocks returns the block records of every page rendered so far.
func (r *Renderer) Blocks() []BlockResult {
	records := r.store.GetAll()
	results := make([]BlockResult, 0, len(records))
	for _, rec := range records {
		results = append(results, recordToBlockResult(rec))
	}
	return results
}

// pageURLs resolves a request path (with optional query) into the public
// page URL and the source URL on the content origin.
func (r *Renderer) pageURLs(path string) (public, source *url.URL, err error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid page path %q: %w", path, err)
	}
	p := ref.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	public = r.cfg.publicURL.ResolveReference(&url.URL{Path: p, RawQuery: ref.RawQuery})
	source = r.cfg.origin.ResolveReference(&url.URL{Path: p})
	return public, source, nil
}

// Render fetches the page at path and runs the eager and lazy phases over
// it. The delayed phase continues in the background until ctx ends; see
// [Result.Delayed].
//
// The returned error wraps the fetch error when the page source cannot be
// retrieved; errors.As with *fetch.StatusError exposes the status code.
func (r *Renderer) Render(ctx context.Context, path string) (*Result, error) {
	return r.render(ctx, path, true)
}

// render runs the page lifecycle. Page views that no visitor requested
// (warming) keep their checkpoints off the collector and the event log, and
// report no visibility.
func (r *Renderer) render(ctx context.Context, path string, visitor bool) (*Result, error) {
	publicURL, sourceURL, err := r.pageURLs(path)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, sourceURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", publicURL.Path, err)
	}

	logger := r.logger.With("page", publicURL.Path)
	p, err := page.Parse(bytes.NewReader(data), page.Config{
		URL:     publicURL,
		Origin:  r.cfg.origin,
		Fetcher: r.client,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	b := r.newBootstrap(p, logger, visitor)
	b.sampler.Sample(ctx, rum.CheckpointTop, rum.Data{})

	start := time.Now()
	b.eager(ctx)
	b.res.setPhase(PhaseEager)
	logger.Debug("phase complete", "phase", PhaseEager, "duration_ms", time.Since(start).Milliseconds())

	start = time.Now()
	b.lazy(ctx)
	b.res.setPhase(PhaseLazy)
	logger.Debug("phase complete", "phase", PhaseLazy, "duration_ms", time.Since(start).Milliseconds())

	go b.delayed(ctx)

	return b.res, nil
}

// RenderTo renders the page at path and writes the document to w. With
// [WithWaitDelayed] it waits for the delayed phase first.
func (r *Renderer) RenderTo(ctx context.Context, w io.Writer, path string) error {
	res, err := r.Render(ctx, path)
	if err != nil {
		return err
	}
	if r.cfg.waitDelayed {
		select {
		case <-res.Delayed():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return res.Render(w)
}

func (r *Renderer) newServer() *server.Server {
	return server.NewServer(r.store, server.Config{
		Port:   r.cfg.port,
		Assets: dashboard.Assets,
		Title:  r.cfg.title,
		Render: r.RenderTo,
	}, r.logger)
}

// Handler returns the HTTP handler serving rendered pages, the dashboard
// and its API, for mounting in an existing server.
func (r *Renderer) Handler() http.Handler {
	return r.newServer().Handler()
}

// Start serves rendered pages and the dashboard until ctx is cancelled.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (r *Renderer) Start(ctx context.Context) error {
	r.logger.Info("pageblocks starting", "origin", r.cfg.origin.String())
	r.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d/_dashboard", r.cfg.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	if err := r.newServer().Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if len(r.cfg.warmPages) > 0 {
		sched := warmer.NewScheduler(r.cfg.warmPages, r.cfg.warmInterval, r.cfg.warmConcurrency, r.warm, r.logger)
		sched.Start(ctx)
		defer sched.Stop()
		go r.logWarmed(sched.Results())
	}

	<-ctx.Done()
	r.logger.Info("pageblocks stopped")
	return nil
}

// warm renders a page for the warming scheduler. The delayed phase is left
// to the scheduler context.
func (r *Renderer) warm(ctx context.Context, path string) (warmer.Summary, error) {
	res, err := r.render(ctx, path, false)
	if err != nil {
		return warmer.Summary{}, err
	}
	var sum warmer.Summary
	for _, b := range res.Blocks() {
		sum.Blocks++
		if b.Error != nil {
			sum.Failed++
		}
	}
	return sum, nil
}

// logWarmed logs warming results until the scheduler stops.
func (r *Renderer) logWarmed(results <-chan warmer.Result) {
	for res := range results {
		if res.Error != nil {
			r.logger.Warn("page warming failed", "page", res.Path, "error", res.Error)
			continue
		}
		r.logger.Info("page warmed",
			"page", res.Path,
			"blocks", res.Blocks,
			"failed", res.Failed,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
}

// Result is a rendered page.
type Result struct {
	page     *page.Page
	registry *registry.Registry
	tracker  *tracker
	sampler  *rum.Sampler
	observer *rum.Observer

	mu    sync.Mutex
	phase Phase

	delayed chan struct{}
}

// Page returns the page context, including the decorated document.
func (res *Result) Page() *page.Page { return res.page }

// Render writes the document to w.
func (res *Result) Render(w io.Writer) error { return res.page.Render(w) }

// Blocks returns the current state of every block of the page in
// registration order.
func (res *Result) Blocks() []BlockResult {
	var results []BlockResult
	for _, b := range res.registry.Blocks() {
		results = append(results, res.tracker.result(b, b.Status()))
	}
	return results
}

// Phase returns the last completed bootstrap phase.
func (res *Result) Phase() Phase {
	res.mu.Lock()
	defer res.mu.Unlock()
	return res.phase
}

func (res *Result) setPhase(p Phase) {
	res.mu.Lock()
	res.phase = p
	res.mu.Unlock()
}

// Delayed is closed when the delayed phase has ended, whether it added the
// script, was skipped or was cancelled.
func (res *Result) Delayed() <-chan struct{} { return res.delayed }

// SampleID returns the page view id used for checkpoints.
func (res *Result) SampleID() string { return res.sampler.ID() }

// Sampled reports whether checkpoints of this page view are transmitted.
func (res *Result) Sampled() bool { return res.sampler.Selected() }

// Intersect reports that ratio of element n became visible. The first report
// at or above the visibility threshold samples a viewblock or viewmedia
// checkpoint and returns true.
func (res *Result) Intersect(ctx context.Context, n *html.Node, ratio float64) bool {
	return res.observer.Intersect(ctx, n, ratio)
}

// tracker publishes block status changes of one page.
type tracker struct {
	path      string
	store     store.Store
	callbacks []func(BlockResult)
	logger    *slog.Logger

	mu     sync.Mutex
	index  map[*registry.Block]int
	loader *loader.Loader
}

func (t *tracker) setLoader(ld *loader.Loader) {
	t.mu.Lock()
	t.loader = ld
	t.mu.Unlock()
}

// result builds the public view of b at status s.
func (t *tracker) result(b *registry.Block, s registry.Status) BlockResult {
	t.mu.Lock()
	idx, ok := t.index[b]
	if !ok {
		idx = len(t.index)
		t.index[b] = idx
	}
	ld := t.loader
	t.mu.Unlock()

	res := BlockResult{
		Page:      t.path,
		Index:     idx,
		Name:      b.Name,
		Variants:  b.Variants,
		Status:    BlockStatus(s),
		UpdatedAt: time.Now(),
	}
	if s == registry.StatusLoaded && ld != nil {
		if o, ok := ld.Outcome(b); ok {
			res.Decorated = o.Decorated
			res.Error = o.Error
			res.Duration = o.Duration
		}
	}
	return res
}

// onChange is the registry hook.
func (t *tracker) onChange(b *registry.Block, s registry.Status) {
	res := t.result(b, s)
	t.store.Update(blockResultToRecord(res))
	for _, cb := range t.callbacks {
		invokeCallbackSafe(cb, res, t.logger)
	}
}

// eventSink records sampled checkpoints of one page in the store.
type eventSink struct {
	path  string
	store store.Store
}

func (s eventSink) RecordEvent(ev rum.Event) {
	s.store.RecordEvent(store.EventRecord{
		Page:       s.path,
		ID:         ev.ID,
		Checkpoint: ev.Checkpoint,
		Weight:     ev.Weight,
		Target:     ev.Target,
		Source:     ev.Source,
		Selected:   ev.Selected,
		Time:       ev.Time,
	})
}

// blockResultToRecord converts a block result to a store record.
func blockResultToRecord(res BlockResult) store.BlockRecord {
	var errStr *string
	if res.Error != nil {
		s := res.Error.Error()
		errStr = &s
	}
	return store.BlockRecord{
		ID:         fmt.Sprintf("%s#%d", res.Page, res.Index),
		Page:       res.Page,
		Name:       res.Name,
		Status:     string(res.Status),
		Variants:   res.Variants,
		Decorated:  res.Decorated,
		DurationMs: res.Duration.Milliseconds(),
		UpdatedAt:  res.UpdatedAt,
		Error:      errStr,
	}
}

// recordToBlockResult converts a store record back to the public type.
func recordToBlockResult(rec store.BlockRecord) BlockResult {
	res := BlockResult{
		Page:      rec.Page,
		Name:      rec.Name,
		Variants:  rec.Variants,
		Status:    BlockStatus(rec.Status),
		Decorated: rec.Decorated,
		Duration:  time.Duration(rec.DurationMs) * time.Millisecond,
		UpdatedAt: rec.UpdatedAt,
	}
	if _, idx, ok := strings.Cut(rec.ID, "#"); ok {
		_, _ = fmt.Sscan(idx, &res.Index)
	}
	if rec.Error != nil {
		res.Error = errors.New(*rec.Error)
	}
	return res
}

// invokeCallbackSafe calls a block callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(BlockResult), res BlockResult, logger *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("block callback panicked",
				"panic", rec,
				"block", res.Name,
			)
		}
	}()
	cb(res)
}

// newRand returns the sampling generator of one render, or nil for a
// randomly seeded one.
func (r *Renderer) newRand() *rand.Rand {
	if r.cfg.rumSeed == nil {
		return nil
	}
	return rand.New(rand.NewPCG(r.cfg.rumSeed[0], r.cfg.rumSeed[1]))
}
