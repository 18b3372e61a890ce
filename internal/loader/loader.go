package loader

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pageblocks/internal/registry"
	"github.com/jpalmerr/pageblocks/page"
)

// Resolver maps a block name to its decorator.
//
// Implementations are expected to create decorators lazily and at most once
// per name; the loader asks for a decorator only when a block of that name is
// actually loaded.
type Resolver interface {
	Decorator(name string) (page.Decorator, bool)
}

// Outcome records how one block load went.
type Outcome struct {
	// Name is the block name.
	Name string

	// Decorated is true when a decorator ran to completion without error.
	Decorated bool

	// Error is the decoration error, if any. Stylesheet failures are not
	// recorded here.
	Error error

	// Duration is the wall time from loading to loaded.
	Duration time.Duration
}

// Loader loads blocks of one page.
//
// All methods are safe for concurrent use. The block's status guard is the
// only concurrency control: it prevents duplicate loads of the same block but
// does not serialise unrelated blocks.
type Loader struct {
	page     *page.Page
	resolver Resolver
	base     string
	libs     *Libs
	logger   *slog.Logger

	mu       sync.Mutex
	outcomes map[*registry.Block]Outcome
}

// Option configures a [Loader].
type Option func(*Loader)

// WithBase sets the code base path that block stylesheets are served from.
// Defaults to "" (site root).
func WithBase(base string) Option {
	return func(l *Loader) { l.base = base }
}

// WithLibs sets the shared block library.
func WithLibs(libs *Libs) Option {
	return func(l *Loader) { l.libs = libs }
}

// WithLogger sets the logger. Defaults to the page logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a [Loader] for p. resolver may be nil, in which case blocks
// only get their stylesheets.
func New(p *page.Page, resolver Resolver, opts ...Option) *Loader {
	l := &Loader{
		page:     p,
		resolver: resolver,
		logger:   p.Logger(),
		outcomes: make(map[*registry.Block]Outcome),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Libs returns the configured shared block library, or nil.
func (l *Loader) Libs() *Libs { return l.libs }

// StylesheetPath returns the stylesheet path of a block.
func (l *Loader) StylesheetPath(name string) string {
	return l.blockBase(name) + "/blocks/" + name + "/" + name + ".css"
}

func (l *Loader) blockBase(name string) string {
	if l.libs.Has(name) {
		return l.libs.Base
	}
	return l.base
}

// Load loads the stylesheet and decoration logic of b and marks it loaded.
//
// Load is a no-op when b is already loading or loaded. Otherwise it moves b
// to loading, then concurrently (a) adds and fetches the block stylesheet and
// (b) runs the block decorator with the eager flag. Both branches always
// settle; failures are logged, never returned. When both are done b is
// loaded.
func (l *Loader) Load(ctx context.Context, b *registry.Block, eager bool) {
	if !b.Begin() {
		return
	}
	start := time.Now()
	outcome := Outcome{Name: b.Name}

	var g errgroup.Group
	g.Go(func() error {
		l.loadStyles(ctx, b.Name)
		return nil
	})
	g.Go(func() error {
		outcome.Decorated, outcome.Error = l.decorate(ctx, b, eager)
		return nil
	})
	_ = g.Wait()

	outcome.Duration = time.Since(start)
	l.mu.Lock()
	l.outcomes[b] = outcome
	l.mu.Unlock()

	b.Finish()
}

// LoadAll loads blocks concurrently with unbounded fan-out and returns when
// every block has settled. No ordering between blocks is guaranteed.
func (l *Loader) LoadAll(ctx context.Context, blocks []*registry.Block) {
	var g errgroup.Group
	for _, b := range blocks {
		g.Go(func() error {
			l.Load(ctx, b, false)
			return nil
		})
	}
	_ = g.Wait()
}

// Outcome returns the recorded outcome of b. ok is false until b's load
// through this loader has finished.
func (l *Loader) Outcome(b *registry.Block) (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.outcomes[b]
	return o, ok
}

// loadStyles adds the block stylesheet to the page head and fetches it.
// Library blocks also pull in the library variables.
func (l *Loader) loadStyles(ctx context.Context, name string) {
	l.loadCSS(ctx, name, l.StylesheetPath(name))
	if l.libs.Has(name) {
		l.loadCSS(ctx, name, l.libs.Base+"/styles/variables.css")
	}
}

// loadCSS adds href once; only the call that added the link fetches it.
func (l *Loader) loadCSS(ctx context.Context, name, href string) {
	if !l.page.AddStylesheet(href) {
		return
	}
	if _, err := l.page.Fetch(ctx, href); err != nil {
		l.logger.Debug("failed to load stylesheet", "block", name, "href", href, "error", err)
	}
}

// decorate resolves and runs the block decorator. It reports whether a
// decorator ran successfully.
func (l *Loader) decorate(ctx context.Context, b *registry.Block, eager bool) (bool, error) {
	if l.resolver == nil {
		return false, nil
	}
	decorator, ok := l.resolver.Decorator(b.Name)
	if !ok {
		l.logger.Debug("no decorator", "block", b.Name)
		return false, nil
	}

	if err := l.safeDecorate(ctx, decorator, b, eager); err != nil {
		l.logger.Warn("failed to decorate block", "block", b.Name, "error", err)
		return false, err
	}
	return true, nil
}

// safeDecorate calls the decorator with panic recovery.
// If the decorator panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (l *Loader) safeDecorate(ctx context.Context, decorator page.Decorator, b *registry.Block, eager bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			l.logger.Error("decorator panic",
				"block", b.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = fmt.Errorf("decorator panic (correlation_id: %s)", correlationID)
		}
	}()
	return decorator(ctx, b.Node, b.Name, l.page, eager)
}
