package pageblocks

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jpalmerr/pageblocks/page"
)

// Resolver looks up the decorator of a block by name.
//
// [blocks.Default] returns the built-in implementation.
type Resolver interface {
	Decorator(name string) (page.Decorator, bool)
}

// rendererConfig holds mutable state during Renderer construction.
type rendererConfig struct {
	origin            *url.URL
	publicURL         *url.URL
	title             string
	port              int
	timeout           time.Duration
	productionDomains []string
	codeBase          string
	libsBase          string
	libsList          string
	lcpBlocks         []string
	splitBlocks       []string
	rumCollector      string
	rumGeneration     string
	rumWeight         int
	rumSeed           *[2]uint64
	delayedScript     string
	delay             time.Duration
	waitDelayed       bool
	resolver          Resolver
	logger            *slog.Logger
	blockCallbacks    []func(BlockResult)
	warmPages         []string
	warmInterval      time.Duration
	warmConcurrency   int
}

// Option is a function that configures a [Renderer] during construction.
//
// Options return an error if validation fails.
type Option func(*rendererConfig) error

func parseBaseURL(kind, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", kind, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s must be an http or https URL, got %q", kind, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s must have a host, got %q", kind, raw)
	}
	return u, nil
}

// WithOrigin sets the content origin that page sources and fragments are
// fetched from. Required.
//
// Example:
//
//	r, err := pageblocks.New(
//	    pageblocks.WithOrigin("https://main--blog--acme.hlx.page"),
//	)
func WithOrigin(origin string) Option {
	return func(cfg *rendererConfig) error {
		u, err := parseBaseURL("origin", origin)
		if err != nil {
			return err
		}
		cfg.origin = u
		return nil
	}
}

// WithPublicURL sets the URL pages are served at. It decides whether a page
// is on a production host and is the referer of sampled checkpoints.
// Defaults to the origin.
func WithPublicURL(public string) Option {
	return func(cfg *rendererConfig) error {
		u, err := parseBaseURL("public url", public)
		if err != nil {
			return err
		}
		cfg.publicURL = u
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "pageblocks".
func WithTitle(title string) Option {
	return func(cfg *rendererConfig) error {
		cfg.title = title
		return nil
	}
}

// WithPort sets the HTTP port of [Renderer.Start]. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *rendererConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTimeout sets the per-request timeout of every fetch. Defaults to 10
// seconds.
func WithTimeout(d time.Duration) Option {
	return func(cfg *rendererConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithProductionDomains sets the hosts treated as production: their links
// are made relative and the library base cannot be overridden there.
func WithProductionDomains(hosts ...string) Option {
	return func(cfg *rendererConfig) error {
		cfg.productionDomains = append(cfg.productionDomains, hosts...)
		return nil
	}
}

// WithCodeBase sets the path prefix block stylesheets are served from.
func WithCodeBase(base string) Option {
	return func(cfg *rendererConfig) error {
		cfg.codeBase = base
		return nil
	}
}

// WithLibs enables a shared block library at base. listPath is the block
// list relative to base; empty means "/blocks/list.json".
func WithLibs(base, listPath string) Option {
	return func(cfg *rendererConfig) error {
		cfg.libsBase = base
		cfg.libsList = listPath
		return nil
	}
}

// WithLCPBlocks replaces the block names loaded eagerly when they come
// first on a page. Defaults to featured-article and article-header.
func WithLCPBlocks(names ...string) Option {
	return func(cfg *rendererConfig) error {
		cfg.lcpBlocks = append([]string(nil), names...)
		return nil
	}
}

// WithSplitBlocks replaces the block names that get a section of their own.
func WithSplitBlocks(names ...string) Option {
	return func(cfg *rendererConfig) error {
		cfg.splitBlocks = append([]string(nil), names...)
		return nil
	}
}

// WithRUM configures checkpoint sampling. Empty values keep the defaults;
// weight must not be negative.
//
// Example:
//
//	pageblocks.WithRUM("https://rum.example.com", "blog-gen-8", 100)
func WithRUM(collector, generation string, weight int) Option {
	return func(cfg *rendererConfig) error {
		if weight < 0 {
			return errors.New("rum weight cannot be negative")
		}
		if collector != "" {
			if _, err := parseBaseURL("rum collector", collector); err != nil {
				return err
			}
		}
		cfg.rumCollector = collector
		cfg.rumGeneration = generation
		cfg.rumWeight = weight
		return nil
	}
}

// WithRUMSeed makes sampling reproducible: every render draws from a
// generator seeded with (seed1, seed2).
func WithRUMSeed(seed1, seed2 uint64) Option {
	return func(cfg *rendererConfig) error {
		cfg.rumSeed = &[2]uint64{seed1, seed2}
		return nil
	}
}

// WithDelayed sets the delayed-phase script and the default pause before it
// is added. Empty script and zero delay keep the defaults
// ("/scripts/delayed.js", 3.5s).
func WithDelayed(script string, delay time.Duration) Option {
	return func(cfg *rendererConfig) error {
		if delay < 0 {
			return errors.New("delay cannot be negative")
		}
		if script != "" {
			cfg.delayedScript = script
		}
		if delay > 0 {
			cfg.delay = delay
		}
		return nil
	}
}

// WithWaitDelayed makes [Renderer.RenderTo] wait for the delayed phase
// before writing, so the output includes the delayed script.
func WithWaitDelayed(wait bool) Option {
	return func(cfg *rendererConfig) error {
		cfg.waitDelayed = wait
		return nil
	}
}

// WithDecorators sets the block decorator lookup. Defaults to
// [blocks.Default].
func WithDecorators(r Resolver) Option {
	return func(cfg *rendererConfig) error {
		if r == nil {
			return errors.New("decorator resolver cannot be nil")
		}
		cfg.resolver = r
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *rendererConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithBlockCallback registers a function called on every block status
// change of every render.
//
// Callbacks run synchronously on the goroutine that moved the block, so they
// must not block. Panics are recovered and logged. Nil callbacks are
// ignored.
func WithBlockCallback(cb func(BlockResult)) Option {
	return func(cfg *rendererConfig) error {
		if cb == nil {
			return nil
		}
		cfg.blockCallbacks = append(cfg.blockCallbacks, cb)
		return nil
	}
}

// WithWarmPages makes [Renderer.Start] render paths on start and again every
// interval, with at most concurrency renders in flight, so their blocks stay
// current on the dashboard.
//
// Example:
//
//	pageblocks.WithWarmPages(5*time.Minute, 2, "/en", "/en/publications")
func WithWarmPages(interval time.Duration, concurrency int, paths ...string) Option {
	return func(cfg *rendererConfig) error {
		if interval <= 0 {
			return errors.New("warm interval must be positive")
		}
		if concurrency < 1 {
			return errors.New("warm concurrency must be at least 1")
		}
		cfg.warmPages = append(cfg.warmPages, paths...)
		cfg.warmInterval = interval
		cfg.warmConcurrency = concurrency
		return nil
	}
}
