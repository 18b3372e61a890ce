package pageblocks

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/pageblocks/blocks"
	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/internal/loader"
	"github.com/jpalmerr/pageblocks/internal/pipeline"
	"github.com/jpalmerr/pageblocks/internal/registry"
	"github.com/jpalmerr/pageblocks/internal/rum"
	"github.com/jpalmerr/pageblocks/page"
)

const (
	lazyStylesheet = "/styles/lazy-styles.css"
	favicon        = "/styles/favicon.svg"
)

// bootstrap holds the state of one page render across its phases.
type bootstrap struct {
	cfg      *rendererConfig
	page     *page.Page
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	loader   *loader.Loader
	tracker  *tracker
	sampler  *rum.Sampler
	observer *rum.Observer
	res      *Result
	logger   *slog.Logger

	// visitor is false for renders nobody requested; they report no
	// visibility of the LCP candidates.
	visitor bool
}

func (r *Renderer) newBootstrap(p *page.Page, logger *slog.Logger, visitor bool) *bootstrap {
	path := p.URL().Path
	t := &tracker{
		path:      path,
		store:     r.store,
		callbacks: r.cfg.blockCallbacks,
		logger:    logger,
		index:     make(map[*registry.Block]int),
	}
	reg := registry.New(t.onChange)

	rumCfg := rum.Config{
		Collector:  r.cfg.rumCollector,
		Generation: r.cfg.rumGeneration,
		Weight:     r.cfg.rumWeight,
		Rand:       r.newRand(),
		Logger:     logger,
	}
	if visitor {
		rumCfg.Poster = r.client
		rumCfg.Sink = eventSink{path: path, store: r.store}
	}
	sampler := rum.NewSampler(p.URL(), rumCfg)
	observer := rum.NewObserver(sampler, p.URL())

	return &bootstrap{
		cfg:      &r.cfg,
		page:     p,
		registry: reg,
		pipeline: pipeline.New(reg, pipeline.Options{
			ProductionDomains: r.cfg.productionDomains,
			SplitBlocks:       r.cfg.splitBlocks,
		}, logger),
		tracker:  t,
		sampler:  sampler,
		observer: observer,
		res: &Result{
			page:     p,
			registry: reg,
			tracker:  t,
			sampler:  sampler,
			observer: observer,
			delayed:  make(chan struct{}),
		},
		logger:  logger,
		visitor: visitor,
	}
}

// eager decorates the page and settles the largest contentful paint
// candidates.
func (b *bootstrap) eager(ctx context.Context) {
	p := b.page

	base := loader.LibsBase(p, b.cfg.libsBase, b.cfg.productionDomains)
	var libs *loader.Libs
	if base != "" {
		libs = loader.LoadLibs(ctx, p, base, b.cfg.libsList, b.logger)
	}
	b.loader = loader.New(p, b.cfg.resolver,
		loader.WithBase(b.cfg.codeBase),
		loader.WithLibs(libs),
		loader.WithLogger(b.logger),
	)
	b.tracker.setLoader(b.loader)

	decorated := b.pipeline.Decorate(p)
	if main := p.Main(); main != nil {
		for _, blk := range decorated {
			b.observer.Observe(blk.Node)
		}
		b.observer.Observe(dom.QueryAll(main, "picture > img")...)
	}

	b.waitForLCP(ctx, decorated)
}

// waitForLCP loads the first block when it is an LCP block, marks the body
// as appearing and waits for the first main image.
func (b *bootstrap) waitForLCP(ctx context.Context, decorated []*registry.Block) {
	p := b.page

	if len(decorated) > 0 && slices.Contains(b.cfg.lcpBlocks, decorated[0].Name) {
		first := decorated[0]
		b.loader.Load(ctx, first, true)
		if b.visitor {
			b.observer.Intersect(ctx, first.Node, 1)
		}
	}

	dom.AddClass(p.Body(), "appear")

	main := p.Main()
	if main == nil {
		return
	}
	img := dom.Query(main, "img")
	if img == nil {
		return
	}
	dom.SetAttr(img, "loading", "eager")
	src := dom.Attr(img, "src")
	if src == "" {
		return
	}
	if _, err := p.Fetch(ctx, src); err != nil {
		b.logger.Debug("lcp candidate failed to load", "src", src, "error", err)
		return
	}
	if !b.visitor {
		return
	}
	// decoration may have replaced the observed pictures with copies
	b.observer.Observe(img)
	b.observer.Intersect(ctx, img, 1)
}

// lazy attaches header and footer, completes the taxonomy dependent
// decoration and loads every block.
func (b *bootstrap) lazy(ctx context.Context) {
	p := b.page
	b.sampler.Sample(ctx, rum.CheckpointLCP, rum.Data{})

	root := p.RootPath()
	if header := p.Header(); header != nil {
		source := p.Meta("gnav")
		if source == "" {
			source = root + "/gnav"
		}
		dom.SetAttr(header, registry.AttrBlockName, "gnav")
		dom.SetAttr(header, blocks.GnavSourceAttr, source)
		b.registry.Adopt(header)
	}
	if footer := p.Footer(); footer != nil {
		dom.SetAttr(footer, registry.AttrBlockName, "footer")
		dom.SetAttr(footer, blocks.FooterSourceAttr, root+"/footer")
		b.registry.Adopt(footer)
	}

	if _, err := p.Taxonomy(ctx); err != nil {
		b.logger.Warn("taxonomy unavailable", "error", err)
	}
	b.pipeline.BuildTagsBlock(p)
	if n := pipeline.FixTopicLinks(p); n > 0 {
		b.logger.Debug("topic links fixed", "count", n)
	}

	all := b.registry.Blocks()
	b.loader.LoadAll(ctx, all)

	p.AddStylesheet(lazyStylesheet)
	p.SetFavicon(favicon)

	for _, blk := range all {
		if o, ok := b.loader.Outcome(blk); ok && o.Error != nil {
			b.sampler.Sample(ctx, rum.CheckpointError, rum.Data{
				Source: rum.Source(blk.Node),
				Target: o.Error.Error(),
			})
		}
	}
	b.sampler.Sample(ctx, rum.CheckpointLoad, rum.Data{})
}

// delayed adds the delayed script after a pause. It always closes the
// result's delayed channel.
func (b *bootstrap) delayed(ctx context.Context) {
	defer close(b.res.delayed)
	p := b.page
	q := p.Query()
	script := b.cfg.delayedScript

	if q.Get("delayed") == "off" || p.HasScript(script) {
		b.logger.Debug("delayed phase skipped")
		return
	}

	delay := b.cfg.delay
	if raw := q.Get("delay"); raw != "" {
		delay = queryDelay(raw)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		b.logger.Debug("delayed phase cancelled", "error", ctx.Err())
		return
	}

	p.AddScript(script, "module")
	b.res.setPhase(PhaseDelayed)
	b.logger.Debug("phase complete", "phase", PhaseDelayed, "delay_ms", delay.Milliseconds())
}

// queryDelay reads the delay query value in milliseconds. Values that are
// not a finite non-negative number mean no pause at all.
func queryDelay(raw string) time.Duration {
	ms, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !(ms > 0) || math.IsInf(ms, 1) {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
