// Package pipeline turns authored page markup into a classified,
// section-wrapped block tree before any block is loaded.
//
// The steps run in a fixed order because later steps rely on what earlier
// ones produced: pictures are optimised and normalised, synthetic blocks are
// built from metadata and path conventions, image runs are grouped, selected
// blocks are split into their own sections, empty sections are dropped, the
// remaining sections are wrapped and finally every block is classified
// through the block registry.
package pipeline

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/internal/registry"
	"github.com/jpalmerr/pageblocks/page"
)

// DefaultSplitBlocks are moved into their own section during decoration.
var DefaultSplitBlocks = []string{
	"article-header",
	"article-feed",
	"recommended-articles",
	"video",
	"carousel",
}

// previewHosts are content hosts whose links are made relative.
var previewHosts = []string{"hlx3.page", "hlx.page", "hlx.live"}

// Options configures a [Pipeline].
type Options struct {
	// ProductionDomains are hosts whose absolute links are made relative,
	// in addition to the preview hosts.
	ProductionDomains []string

	// SplitBlocks overrides [DefaultSplitBlocks] when non-nil.
	SplitBlocks []string

	// Breakpoints are used for optimised pictures. Defaults to
	// dom.DefaultBreakpoints.
	Breakpoints []dom.Breakpoint
}

// Pipeline decorates the main element of a page.
type Pipeline struct {
	registry *registry.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a [Pipeline] that classifies blocks into reg.
func New(reg *registry.Registry, opts Options, logger *slog.Logger) *Pipeline {
	if opts.SplitBlocks == nil {
		opts.SplitBlocks = DefaultSplitBlocks
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{registry: reg, opts: opts, logger: logger}
}

// Decorate runs every decoration step over the page's main element and
// returns the classified blocks in document order. A page without <main> is
// left untouched.
func (pl *Pipeline) Decorate(p *page.Page) []*registry.Block {
	main := p.Main()
	if main == nil {
		return nil
	}

	pl.decoratePictures(main)
	pl.makeLinksRelative(p, main)
	removeStylingFromImages(main)
	pl.buildAutoBlocks(p, main)
	buildImageBlocks(main)
	buildNewsletterModal(main)
	pl.splitSections(main)
	removeEmptySections(main)
	wrapSections(main)
	return pl.decorateBlocks(main)
}

// buildAutoBlocks synthesises convention based blocks. Missing markup skips
// a step silently; anything unexpected is logged once and the rest of the
// page still renders.
func (pl *Pipeline) buildAutoBlocks(p *page.Page, main *html.Node) {
	defer func() {
		if r := recover(); r != nil {
			pl.logger.Error("auto blocking failed",
				"url", p.URL().String(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if p.Meta("publication-date") != "" && dom.Query(main, ".article-header") == nil {
		buildArticleHeader(p, main)
	}

	path := p.URL().Path
	if strings.Contains(path, "/topics/") {
		if heading := buildTagHeader(main); heading != "" && dom.Query(main, ".article-feed") == nil {
			buildArticleFeed(main, "tags", heading)
		}
	}
	if strings.Contains(path, "/authors/") {
		heading := buildAuthorHeader(main)
		buildSocialLinks(main)
		if heading != "" && dom.Query(main, ".article-feed") == nil {
			buildArticleFeed(main, "author", heading)
		}
	}
}

// decorateBlocks classifies every block candidate.
func (pl *Pipeline) decorateBlocks(main *html.Node) []*registry.Block {
	var blocks []*registry.Block
	for _, n := range dom.QueryAll(main, "div.section-wrapper > div > div") {
		if b, ok := pl.registry.Classify(n); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// BuildBlock creates a detached block element from a table of rows and
// columns. Each cell holds nodes that are moved into the column; nil nodes are
// skipped.
func BuildBlock(name string, rows ...[][]*html.Node) *html.Node {
	block := dom.Element("div", "class", name)
	for _, r := range rows {
		rowEl := dom.Element("div")
		for _, col := range r {
			colEl := dom.Element("div")
			dom.Append(colEl, col...)
			rowEl.AppendChild(colEl)
		}
		block.AppendChild(rowEl)
	}
	return block
}

// cell is shorthand for a single column holding nodes.
func cell(nodes ...*html.Node) []*html.Node { return nodes }

// row is shorthand for a row of columns.
func row(cols ...[]*html.Node) [][]*html.Node { return cols }
