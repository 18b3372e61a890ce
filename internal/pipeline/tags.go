package pipeline

import (
	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/internal/registry"
	"github.com/jpalmerr/pageblocks/page"
	"github.com/jpalmerr/pageblocks/taxonomy"
)

// BuildTagsBlock builds the tags block from the page's article:tag metadata
// once the taxonomy is loaded, and classifies it. The block goes before the
// recommended articles when present, otherwise into the last section. It
// returns nil when there is no taxonomy, no tags or no place to put it.
func (pl *Pipeline) BuildTagsBlock(p *page.Page) *registry.Block {
	main := p.Main()
	tax := p.LoadedTaxonomy()
	topics := p.MetaAll("article:tag")
	if main == nil || tax == nil || len(topics) == 0 {
		return nil
	}

	links := dom.Element("p")
	for _, topic := range tax.Compute(topics).VisibleTopics {
		links.AppendChild(taxonomy.TopicLink(tax, topic))
	}
	block := BuildBlock("tags", row(cell(links)))

	var target *html.Node
	if rec := dom.Query(main, ".recommended-articles-container"); rec != nil {
		if prev := dom.PrevElementSibling(rec); prev != nil {
			target = dom.FirstElementChild(prev)
		}
	} else if last := dom.LastElementChild(main); last != nil {
		target = dom.FirstElementChild(last)
	}
	if target == nil {
		return nil
	}
	target.AppendChild(block)

	b, _ := pl.registry.Classify(block)
	return b
}

// FixTopicLinks resolves topic links that were rendered before the taxonomy
// was available. It returns the number of links fixed.
func FixTopicLinks(p *page.Page) int {
	if p.Main() == nil {
		return 0
	}
	return taxonomy.Fix(p.LoadedTaxonomy(), p.Main())
}
