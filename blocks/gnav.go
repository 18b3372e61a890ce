package blocks

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
)

// GnavSourceAttr names the content path of the navigation fragment.
const GnavSourceAttr = "data-gnav-source"

// Gnav fills the page header with the global navigation fetched from the
// path in data-gnav-source. The first section becomes the brand, later
// sections become menus.
func Gnav(ctx context.Context, block *html.Node, _ string, p *page.Page, _ bool) error {
	source := dom.Attr(block, GnavSourceAttr)
	if source == "" {
		return errors.New("gnav: no navigation source")
	}
	frag, err := p.FetchFragment(ctx, source)
	if err != nil {
		return fmt.Errorf("gnav: failed to fetch %s: %w", source, err)
	}

	nav := dom.Element("nav", "class", "gnav", "aria-label", "Main")
	for i, section := range dom.Children(frag) {
		if i == 0 {
			dom.AddClass(section, "gnav-brand")
		} else {
			dom.AddClass(section, "gnav-section")
		}
		for _, list := range dom.QueryAll(section, "ul") {
			dom.AddClass(list, "gnav-menu")
		}
		nav.AppendChild(dom.Detach(section))
	}

	// replace navigation from an earlier decoration
	for _, old := range dom.Children(block) {
		if dom.Is(old, atom.Nav) && dom.HasClass(old, "gnav") {
			dom.Detach(old)
		}
	}
	block.AppendChild(nav)
	return nil
}
