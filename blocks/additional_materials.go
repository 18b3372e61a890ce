package blocks

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
)

// AdditionalMaterials rebuilds each row (title, heading, caption, file link)
// as a download entry under an "Additional Materials" heading. Rows with
// fewer than four columns are dropped.
func AdditionalMaterials(_ context.Context, block *html.Node, _ string, p *page.Page, _ bool) error {
	div := dom.Element("div")
	heading := dom.Element("h2")
	dom.SetText(heading, "Additional Materials")
	div.AppendChild(heading)

	for _, row := range dom.QueryAll(block, "> div") {
		items := dom.QueryAll(row, "div")
		if len(items) < 4 {
			p.Logger().Debug("skipping incomplete additional material", "columns", len(items))
			continue
		}
		text := func(i int) string { return strings.TrimSpace(dom.Text(items[i])) }

		item := dom.Element("div")
		for _, part := range []struct {
			tag, text string
		}{
			{"h6", text(0)},
			{"h5", text(1)},
			{"p", text(2)},
		} {
			el := dom.Element(part.tag)
			dom.SetText(el, part.text)
			item.AppendChild(el)
		}

		link := dom.Element("a", "href", text(3))
		dom.SetText(link, "Download")
		item.AppendChild(link)

		div.AppendChild(item)
	}

	dom.Empty(block)
	block.AppendChild(div)
	return nil
}
