package blocks

import (
	"context"

	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
)

// Images turns every column of an images block into a figure holding the
// picture and its caption.
func Images(_ context.Context, block *html.Node, _ string, _ *page.Page, _ bool) error {
	for _, col := range dom.QueryAll(block, "> div > div") {
		if dom.IsBlank(col) {
			continue
		}
		fig := BuildFigure(col)
		dom.Empty(col)
		col.AppendChild(fig)
	}
	return nil
}
