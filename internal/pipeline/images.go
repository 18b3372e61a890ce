package pipeline

import (
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
)

// decoratePictures rebuilds media bus pictures with optimised sources. The
// first image on the page is the LCP candidate and loads eagerly.
func (pl *Pipeline) decoratePictures(main *html.Node) {
	for i, img := range dom.QueryAll(main, `img[src*="/media_"]`) {
		picture := dom.ClosestTag(img, atom.Picture)
		if picture == nil || picture.Parent == nil {
			continue
		}
		optimized, err := dom.OptimizedPicture(dom.Attr(img, "src"), dom.Attr(img, "alt"), i == 0, pl.opts.Breakpoints)
		if err != nil {
			pl.logger.Debug("skipping picture", "src", dom.Attr(img, "src"), "error", err)
			continue
		}
		dom.Replace(picture, optimized)
	}
}

// makeLinksRelative turns absolute links to preview or production hosts into
// site relative links and drops the .html extension.
func (pl *Pipeline) makeLinksRelative(p *page.Page, main *html.Node) {
	hosts := append(slices.Clone(previewHosts), pl.opts.ProductionDomains...)
	base := p.URL()

	for _, a := range dom.QueryAll(main, "a[href]") {
		ref, err := url.Parse(dom.Attr(a, "href"))
		if err != nil {
			pl.logger.Debug("skipping link", "href", dom.Attr(a, "href"), "error", err)
			continue
		}
		u := base.ResolveReference(ref)
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if !slices.ContainsFunc(hosts, func(h string) bool { return strings.Contains(u.Hostname(), h) }) {
			continue
		}

		rel := strings.TrimSuffix(u.EscapedPath(), ".html")
		if u.RawQuery != "" {
			rel += "?" + u.RawQuery
		}
		if u.Fragment != "" {
			rel += "#" + u.EscapedFragment()
		}
		dom.SetAttr(a, "href", rel)
	}
}

// removeStylingFromImages moves pictures the authoring tool wrapped in
// <strong> or <em> to the front of their paragraph and drops the emptied
// wrapper.
func removeStylingFromImages(main *html.Node) {
	for _, picture := range dom.QueryAll(main, "strong picture, em picture") {
		p := dom.ClosestTag(picture, atom.P)
		if p == nil {
			continue
		}
		wrapper := dom.Closest(picture.Parent, func(n *html.Node) bool {
			return n.DataAtom == atom.Strong || n.DataAtom == atom.Em
		})
		dom.Prepend(p, picture)
		for wrapper != nil && wrapper != p && dom.IsBlank(wrapper) {
			parent := wrapper.Parent
			dom.Detach(wrapper)
			wrapper = parent
		}
	}
}

// isImageParagraph reports whether n is a <p> holding only pictures.
func isImageParagraph(n *html.Node) bool {
	if !dom.Is(n, atom.P) {
		return false
	}
	pictures := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case dom.Is(c, atom.Picture):
			pictures++
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		default:
			return false
		}
	}
	return pictures > 0
}

// imageCaption returns the paragraph following a picture's paragraph when it
// starts with <em>, or nil.
func imageCaption(picture *html.Node) *html.Node {
	next := dom.NextElementSibling(picture.Parent)
	if !dom.Is(next, atom.P) {
		return nil
	}
	first := next.FirstChild
	for first != nil && first.Type == html.TextNode && strings.TrimSpace(first.Data) == "" {
		first = first.NextSibling
	}
	if dom.Is(first, atom.Em) {
		return next
	}
	return nil
}

// buildImageBlocks groups runs of bare image paragraphs (each optionally
// followed by its caption) into a single images block with one column per
// picture.
func buildImageBlocks(main *html.Node) {
	for _, section := range dom.Children(main) {
		if !dom.Is(section, atom.Div) {
			continue
		}

		var current *html.Node // row of the images block being filled
		for _, n := range dom.Children(section) {
			if n.Parent != section {
				continue // consumed as a caption
			}
			if !isImageParagraph(n) {
				current = nil
				continue
			}

			pictures := dom.Children(n)
			caption := imageCaption(pictures[0])

			if current == nil {
				block := BuildBlock("images", row())
				current = block.FirstChild
				dom.Replace(n, block)
			} else {
				dom.Detach(n)
			}
			for i, picture := range pictures {
				col := dom.Element("div")
				dom.Append(col, picture)
				if i == len(pictures)-1 && caption != nil {
					dom.Append(col, caption)
				}
				current.AppendChild(col)
			}
		}
	}
}
