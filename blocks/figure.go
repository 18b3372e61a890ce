package blocks

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
)

// BuildFigure builds a <figure class="figure"> from a copy of the content of
// col. Pictures, videos and links are moved to the front, an <em> becomes
// the figcaption and a link in a paragraph wraps the picture or video.
func BuildFigure(col *html.Node) *html.Node {
	fig := dom.Element("figure", "class", "figure")
	if col == nil {
		return fig
	}

	for c := col.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		clone := dom.Clone(c)
		switch clone.DataAtom {
		case atom.Picture, atom.Video, atom.A:
			dom.Prepend(fig, clone)
			continue
		}

		if picture := dom.FindTag(clone, atom.Picture); picture != nil {
			dom.Prepend(fig, picture)
		}
		if video := dom.FindTag(clone, atom.Video); video != nil {
			dom.Prepend(fig, video)
		}
		if em := dom.FindTag(clone, atom.Em); em != nil {
			fig.AppendChild(BuildCaption(em))
		}
		if link := dom.FindTag(clone, atom.A); link != nil {
			media := dom.FindTag(fig, atom.Picture)
			if media == nil {
				media = dom.FindTag(fig, atom.Video)
			}
			if media != nil {
				dom.Empty(link)
				dom.Append(link, media)
			}
			dom.Prepend(fig, link)
		}
	}
	return fig
}

// BuildCaption moves el into a new <figcaption>, marking it as a caption.
func BuildCaption(el *html.Node) *html.Node {
	caption := dom.Element("figcaption")
	dom.AddClass(el, "caption")
	dom.Append(caption, el)
	return caption
}

// moveChildren moves every child node of src, text included, to the end of
// dst.
func moveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}
