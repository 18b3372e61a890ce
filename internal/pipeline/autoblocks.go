package pipeline

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
	"github.com/jpalmerr/pageblocks/taxonomy"
)

// buildArticleHeader synthesises the article-header block from page metadata
// and the article's title and hero picture. Rows: category link, title,
// publication date, author link, hero picture with caption. Without an <h1>
// nothing is built.
func buildArticleHeader(p *page.Page, main *html.Node) {
	h1 := dom.FindTag(main, atom.H1)
	if h1 == nil {
		return
	}
	picture := dom.FindTag(main, atom.Picture)

	tax := p.LoadedTaxonomy()
	category := tax.Compute(p.MetaAll("article:tag")).Category

	author := p.Meta("author")
	authorURL := p.Meta("author-url")
	if authorURL == "" {
		authorURL = p.RootPath() + "/authors/" + dom.ClassName(author)
	}

	categoryP := dom.Element("p")
	categoryP.AppendChild(taxonomy.TopicLink(tax, category))

	dateP := dom.Element("p")
	dom.SetText(dateP, p.Meta("publication-date"))

	authorLink := dom.Element("a", "href", authorURL)
	dom.SetText(authorLink, author)
	authorDiv := dom.Element("div")
	authorDiv.AppendChild(authorLink)

	rows := [][][]*html.Node{
		row(cell(categoryP)),
		row(cell(h1)),
		row(cell(dateP)),
		row(cell(authorDiv)),
	}
	if picture != nil {
		if para := dom.ClosestTag(picture, atom.P); para != nil {
			rows = append(rows, row(cell(para, imageCaption(picture))))
		} else {
			rows = append(rows, row(cell(picture)))
		}
	}

	section := dom.Element("div")
	section.AppendChild(BuildBlock("article-header", rows...))
	dom.Prepend(main, section)
}

// firstHeading returns the first h1 or h2 in main.
func firstHeading(main *html.Node) *html.Node {
	return dom.Query(main, "h1, h2")
}

// buildTagHeader prepends a tag-header block (heading, picture) to the first
// section of a topic page and returns the heading text, or "" when the page
// has no heading.
func buildTagHeader(main *html.Node) string {
	section := dom.FindTag(main, atom.Div)
	heading := firstHeading(main)
	if section == nil || heading == nil {
		return ""
	}
	title := strings.TrimSpace(dom.Text(heading))
	picture := dom.FindTag(main, atom.Picture)

	rows := [][][]*html.Node{row(cell(heading))}
	if picture != nil {
		rows = append(rows, row(cell(pictureParagraph(picture))))
	}
	dom.Prepend(section, BuildBlock("tag-header", rows...))
	return title
}

// buildAuthorHeader prepends an author-header block (heading, picture, bio)
// to the first section of an author page and returns the heading text.
func buildAuthorHeader(main *html.Node) string {
	section := dom.FindTag(main, atom.Div)
	heading := firstHeading(main)
	if section == nil || heading == nil {
		return ""
	}
	title := strings.TrimSpace(dom.Text(heading))
	bio := dom.NextElementSibling(heading)
	if !dom.Is(bio, atom.P) {
		bio = nil
	}
	picture := dom.FindTag(main, atom.Picture)

	rows := [][][]*html.Node{row(cell(heading))}
	if picture != nil {
		para := pictureParagraph(picture)
		if para == bio {
			bio = nil
		}
		rows = append(rows, row(cell(para)))
	}
	if bio != nil {
		rows = append(rows, row(cell(bio)))
	}
	dom.Prepend(section, BuildBlock("author-header", rows...))
	return title
}

// pictureParagraph returns the paragraph holding picture, or the picture
// itself when it is not inside one.
func pictureParagraph(picture *html.Node) *html.Node {
	if para := dom.ClosestTag(picture, atom.P); para != nil {
		return para
	}
	return picture
}

// buildSocialLinks replaces a "Social:" paragraph directly followed by a list
// with a social-links block holding that list.
func buildSocialLinks(main *html.Node) {
	for _, p := range dom.QueryAll(main, "p") {
		if strings.TrimSpace(dom.Text(p)) != "Social:" {
			continue
		}
		list := dom.NextElementSibling(p)
		if list == nil || list != dom.FindTag(p.Parent, atom.Ul) {
			continue
		}
		dom.Replace(p, BuildBlock("social-links", row(cell(list))))
		return
	}
}

// buildArticleFeed appends a section holding an article-feed block of the
// given feed type.
func buildArticleFeed(main *html.Node, feedType, title string) {
	section := dom.Element("div")
	section.AppendChild(BuildBlock("article-feed",
		row(cell(dom.TextNode(feedType)), cell(dom.TextNode(title))),
	))
	main.AppendChild(section)
}

// buildNewsletterModal appends the placeholder section of the newsletter
// signup dialog.
func buildNewsletterModal(main *html.Node) {
	section := dom.Element("div")
	section.AppendChild(BuildBlock("newsletter-modal"))
	main.AppendChild(section)
}
