package blocks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
)

const authorFallbackImage = "/blocks/article-header/alexforbes-connector.svg"

// authorBreakpoints size author portraits.
var authorBreakpoints = []dom.Breakpoint{{Width: 200}}

// ArticleHeader decorates the article-header block. Rows are category,
// title, date, authors and an optional feature image.
//
// Each author gets a portrait from the first image of its page's plain
// rendition; when that page cannot be fetched the author link is replaced by
// a plain paragraph. Sharing links are appended to the authors row.
func ArticleHeader(ctx context.Context, block *html.Node, _ string, p *page.Page, eager bool) error {
	rows := dom.Children(block)
	if len(rows) < 4 {
		return fmt.Errorf("article-header: want at least 4 rows, got %d", len(rows))
	}

	dom.AddClass(rows[0], "article-category")
	dom.AddClass(rows[1], "article-title")
	dom.AddClass(rows[2], "article-date")

	authors := rows[3]
	dom.AddClass(authors, "article-authors")
	if info := dom.FirstElementChild(authors); info != nil {
		dom.AddClass(info, "article-authors-info")
	}
	decorateAuthors(ctx, authors, p, eager)

	authors.AppendChild(buildSharing(block, p))

	if len(rows) > 4 {
		feature := rows[4]
		dom.AddClass(feature, "article-feature-image")
		if col := dom.FirstElementChild(feature); col != nil {
			fig := BuildFigure(col)
			dom.AddClass(fig, "figure-feature")
			dom.Prepend(feature, fig)
			dom.Detach(col)
		}
	}
	return nil
}

func decorateAuthors(ctx context.Context, authors *html.Node, p *page.Page, eager bool) {
	var g errgroup.Group
	for _, author := range dom.QueryAll(authors, "> div > div") {
		dom.AddClass(author, "article-author")
		link := dom.Query(author, "a")
		name := strings.TrimSpace(dom.Text(author))

		img := dom.Element("div",
			"class", "article-author-image",
			"style", "background-image: url("+authorFallbackImage+")",
		)
		dom.Prepend(author, img)

		if link == nil {
			continue
		}
		// each author only touches its own subtree
		g.Go(func() error {
			populateAuthor(ctx, p, link, img, name, eager)
			return nil
		})
	}
	_ = g.Wait()
}

// populateAuthor fetches the author page and places its first image in
// container. Failures degrade to an unlinked author name.
func populateAuthor(ctx context.Context, p *page.Page, link, container *html.Node, name string, eager bool) {
	href := dom.Attr(link, "href")
	frag, err := p.FetchFragment(ctx, href)
	if err != nil {
		p.Logger().Debug("author page unavailable", "author", name, "url", href, "error", err)
		para := dom.Element("p")
		moveChildren(para, link)
		dom.Replace(link, para)
		return
	}

	src := dom.Attr(dom.Query(frag, "img"), "src")
	if src == "" {
		return
	}
	base, err := url.Parse(p.Resolve(href))
	if err != nil {
		return
	}
	ref, err := url.Parse(src)
	if err != nil {
		return
	}

	picture, err := dom.OptimizedPicture(base.ResolveReference(ref).String(), name, eager, authorBreakpoints)
	if err != nil {
		p.Logger().Debug("invalid author image", "author", name, "src", src, "error", err)
		return
	}
	container.AppendChild(picture)
	// the portrait replaces the fallback background
	dom.SetAttr(container, "style", "background-image: none")
}

// encodeURIComponent escapes s for use as a single query value.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// buildSharing builds the social sharing links of the page. The title comes
// from the block's own heading so no other subtree is read.
func buildSharing(block *html.Node, p *page.Page) *html.Node {
	pageURL := encodeURIComponent(p.URL().String())
	title := encodeURIComponent(strings.TrimSpace(dom.Text(dom.Query(block, "h1"))))
	description := encodeURIComponent(p.Meta("description"))

	sharing := dom.Element("div", "class", "article-social-sharing")
	links := []struct {
		typ, href, icon string
	}{
		{"Twitter", "https://www.twitter.com/share?&url=" + pageURL + "&text=" + title, "twitter"},
		{"LinkedIn", "https://www.linkedin.com/shareArticle?mini=true&url=" + pageURL + "&title=" + title + "&summary=" + description, "linkedin"},
		{"Facebook", "https://www.facebook.com/sharer/sharer.php?u=" + pageURL, "facebook"},
		{"", "", "link"},
	}
	for _, l := range links {
		a := dom.Element("a")
		if l.typ != "" {
			dom.SetAttr(a, "data-type", l.typ)
			dom.SetAttr(a, "data-href", l.href)
		} else {
			dom.SetAttr(a, "id", "copy-to-clipboard")
		}
		a.AppendChild(icon(l.icon))

		span := dom.Element("span")
		span.AppendChild(a)
		sharing.AppendChild(span)
	}
	return sharing
}

// icon returns the image of a named icon.
func icon(name string) *html.Node {
	return dom.Element("img",
		"class", "icon icon-"+name,
		"src", "/icons/"+name+".svg",
		"alt", name,
	)
}
