package blocks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/page"
)

// FooterSourceAttr names the content path of the footer fragment.
const FooterSourceAttr = "data-footer-source"

// socialNetworks have an icon under /blocks/footer/{name}-square.svg.
var socialNetworks = []string{"facebook", "instagram", "twitter", "linkedin"}

// Footer builds the site footer from the fragment at data-footer-source:
// a navigation grid, social icons and the privacy row. Without a source the
// footer is left untouched.
func Footer(ctx context.Context, block *html.Node, _ string, p *page.Page, _ bool) error {
	source := dom.Attr(block, FooterSourceAttr)
	if source == "" {
		return nil
	}
	frag, err := p.FetchFragment(ctx, source)
	if err != nil {
		return fmt.Errorf("footer: failed to fetch %s: %w", source, err)
	}

	wrapper := dom.Element("div", "class", "footer-wrapper")
	if grid := footerGrid(frag); grid != nil {
		wrapper.AppendChild(grid)
	}

	info := dom.Element("div", "class", "footer-info")
	left := dom.Element("div", "class", "footer-info-column")
	right := dom.Element("div", "class", "footer-info-column")

	if social := footerSocial(frag); social != nil {
		left.AppendChild(social)
		dom.AddClass(info, "has-social")
	}
	if privacy := footerPrivacy(frag); privacy != nil {
		right.AppendChild(privacy)
		dom.AddClass(info, "has-privacy")
	}
	for _, col := range []*html.Node{left, right} {
		if col.FirstChild != nil {
			info.AppendChild(col)
		}
	}
	if info.FirstChild != nil {
		wrapper.AppendChild(info)
	}

	block.AppendChild(wrapper)
	return nil
}

func footerGrid(frag *html.Node) *html.Node {
	gridBlock := dom.Query(frag, ".footer-links > div")
	if gridBlock == nil {
		return nil
	}

	grid := dom.Element("div", "class", "footer-nav-grid")
	for _, column := range dom.QueryAll(gridBlock, "div") {
		navColumn := dom.Element("div", "class", "footer-nav-column")
		for _, heading := range dom.QueryAll(column, "h2") {
			item := dom.Element("div", "class", "footer-nav-item")
			text := dom.Text(heading)
			id := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(text)), " ", "-")

			title := dom.Element("h4",
				"class", "footer-nav-item-title",
				"role", "button",
				"aria-expanded", "false",
				"aria-controls", id+"-menu",
			)
			dom.SetText(title, text)
			item.AppendChild(title)

			if links := dom.NextElementSibling(heading); links != nil {
				dom.SetAttr(links, "class", "footer-nav-item-links")
				dom.SetAttr(links, "id", id+"-menu")
				for _, li := range dom.QueryAll(links, "li") {
					dom.AddClass(li, "footer-nav-item-link")
				}
				dom.Append(item, links)
			}
			navColumn.AppendChild(item)
		}
		grid.AppendChild(navColumn)
	}
	return grid
}

// socialDomain reduces a link host to the bare network name.
func socialDomain(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	host := strings.Replace(u.Host, "www.", "", 1)
	return strings.Replace(host, ".com", "", 1)
}

func footerSocial(frag *html.Node) *html.Node {
	socialEl := dom.Query(frag, ".social > div")
	if socialEl == nil {
		return nil
	}

	wrapper := dom.Element("div", "class", "footer-social")
	icons := dom.Element("ul", "class", "footer-social-icons")
	for _, a := range dom.QueryAll(socialEl, "a") {
		domain := socialDomain(dom.Attr(a, "href"))
		if !contains(socialNetworks, domain) {
			dom.Detach(a)
			continue
		}
		li := dom.Element("li", "class", "footer-social-icon")
		img := dom.Element("img",
			"class", "footer-social-img",
			"loading", "lazy",
			"src", "/blocks/footer/"+domain+"-square.svg",
		)
		dom.Empty(a)
		a.AppendChild(img)
		dom.Append(li, a)
		icons.AppendChild(li)
	}
	wrapper.AppendChild(icons)
	return wrapper
}

func footerPrivacy(frag *html.Node) *html.Node {
	copyrightEl := dom.Query(frag, "div em")
	if copyrightEl == nil || copyrightEl.Parent == nil {
		return nil
	}
	links := dom.QueryAll(copyrightEl.Parent, "a")

	wrapper := dom.Element("div", "class", "footer-privacy")
	copyright := dom.Element("p", "class", "footer-privacy-copyright")
	dom.SetText(copyright, dom.Text(copyrightEl))
	wrapper.AppendChild(copyright)

	list := dom.Element("ul", "class", "footer-privacy-links")
	for _, link := range links {
		li := dom.Element("li", "class", "footer-privacy-link")
		if u, err := url.Parse(dom.Attr(link, "href")); err == nil && u.Fragment == "interest-based-ads" {
			dom.Prepend(link, dom.Element("img",
				"class", "footer-link-img",
				"loading", "lazy",
				"src", "/blocks/footer/adchoices-small.svg",
			))
		}
		dom.Append(li, link)
		list.AppendChild(li)
	}
	wrapper.AppendChild(list)
	return wrapper
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
