// Package importer converts pages of the legacy site into authored content:
// it strips the legacy page chrome, records the page metadata in a
// Metadata block and converts the remaining body to Markdown.
package importer

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
)

// descriptionLength is the number of characters kept from the first
// paragraph for the description.
const descriptionLength = 100

// Selectors of the legacy page.
const (
	titleSelector       = ".content-header__title"
	descriptionSelector = ".apos-rich-text:first-of-type > p"
	dateSelector        = ".content-header__date-tag"
)

// chrome lists the legacy elements removed before conversion.
var chrome = []string{
	"header",
	"footer",
	".caption.content-header__breadcrumb",
	".chart-box-wrapper",
	"#treeChartModal",
	".related-container",
	".fixed-bottom",
	".modal",
	".btn-cta",
	".content-header__date-tag",
}

// Document is an imported page.
type Document struct {
	// Path is the content path the page is stored under.
	Path string

	// Markdown is the converted body.
	Markdown string
}

// Importer converts legacy pages.
type Importer struct {
	conv   *converter.Converter
	logger *slog.Logger
}

// New creates an [Importer]. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Import parses a legacy page fetched from pageURL and converts it.
func (im *Importer) Import(r io.Reader, pageURL string) (*Document, error) {
	path, err := DocumentPath(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	body, err := im.Transform(doc)
	if err != nil {
		return nil, err
	}
	md, err := im.ToMarkdown(body, pageURL)
	if err != nil {
		return nil, err
	}
	return &Document{Path: path, Markdown: md}, nil
}

// Transform prepares doc for conversion and returns its body. The Metadata
// table is read before the chrome is removed, then appended to the body.
// Missing metadata leaves the value cell empty.
func (im *Importer) Transform(doc *html.Node) (*html.Node, error) {
	body := dom.FindTag(doc, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("document has no body")
	}

	title := innerHTML(doc, titleSelector)
	if title == "" {
		im.logger.Warn("page has no title", "selector", titleSelector)
	}
	description := innerHTML(doc, descriptionSelector)
	if description != "" {
		description = truncate(description, descriptionLength) + "..."
	}
	date := innerHTML(doc, dateSelector)

	for _, sel := range chrome {
		for _, n := range dom.QueryAll(body, sel) {
			dom.Detach(n)
		}
	}

	metadata, err := metadataTable([][2]string{
		{"Title", title},
		{"Description", description},
		{"Publication Date", date},
	})
	if err != nil {
		return nil, err
	}
	body.AppendChild(metadata)
	return body, nil
}

// ToMarkdown converts body to Markdown. Relative links resolve against
// pageURL.
func (im *Importer) ToMarkdown(body *html.Node, pageURL string) (string, error) {
	out, err := im.conv.ConvertNode(body, converter.WithDomain(pageURL))
	if err != nil {
		return "", fmt.Errorf("failed to convert page: %w", err)
	}
	return strings.TrimSpace(string(out)) + "\n", nil
}

// DocumentPath returns the content path of a legacy page: its URL path
// without the .html extension and trailing slash.
func DocumentPath(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	p := strings.TrimSuffix(u.Path, ".html")
	return strings.TrimSuffix(p, "/"), nil
}

// metadataTable builds the Metadata block table: a header cell spanning
// both columns and one name/value row per entry.
func metadataTable(rows [][2]string) (*html.Node, error) {
	tbl := dom.Element("table")
	head := dom.Element("tr")
	th := dom.Element("th", "colspan", "2")
	dom.SetText(th, "Metadata")
	head.AppendChild(th)
	tbl.AppendChild(head)

	for _, r := range rows {
		tr := dom.Element("tr")
		name := dom.Element("td")
		dom.SetText(name, r[0])
		value := dom.Element("td")
		if err := dom.SetInnerHTML(value, r[1]); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", r[0], err)
		}
		tr.AppendChild(name)
		tr.AppendChild(value)
		tbl.AppendChild(tr)
	}
	return tbl, nil
}

func innerHTML(root *html.Node, selector string) string {
	n := dom.Query(root, selector)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(dom.InnerHTML(n))
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
