// Package page holds the per-render application context shared by the
// bootstrap phases, the resource loader, the visibility sampler and the block
// decorators.
//
// A [Page] is created once per rendered document. It owns the parsed tree,
// knows the public URL the page is served at and the content origin its
// resources come from, and lazily populates the placeholder and taxonomy
// caches exactly once. Mutations of the shared <head> go through the Page so
// that concurrently loading blocks do not race on it.
package page

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/singleflight"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/taxonomy"
)

// Decorator enhances one block in place.
//
// It is invoked with the block element, the block name, the page and the
// eager flag telling it whether contained media should load without
// deferral. A decorator must only mutate the block's own subtree; shared
// document parts are reachable through the Page's locked helpers.
type Decorator func(ctx context.Context, block *html.Node, name string, p *Page, eager bool) error

// Fetcher retrieves resources over the network.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config configures a [Page].
type Config struct {
	// URL is the public URL the page is rendered for. Required.
	URL *url.URL

	// Origin is the content origin that relative resource paths resolve
	// against. Defaults to URL.
	Origin *url.URL

	// Fetcher performs network access. Required for Fetch and friends.
	Fetcher Fetcher

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// languages recognised as the first path segment.
var languages = []string{"en", "de", "fr", "ko", "es", "it", "jp", "br"}

const defaultLanguage = "en"

// Page is the explicit application context of one render.
type Page struct {
	doc    *html.Node
	head   *html.Node
	body   *html.Node
	main   *html.Node
	header *html.Node
	footer *html.Node

	url     *url.URL
	origin  *url.URL
	fetcher Fetcher
	logger  *slog.Logger
	meta    map[string][]string
	policy  *bluemonday.Policy

	// mu guards mutation and rendering of the document outside of block
	// subtrees (head links and scripts).
	mu sync.Mutex

	group        singleflight.Group
	cacheMu      sync.RWMutex
	placeholders map[string]string
	taxonomy     *taxonomy.Taxonomy
}

// Parse reads an HTML document and wraps it in a [Page].
func Parse(r io.Reader, cfg Config) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return New(doc, cfg)
}

// New wraps an already parsed document.
func New(doc *html.Node, cfg Config) (*Page, error) {
	if cfg.URL == nil {
		return nil, fmt.Errorf("page url is required")
	}
	origin := cfg.Origin
	if origin == nil {
		origin = cfg.URL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Page{
		doc:     doc,
		url:     cfg.URL,
		origin:  origin,
		fetcher: cfg.Fetcher,
		logger:  logger,
		policy:  fragmentPolicy(),
	}

	p.head = dom.FindTag(doc, atom.Head)
	p.body = dom.FindTag(doc, atom.Body)
	if p.head == nil || p.body == nil {
		return nil, fmt.Errorf("document has no head or body")
	}
	p.main = dom.FindTag(p.body, atom.Main)
	p.header = dom.FindTag(p.body, atom.Header)
	p.footer = dom.FindTag(p.body, atom.Footer)
	p.meta = readMeta(p.head)

	return p, nil
}

// fragmentPolicy allows user generated content plus the structural
// attributes blocks rely on.
func fragmentPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class", "id").Globally()
	policy.AllowElements("picture", "source")
	policy.AllowAttrs("srcset", "media", "type").OnElements("source")
	policy.AllowAttrs("loading").OnElements("img")
	return policy
}

// readMeta snapshots <meta> values keyed by name or property.
func readMeta(head *html.Node) map[string][]string {
	out := make(map[string][]string)
	for _, m := range dom.FindAll(head, func(n *html.Node) bool { return n.DataAtom == atom.Meta }) {
		key := dom.Attr(m, "name")
		if key == "" {
			key = dom.Attr(m, "property")
		}
		if key == "" {
			continue
		}
		out[key] = append(out[key], dom.Attr(m, "content"))
	}
	return out
}

// Document returns the root node.
func (p *Page) Document() *html.Node { return p.doc }

// Head returns the <head> element. Mutate it through Page helpers only.
func (p *Page) Head() *html.Node { return p.head }

// Body returns the <body> element.
func (p *Page) Body() *html.Node { return p.body }

// Main returns the <main> element, or nil.
func (p *Page) Main() *html.Node { return p.main }

// Header returns the <header> element, or nil.
func (p *Page) Header() *html.Node { return p.header }

// Footer returns the <footer> element, or nil.
func (p *Page) Footer() *html.Node { return p.footer }

// Logger returns the page logger.
func (p *Page) Logger() *slog.Logger { return p.logger }

// URL returns a copy of the public page URL.
func (p *Page) URL() *url.URL {
	u := *p.url
	return &u
}

// Query returns the page's query parameters.
func (p *Page) Query() url.Values { return p.url.Query() }

// Meta returns the metadata value for name, with multiple values joined by
// ", ". Names containing ':' are matched against the property attribute in
// the source document; both are read into the same table.
func (p *Page) Meta(name string) string {
	return strings.Join(p.meta[name], ", ")
}

// MetaAll returns every metadata value for name, in document order.
func (p *Page) MetaAll(name string) []string {
	return append([]string(nil), p.meta[name]...)
}

// Language returns the language code taken from the first path segment,
// defaulting to "en".
func (p *Page) Language() string {
	segs := strings.Split(p.url.Path, "/")
	if len(segs) > 1 {
		for _, lang := range languages {
			if segs[1] == lang {
				return lang
			}
		}
	}
	return defaultLanguage
}

// RootPath returns the language dependent root path, e.g. "/en".
func (p *Page) RootPath() string {
	return "/" + p.Language()
}

// Resolve resolves ref against the content origin.
func (p *Page) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.origin.ResolveReference(u).String()
}

// Absolute resolves ref against the public page URL.
func (p *Page) Absolute(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.url.ResolveReference(u).String()
}

// Fetch resolves ref against the content origin and retrieves it.
func (p *Page) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if p.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	return p.fetcher.Get(ctx, p.Resolve(ref))
}

// FetchFragment retrieves the plain rendition of a content path
// ({ref}.plain.html), sanitises it and returns it parsed under a detached
// <div>.
func (p *Page) FetchFragment(ctx context.Context, ref string) (*html.Node, error) {
	data, err := p.Fetch(ctx, strings.TrimSuffix(ref, "/")+".plain.html")
	if err != nil {
		return nil, err
	}
	clean := p.policy.SanitizeBytes(data)

	container := dom.Element("div")
	if err := dom.SetInnerHTML(container, string(clean)); err != nil {
		return nil, fmt.Errorf("failed to parse fragment %s: %w", ref, err)
	}
	return container, nil
}

// AddStylesheet appends <link rel=stylesheet href=href> to the head unless a
// link with the same href exists. It reports whether the link was added.
func (p *Page) AddStylesheet(href string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := p.head.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Link && dom.Attr(c, "href") == href {
			return false
		}
	}
	p.head.AppendChild(dom.Element("link", "rel", "stylesheet", "href", href))
	return true
}

// HasScript reports whether a <script src=src> is present in the head.
func (p *Page) HasScript(src string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasScriptLocked(src)
}

func (p *Page) hasScriptLocked(src string) bool {
	for c := p.head.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Script && dom.Attr(c, "src") == src {
			return true
		}
	}
	return false
}

// AddScript appends a <script> to the head unless one with the same src
// exists. typ may be empty. It reports whether the script was added.
func (p *Page) AddScript(src, typ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasScriptLocked(src) {
		return false
	}
	script := dom.Element("script", "src", src)
	if typ != "" {
		dom.SetAttr(script, "type", typ)
	}
	p.head.AppendChild(script)
	return true
}

// SetFavicon replaces the existing icon link, or appends one.
func (p *Page) SetFavicon(href string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	link := dom.Element("link", "rel", "icon", "type", "image/svg+xml", "href", href)
	for c := p.head.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Link && dom.Attr(c, "rel") == "icon" {
			dom.Replace(c, link)
			return
		}
	}
	p.head.AppendChild(link)
}

// Render writes the document. It holds the head lock so a still running
// delayed phase cannot interleave with serialisation.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return html.Render(w, p.doc)
}

// Placeholders returns the localised strings of the page language, fetched
// from {root}/placeholders.json on first use. Concurrent first callers share
// one fetch; failures are not cached.
func (p *Page) Placeholders(ctx context.Context) (map[string]string, error) {
	p.cacheMu.RLock()
	cached := p.placeholders
	p.cacheMu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := p.group.Do("placeholders", func() (any, error) {
		data, err := p.Fetch(ctx, p.RootPath()+"/placeholders.json")
		if err != nil {
			return nil, fmt.Errorf("failed to fetch placeholders: %w", err)
		}
		placeholders, err := parsePlaceholders(data)
		if err != nil {
			return nil, err
		}
		p.cacheMu.Lock()
		p.placeholders = placeholders
		p.cacheMu.Unlock()
		return placeholders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// Taxonomy returns the site taxonomy, fetched from {root}/taxonomy.json on
// first use. Concurrent first callers share one fetch; failures are not
// cached.
func (p *Page) Taxonomy(ctx context.Context) (*taxonomy.Taxonomy, error) {
	if tax := p.LoadedTaxonomy(); tax != nil {
		return tax, nil
	}

	v, err, _ := p.group.Do("taxonomy", func() (any, error) {
		data, err := p.Fetch(ctx, p.RootPath()+"/taxonomy.json")
		if err != nil {
			return nil, fmt.Errorf("failed to fetch taxonomy: %w", err)
		}
		tax, err := taxonomy.Parse(data, p.RootPath())
		if err != nil {
			return nil, err
		}
		p.cacheMu.Lock()
		p.taxonomy = tax
		p.cacheMu.Unlock()
		return tax, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*taxonomy.Taxonomy), nil
}

// LoadedTaxonomy returns the taxonomy if it has been fetched already, or nil.
func (p *Page) LoadedTaxonomy() *taxonomy.Taxonomy {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	return p.taxonomy
}
