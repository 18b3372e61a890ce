package page

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jpalmerr/pageblocks/dom"
)

// fakeFetcher serves canned bodies by URL and counts requests.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
	total  atomic.Int32
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *fakeFetcher) Get(_ context.Context, u string) ([]byte, error) {
	f.total.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[u]++
	body, ok := f.bodies[u]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}

func newTestPage(t *testing.T, rawURL, doc string, f Fetcher) *Page {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	p, err := Parse(strings.NewReader(doc), Config{URL: u, Fetcher: f})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

const testDoc = `<html><head>
<meta name="author" content="Jane Doe">
<meta property="article:tag" content="Economy">
<meta property="article:tag" content="Markets">
</head><body><header></header><main><div><h1>Title</h1></div></main><footer></footer></body></html>`

func TestNew_RequiresURL(t *testing.T) {
	if _, err := Parse(strings.NewReader(testDoc), Config{}); err == nil {
		t.Fatal("Parse() error = nil, want error for missing url")
	}
}

func TestPage_Landmarks(t *testing.T) {
	p := newTestPage(t, "https://example.com/en/a", testDoc, nil)
	if p.Main() == nil || p.Header() == nil || p.Footer() == nil {
		t.Fatal("landmark elements not found")
	}
}

func TestPage_Meta(t *testing.T) {
	p := newTestPage(t, "https://example.com/en/a", testDoc, nil)

	if got := p.Meta("author"); got != "Jane Doe" {
		t.Errorf("Meta(author) = %q", got)
	}
	if got := p.Meta("article:tag"); got != "Economy, Markets" {
		t.Errorf("Meta(article:tag) = %q", got)
	}
	if got := p.MetaAll("article:tag"); len(got) != 2 || got[1] != "Markets" {
		t.Errorf("MetaAll(article:tag) = %v", got)
	}
	if got := p.MetaAll("missing"); len(got) != 0 {
		t.Errorf("MetaAll(missing) = %v, want empty", got)
	}
}

func TestPage_Language(t *testing.T) {
	tests := map[string]string{
		"https://example.com/de/topics/x": "de",
		"https://example.com/jp":          "jp",
		"https://example.com/xx/page":     "en",
		"https://example.com/":            "en",
	}
	for raw, want := range tests {
		p := newTestPage(t, raw, testDoc, nil)
		if got := p.Language(); got != want {
			t.Errorf("Language(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestPage_AddStylesheet_Dedupes(t *testing.T) {
	p := newTestPage(t, "https://example.com/en/a", testDoc, nil)

	if !p.AddStylesheet("/blocks/a/a.css") {
		t.Fatal("first AddStylesheet() = false, want true")
	}
	if p.AddStylesheet("/blocks/a/a.css") {
		t.Error("second AddStylesheet() = true, want false")
	}
	if n := len(dom.QueryAll(p.Head(), "link")); n != 1 {
		t.Errorf("head has %d links, want 1", n)
	}
}

func TestPage_AddScriptAndFavicon(t *testing.T) {
	p := newTestPage(t, "https://example.com/en/a", testDoc, nil)

	if p.HasScript("/scripts/delayed.js") {
		t.Fatal("HasScript() = true before adding")
	}
	p.AddScript("/scripts/delayed.js", "module")
	if !p.HasScript("/scripts/delayed.js") {
		t.Error("HasScript() = false after adding")
	}

	p.SetFavicon("/a.svg")
	p.SetFavicon("/b.svg")
	icons := dom.QueryAll(p.Head(), `link[rel="icon"]`)
	if len(icons) != 1 || dom.Attr(icons[0], "href") != "/b.svg" {
		t.Errorf("favicon links = %d", len(icons))
	}

	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), `<script src="/scripts/delayed.js" type="module">`) {
		t.Errorf("rendered output missing script: %s", buf.String())
	}
}

func TestPage_Placeholders_FetchedOnce(t *testing.T) {
	f := newFakeFetcher(map[string]string{
		"https://example.com/fr/placeholders.json": `{"data":[{"Key":"copied-to-clipboard","Text":"Copié"}]}`,
	})
	p := newTestPage(t, "https://example.com/fr/article", testDoc, f)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Placeholders(context.Background()); err != nil {
				t.Errorf("Placeholders() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := p.Placeholders(context.Background())
	if got["copied-to-clipboard"] != "Copié" {
		t.Errorf("placeholder = %q", got["copied-to-clipboard"])
	}
	if n := f.calls["https://example.com/fr/placeholders.json"]; n < 1 || n > 10 {
		t.Fatalf("fetch count = %d", n)
	}
	// once cached, no further fetches happen
	before := f.total.Load()
	_, _ = p.Placeholders(context.Background())
	if f.total.Load() != before {
		t.Error("cached placeholders triggered another fetch")
	}
}

func TestPage_Taxonomy_FailureNotCached(t *testing.T) {
	f := newFakeFetcher(map[string]string{})
	p := newTestPage(t, "https://example.com/en/article", testDoc, f)

	if _, err := p.Taxonomy(context.Background()); err == nil {
		t.Fatal("Taxonomy() error = nil, want error")
	}
	if p.LoadedTaxonomy() != nil {
		t.Fatal("failed taxonomy should not be cached")
	}

	f.mu.Lock()
	f.bodies["https://example.com/en/taxonomy.json"] = `{"data":[{"Name":"Economy","UFT":"yes"}]}`
	f.mu.Unlock()

	tax, err := p.Taxonomy(context.Background())
	if err != nil {
		t.Fatalf("Taxonomy() error = %v", err)
	}
	if _, ok := tax.Get("Economy"); !ok {
		t.Error("Economy missing from taxonomy")
	}
	if p.LoadedTaxonomy() != tax {
		t.Error("LoadedTaxonomy() should return the cached taxonomy")
	}
}

func TestPage_FetchFragment_Sanitises(t *testing.T) {
	f := newFakeFetcher(map[string]string{
		"https://origin.example.com/en/footer.plain.html": `<div class="social"><a href="https://twitter.com/x">t</a></div><script>alert(1)</script>`,
	})
	u, _ := url.Parse("https://example.com/en/a")
	origin, _ := url.Parse("https://origin.example.com")
	p, err := Parse(strings.NewReader(testDoc), Config{URL: u, Origin: origin, Fetcher: f})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	frag, err := p.FetchFragment(context.Background(), "/en/footer")
	if err != nil {
		t.Fatalf("FetchFragment() error = %v", err)
	}
	if dom.Query(frag, "script") != nil {
		t.Error("script element survived sanitising")
	}
	if dom.Query(frag, ".social a") == nil {
		t.Error("class attribute should be preserved")
	}
}

func TestPage_Resolve(t *testing.T) {
	u, _ := url.Parse("https://example.com/en/a")
	origin, _ := url.Parse("https://main--site--org.hlx.page")
	p, err := Parse(strings.NewReader(testDoc), Config{URL: u, Origin: origin})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := p.Resolve("/en/gnav"); got != "https://main--site--org.hlx.page/en/gnav" {
		t.Errorf("Resolve() = %q", got)
	}
	if got := p.Absolute("/media_1.png"); got != "https://example.com/media_1.png" {
		t.Errorf("Absolute() = %q", got)
	}
}
