package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/internal/registry"
	"github.com/jpalmerr/pageblocks/page"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingFetcher serves bodies by URL and counts requests per URL.
type countingFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
	delay  time.Duration
}

func newCountingFetcher(bodies map[string]string) *countingFetcher {
	return &countingFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *countingFetcher) Get(_ context.Context, u string) ([]byte, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[u]++
	body, ok := f.bodies[u]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}

func (f *countingFetcher) count(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

// mapResolver is a static decorator table.
type mapResolver map[string]page.Decorator

func (m mapResolver) Decorator(name string) (page.Decorator, bool) {
	d, ok := m[name]
	return d, ok
}

const testDoc = `<html><head></head><body><main>
<div class="section-wrapper"><div><div class="hero"><div><div>x</div></div></div></div></div>
<div class="section-wrapper"><div><div class="cards"></div></div></div>
<div class="section-wrapper"><div><div class="broken"></div></div></div>
</main></body></html>`

func setup(t *testing.T, f page.Fetcher) (*page.Page, *registry.Registry) {
	t.Helper()
	u, _ := url.Parse("https://example.com/en/article")
	p, err := page.Parse(strings.NewReader(testDoc), page.Config{URL: u, Fetcher: f, Logger: testLogger()})
	if err != nil {
		t.Fatalf("page.Parse() error = %v", err)
	}
	r := registry.New(nil)
	for _, n := range dom.QueryAll(p.Main(), "div.section-wrapper > div > div") {
		r.Classify(n)
	}
	return p, r
}

func blockNamed(t *testing.T, r *registry.Registry, name string) *registry.Block {
	t.Helper()
	for _, b := range r.Blocks() {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("block %q not registered", name)
	return nil
}

func TestLoad_ConcurrentCallsLoadOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newCountingFetcher(map[string]string{
		"https://example.com/blocks/hero/hero.css": ".hero{}",
	})
	f.delay = 10 * time.Millisecond
	p, r := setup(t, f)

	var calls atomic.Int32
	resolver := mapResolver{
		"hero": func(_ context.Context, block *html.Node, name string, _ *page.Page, eager bool) error {
			calls.Add(1)
			dom.AddClass(block, "decorated")
			return nil
		},
	}
	l := New(p, resolver)
	hero := blockNamed(t, r, "hero")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Load(context.Background(), hero, false)
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("decorator calls = %d, want 1", n)
	}
	if n := f.count("https://example.com/blocks/hero/hero.css"); n != 1 {
		t.Errorf("stylesheet fetches = %d, want 1", n)
	}
	if hero.Status() != registry.StatusLoaded {
		t.Errorf("Status() = %q, want loaded", hero.Status())
	}
	if !dom.HasClass(hero.Node, "decorated") {
		t.Error("decorator did not run")
	}
	if n := len(dom.QueryAll(p.Head(), `link[href="/blocks/hero/hero.css"]`)); n != 1 {
		t.Errorf("stylesheet links = %d, want 1", n)
	}
}

func TestLoad_EagerFlagPassed(t *testing.T) {
	p, r := setup(t, newCountingFetcher(nil))

	var got bool
	l := New(p, mapResolver{
		"hero": func(_ context.Context, _ *html.Node, _ string, _ *page.Page, eager bool) error {
			got = eager
			return nil
		},
	})
	l.Load(context.Background(), blockNamed(t, r, "hero"), true)

	if !got {
		t.Error("decorator eager = false, want true")
	}
}

func TestLoad_FailuresStillLoaded(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, r := setup(t, newCountingFetcher(nil)) // every stylesheet is missing
	l := New(p, mapResolver{
		"cards": func(context.Context, *html.Node, string, *page.Page, bool) error {
			return errors.New("bad markup")
		},
		"broken": func(context.Context, *html.Node, string, *page.Page, bool) error {
			var m map[string]int
			m["boom"]++
			return nil
		},
	}, WithLogger(testLogger()))

	l.LoadAll(context.Background(), r.Blocks())

	for _, b := range r.Blocks() {
		if b.Status() != registry.StatusLoaded {
			t.Errorf("%s Status() = %q, want loaded", b.Name, b.Status())
		}
		if got := dom.Attr(b.Node, registry.AttrBlockStatus); got != "loaded" {
			t.Errorf("%s data-block-status = %q", b.Name, got)
		}
	}

	cards, _ := l.Outcome(blockNamed(t, r, "cards"))
	if cards.Error == nil || cards.Decorated {
		t.Errorf("cards outcome = %+v, want error", cards)
	}
	broken, _ := l.Outcome(blockNamed(t, r, "broken"))
	if broken.Error == nil || !strings.Contains(broken.Error.Error(), "correlation_id") {
		t.Errorf("broken outcome error = %v, want panic with correlation id", broken.Error)
	}
	hero, ok := l.Outcome(blockNamed(t, r, "hero"))
	if !ok || hero.Decorated || hero.Error != nil {
		t.Errorf("hero outcome = %+v, want undecorated without error", hero)
	}
}

func TestLoad_AlreadyLoadedIsNoop(t *testing.T) {
	f := newCountingFetcher(nil)
	p, r := setup(t, f)
	l := New(p, nil)
	hero := blockNamed(t, r, "hero")

	l.Load(context.Background(), hero, false)
	l.Load(context.Background(), hero, false)

	if n := f.count("https://example.com/blocks/hero/hero.css"); n != 1 {
		t.Errorf("stylesheet fetches = %d, want 1", n)
	}
}

func TestLoad_LibraryBlock(t *testing.T) {
	f := newCountingFetcher(map[string]string{
		"https://libs.example.com/libs/blocks/list.json": `["cards"]`,
	})
	p, r := setup(t, f)

	libs := LoadLibs(context.Background(), p, "https://libs.example.com/libs", "", testLogger())
	if !libs.Has("cards") || libs.Has("hero") {
		t.Fatalf("libs blocks = %v", libs.Blocks())
	}

	l := New(p, nil, WithLibs(libs))
	l.Load(context.Background(), blockNamed(t, r, "cards"), false)

	for _, href := range []string{
		"https://libs.example.com/libs/blocks/cards/cards.css",
		"https://libs.example.com/libs/styles/variables.css",
	} {
		if dom.Query(p.Head(), `link[href="`+href+`"]`) == nil {
			t.Errorf("missing stylesheet %s", href)
		}
	}
}

func TestLoadLibs_ListFailure(t *testing.T) {
	p, _ := setup(t, newCountingFetcher(nil))

	libs := LoadLibs(context.Background(), p, "https://libs.example.com/libs/", "", testLogger())
	if libs == nil {
		t.Fatal("LoadLibs() = nil, want empty library")
	}
	if libs.Base != "https://libs.example.com/libs" {
		t.Errorf("Base = %q", libs.Base)
	}
	if len(libs.Blocks()) != 0 {
		t.Errorf("Blocks() = %v, want empty", libs.Blocks())
	}
	if LoadLibs(context.Background(), p, "", "", testLogger()) != nil {
		t.Error("LoadLibs() with empty base should return nil")
	}
}

func TestLibsBase(t *testing.T) {
	const configured = "https://blog.example.com/libs"
	tests := []struct {
		name       string
		url        string
		configured string
		want       string
	}{
		{"production ignores query", "https://blog.example.com/a?milolibs=feature", configured, configured},
		{"preview default", "https://main--blog--org.hlx.page/a", configured, configured},
		{"preview branch", "https://main--blog--org.hlx.page/a?milolibs=feature", configured, "https://feature.milo.pink/libs"},
		{"preview local", "https://main--blog--org.hlx.page/a?milolibs=local", configured, "http://localhost:6456/libs"},
		{"host and port rejected", "https://main--blog--org.hlx.page/a?milolibs=127.0.0.1:8080/x%3F", configured, configured},
		{"metadata address rejected", "https://main--blog--org.hlx.page/a?milolibs=169.254.169.254/x%3F", configured, configured},
		{"uppercase rejected", "https://main--blog--org.hlx.page/a?milolibs=Feature", configured, configured},
		{"not configured ignores query", "https://main--blog--org.hlx.page/a?milolibs=feature", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _ := url.Parse(tt.url)
			p, err := page.Parse(strings.NewReader(testDoc), page.Config{URL: u})
			if err != nil {
				t.Fatalf("page.Parse() error = %v", err)
			}
			got := LibsBase(p, tt.configured, []string{"blog.example.com"})
			if got != tt.want {
				t.Errorf("LibsBase() = %q, want %q", got, tt.want)
			}
		})
	}
}
