package registry

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
)

// section builds div.section-wrapper > div > block and returns the block.
func section(t *testing.T, blockHTML string) (*html.Node, *html.Node) {
	t.Helper()
	wrapper := dom.Element("div", "class", SectionWrapperClass)
	inner := dom.Element("div")
	wrapper.AppendChild(inner)
	if err := dom.SetInnerHTML(inner, blockHTML); err != nil {
		t.Fatalf("SetInnerHTML() error = %v", err)
	}
	block := dom.FirstElementChild(inner)
	if block == nil {
		t.Fatal("no block element parsed")
	}
	return wrapper, block
}

func TestClassify(t *testing.T) {
	wrapper, n := section(t, `<div class="cards--dark--wide-"><div><div>x</div></div></div>`)
	r := New(nil)

	b, ok := r.Classify(n)
	if !ok {
		t.Fatal("Classify() ok = false, want true")
	}
	if b.Name != "cards" {
		t.Errorf("Name = %q, want cards", b.Name)
	}
	if diff := cmp.Diff([]string{"dark", "wide"}, b.Variants); diff != "" {
		t.Errorf("Variants mismatch (-want +got):\n%s", diff)
	}
	if b.Section != wrapper {
		t.Error("Section should be the enclosing section wrapper")
	}
	if b.Status() != StatusInitialized {
		t.Errorf("Status() = %q, want initialized", b.Status())
	}

	wantClasses := []string{"cards--dark--wide-", "cards", "dark", "wide", "block"}
	if diff := cmp.Diff(wantClasses, dom.Classes(n)); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
	if got := dom.Attr(n, AttrBlockName); got != "cards" {
		t.Errorf("%s = %q", AttrBlockName, got)
	}
	if got := dom.Attr(n, AttrBlockStatus); got != "initialized" {
		t.Errorf("%s = %q", AttrBlockStatus, got)
	}
	if !dom.HasClass(wrapper, "cards-dark-wide-container") {
		t.Errorf("section classes = %v", dom.Classes(wrapper))
	}
	if !dom.HasClass(n.Parent, "cards-wrapper") {
		t.Errorf("parent classes = %v", dom.Classes(n.Parent))
	}
}

func TestClassify_Idempotent(t *testing.T) {
	wrapper, n := section(t, `<div class="video"></div>`)
	r := New(nil)

	first, _ := r.Classify(n)
	before := dom.OuterHTML(wrapper)

	second, ok := r.Classify(n)
	if !ok || second != first {
		t.Fatal("second Classify() should return the same block")
	}
	if after := dom.OuterHTML(wrapper); after != before {
		t.Errorf("markup changed:\nbefore %s\nafter  %s", before, after)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	// a fresh registry over already classified markup yields the same result
	third, _ := New(nil).Classify(n)
	if third.Name != "video" || dom.OuterHTML(wrapper) != before {
		t.Error("reclassification by a new registry changed the markup")
	}
}

func TestClassify_NoClassSkipped(t *testing.T) {
	wrapper, n := section(t, `<div><p>plain</p></div>`)
	before := dom.OuterHTML(wrapper)

	if _, ok := New(nil).Classify(n); ok {
		t.Fatal("Classify() ok = true for element without class")
	}
	if dom.HasAttr(n, AttrBlockName) {
		t.Error("unclassified element got a block name")
	}
	if dom.OuterHTML(wrapper) != before {
		t.Error("unclassified element was modified")
	}
}

func TestClassify_NonElement(t *testing.T) {
	if _, ok := New(nil).Classify(dom.TextNode("x")); ok {
		t.Error("Classify(text) ok = true")
	}
	if _, ok := New(nil).Classify(nil); ok {
		t.Error("Classify(nil) ok = true")
	}
}

func TestClassify_KeepsExistingStatus(t *testing.T) {
	_, n := section(t, `<div class="hero" data-block-status="loaded"></div>`)

	b, _ := New(nil).Classify(n)
	if b.Status() != StatusLoaded {
		t.Errorf("Status() = %q, want loaded", b.Status())
	}
	if b.Begin() {
		t.Error("Begin() on a loaded block should be a no-op")
	}
}

func TestBlock_StatusMonotonic(t *testing.T) {
	_, n := section(t, `<div class="hero"></div>`)

	var mu sync.Mutex
	var seen []Status
	r := New(func(_ *Block, s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	b, _ := r.Classify(n)

	if !b.Begin() {
		t.Fatal("first Begin() = false")
	}
	if b.Begin() {
		t.Error("second Begin() = true")
	}
	b.Finish()
	b.Finish()
	if b.Begin() {
		t.Error("Begin() after Finish() = true")
	}

	want := []Status{StatusInitialized, StatusLoading, StatusLoaded}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	if got := dom.Attr(n, AttrBlockStatus); got != "loaded" {
		t.Errorf("%s = %q, want loaded", AttrBlockStatus, got)
	}
}

func TestBlock_BeginConcurrent(t *testing.T) {
	_, n := section(t, `<div class="hero"></div>`)
	b, _ := New(nil).Classify(n)

	var wins sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		wins.Add(1)
		go func() {
			defer wins.Done()
			if b.Begin() {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wins.Wait()

	if count != 1 {
		t.Errorf("Begin() succeeded %d times, want 1", count)
	}
}

func TestAdopt(t *testing.T) {
	header := dom.Element("header", "class", "site", AttrBlockName, "gnav")
	r := New(nil)

	b, ok := r.Adopt(header)
	if !ok || b.Name != "gnav" {
		t.Fatalf("Adopt() = %v, %v", b, ok)
	}
	if diff := cmp.Diff([]string{"site"}, dom.Classes(header)); diff != "" {
		t.Errorf("Adopt() touched classes (-want +got):\n%s", diff)
	}
	if _, ok := r.Adopt(dom.Element("footer")); ok {
		t.Error("Adopt() without data-block-name ok = true")
	}
	if got, ok := r.Lookup(header); !ok || got != b {
		t.Error("Lookup() did not return the adopted block")
	}
}

func TestBlocks_Order(t *testing.T) {
	inner := dom.Element("div")
	wrapper := dom.Element("div", "class", SectionWrapperClass)
	wrapper.AppendChild(inner)
	if err := dom.SetInnerHTML(inner, `<div class="a"></div><div class="b"></div><div class="c"></div>`); err != nil {
		t.Fatalf("SetInnerHTML() error = %v", err)
	}

	r := New(nil)
	for _, n := range dom.Children(inner) {
		r.Classify(n)
	}

	var names []string
	for _, b := range r.Blocks() {
		names = append(names, b.Name)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("Blocks() order mismatch (-want +got):\n%s", diff)
	}
}
