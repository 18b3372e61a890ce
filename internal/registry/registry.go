package registry

import (
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
)

// Attribute names carried by classified block elements.
const (
	AttrBlockName   = "data-block-name"
	AttrBlockStatus = "data-block-status"
)

// SectionWrapperClass marks generated section wrappers.
const SectionWrapperClass = "section-wrapper"

// variantDelimiter separates the base block name from its variants in the
// first class token, e.g. "cards--dark--wide".
const variantDelimiter = "--"

// Status is the load state of a block. It only moves forward:
// initialized, loading, loaded.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusLoading     Status = "loading"
	StatusLoaded      Status = "loaded"
)

func (s Status) rank() int {
	switch s {
	case StatusInitialized:
		return 1
	case StatusLoading:
		return 2
	case StatusLoaded:
		return 3
	}
	return 0
}

// Block is a classified, independently loadable content unit.
type Block struct {
	// Node is the block element.
	Node *html.Node

	// Name is the block name derived from the first class token.
	Name string

	// Variants are the modifiers that followed the name in the first token.
	Variants []string

	// Section is the enclosing section wrapper, or nil.
	Section *html.Node

	mu       sync.Mutex
	status   Status
	onChange func(*Block, Status)
}

// Status returns the current load state.
func (b *Block) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Begin moves the block from initialized to loading. It returns false, and
// changes nothing, if the block is already loading or loaded; this is the
// at-most-one in-flight load guarantee.
func (b *Block) Begin() bool {
	return b.advance(StatusLoading)
}

// Finish moves the block to loaded.
func (b *Block) Finish() {
	b.advance(StatusLoaded)
}

// advance sets the status if next is strictly ahead of the current one.
func (b *Block) advance(next Status) bool {
	b.mu.Lock()
	if next.rank() <= b.status.rank() || (next == StatusLoading && b.status != StatusInitialized) {
		b.mu.Unlock()
		return false
	}
	b.status = next
	dom.SetAttr(b.Node, AttrBlockStatus, string(next))
	hook := b.onChange
	b.mu.Unlock()

	if hook != nil {
		hook(b, next)
	}
	return true
}

// Registry is the single source of truth for block identity and status
// within one page.
type Registry struct {
	mu       sync.Mutex
	blocks   map[*html.Node]*Block
	order    []*Block
	onChange func(*Block, Status)
}

// New creates a [Registry]. onChange, if non-nil, is called after every
// status transition, including the initial one.
func New(onChange func(*Block, Status)) *Registry {
	return &Registry{
		blocks:   make(map[*html.Node]*Block),
		onChange: onChange,
	}
}

// Classify turns an element into a block.
//
// The first class token is split on "--" into the block name and its
// variants (dashes trimmed). The element gets the name, the variants and
// "block" as classes, data-block-name, and data-block-status=initialized if
// it has no status yet. The enclosing section wrapper gets
// "{first-token}-container" and the parent "{name}-wrapper".
//
// Elements without a class token are not blocks and are left untouched.
// Classifying the same element again returns the same *Block and leaves the
// markup unchanged.
func (r *Registry) Classify(n *html.Node) (*Block, bool) {
	if n == nil || n.Type != html.ElementNode {
		return nil, false
	}

	r.mu.Lock()
	if b, ok := r.blocks[n]; ok {
		r.mu.Unlock()
		return b, true
	}
	r.mu.Unlock()

	classes := dom.Classes(n)
	if len(classes) == 0 {
		return nil, false
	}
	first := classes[0]

	parts := strings.Split(first, variantDelimiter)
	name := trimDashes(parts[0])
	if name == "" {
		return nil, false
	}
	var variants []string
	for _, v := range parts[1:] {
		if v = trimDashes(v); v != "" {
			variants = append(variants, v)
		}
	}

	section := dom.Closest(n.Parent, func(el *html.Node) bool {
		return dom.HasClass(el, SectionWrapperClass)
	})
	if section != nil {
		dom.AddClass(section, strings.ReplaceAll(first+"-container", "--", "-"))
	}

	dom.AddClass(n, name)
	dom.AddClass(n, variants...)
	dom.AddClass(n, "block")
	dom.SetAttr(n, AttrBlockName, name)

	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		dom.AddClass(n.Parent, name+"-wrapper")
	}

	return r.register(n, name, variants, section), true
}

// Adopt registers an element that already carries data-block-name (page
// header and footer) without touching its classes.
func (r *Registry) Adopt(n *html.Node) (*Block, bool) {
	name := dom.Attr(n, AttrBlockName)
	if n == nil || name == "" {
		return nil, false
	}

	r.mu.Lock()
	if b, ok := r.blocks[n]; ok {
		r.mu.Unlock()
		return b, true
	}
	r.mu.Unlock()

	return r.register(n, name, nil, nil), true
}

func (r *Registry) register(n *html.Node, name string, variants []string, section *html.Node) *Block {
	r.mu.Lock()
	if b, ok := r.blocks[n]; ok {
		r.mu.Unlock()
		return b
	}

	b := &Block{
		Node:     n,
		Name:     name,
		Variants: variants,
		Section:  section,
		onChange: r.onChange,
	}

	// a status already present in the markup is kept; it never moves back
	if existing := Status(dom.Attr(n, AttrBlockStatus)); existing.rank() > 0 {
		b.status = existing
	}
	r.blocks[n] = b
	r.order = append(r.order, b)
	r.mu.Unlock()

	if b.status == "" {
		b.advance(StatusInitialized)
	}
	return b
}

// Lookup returns the block registered for n.
func (r *Registry) Lookup(n *html.Node) (*Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[n]
	return b, ok
}

// Blocks returns all registered blocks in registration order.
func (r *Registry) Blocks() []*Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Block(nil), r.order...)
}

// Len returns the number of registered blocks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func trimDashes(s string) string {
	return strings.Trim(strings.TrimSpace(s), "-")
}
