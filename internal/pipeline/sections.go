package pipeline

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
	"github.com/jpalmerr/pageblocks/internal/registry"
)

// baseName returns the block name carried by the first class token of n,
// without variants.
func baseName(n *html.Node) string {
	classes := dom.Classes(n)
	if len(classes) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(classes[0], "--")
	return strings.Trim(name, "-")
}

// splitSections moves every configured block into a section of its own.
func (pl *Pipeline) splitSections(main *html.Node) {
	for _, block := range dom.QueryAll(main, "> div > div") {
		if slices.Contains(pl.opts.SplitBlocks, baseName(block)) {
			unwrapBlock(block)
		}
	}
}

// unwrapBlock partitions the block's section into before, block and after
// sections placed in the same spot, then drops the partitions left empty.
func unwrapBlock(block *html.Node) {
	section := block.Parent
	blockSection := dom.Element("div")
	after := dom.Element("div")
	dom.InsertAfter(section, blockSection)
	dom.InsertAfter(blockSection, after)

	var children []*html.Node
	for c := section.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}

	var target *html.Node
	for _, c := range children {
		if c == block {
			target = blockSection
		}
		if target != nil {
			dom.Append(target, c)
			target = after
		}
	}

	for _, s := range []*html.Node{section, blockSection, after} {
		if dom.IsBlank(s) {
			dom.Detach(s)
		}
	}
}

// removeEmptySections drops sections without content. Whitespace does not
// count as content.
func removeEmptySections(main *html.Node) {
	for _, section := range dom.Children(main) {
		if dom.Is(section, atom.Div) && dom.IsBlank(section) {
			dom.Detach(section)
		}
	}
}

// wrapSections wraps every section without an id in a section wrapper, in
// place. Already wrapped sections are left alone.
func wrapSections(main *html.Node) {
	for _, section := range dom.Children(main) {
		if !dom.Is(section, atom.Div) || dom.HasAttr(section, "id") || dom.HasClass(section, registry.SectionWrapperClass) {
			continue
		}
		wrapper := dom.Element("div", "class", registry.SectionWrapperClass)
		dom.Replace(section, wrapper)
		wrapper.AppendChild(section)
	}
}
