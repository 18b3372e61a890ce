// Package dom provides small helpers over golang.org/x/net/html trees.
//
// The helpers mirror the handful of DOM operations block decorators need:
// class list manipulation, attribute access, text content, element creation,
// fragment parsing and simple CSS selector queries (see [Query]).
//
// None of the helpers are safe for concurrent mutation of the same subtree.
// Callers that share a document between goroutines must partition ownership
// (each block decorator owns its block's subtree) or hold a lock.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of the attribute key, or "" if absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets (or replaces) the attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// Classes returns the class tokens of n in document order.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n has the class token c.
func HasClass(n *html.Node, c string) bool {
	for _, cls := range Classes(n) {
		if cls == c {
			return true
		}
	}
	return false
}

// AddClass appends class tokens to n, skipping empty and duplicate tokens.
func AddClass(n *html.Node, classes ...string) {
	current := Classes(n)
	changed := false
	for _, c := range classes {
		if c == "" || containsString(current, c) {
			continue
		}
		current = append(current, c)
		changed = true
	}
	if changed {
		SetAttr(n, "class", strings.Join(current, " "))
	}
}

// RemoveClass removes class tokens from n.
func RemoveClass(n *html.Node, classes ...string) {
	current := Classes(n)
	out := current[:0]
	for _, c := range current {
		if !containsString(classes, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(out, " "))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Element creates a detached element. attrs are key/value pairs; a trailing
// key without a value is ignored.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// TextNode creates a detached text node.
func TextNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Is reports whether n is an element with the given tag.
func Is(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// Text returns the concatenated text content of n, like DOM textContent.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// SetText replaces all children of n with a single text node.
func SetText(n *html.Node, s string) {
	Empty(n)
	if s != "" {
		n.AppendChild(TextNode(s))
	}
}

// Empty removes all children of n.
func Empty(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// FirstElementChild returns the first element child of n, or nil.
func FirstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// LastElementChild returns the last element child of n, or nil.
func LastElementChild(n *html.Node) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// NextElementSibling returns the next element sibling of n, or nil.
func NextElementSibling(n *html.Node) *html.Node {
	for c := n.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// PrevElementSibling returns the previous element sibling of n, or nil.
func PrevElementSibling(n *html.Node) *html.Node {
	for c := n.PrevSibling; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// IsBlank reports whether n has no element children and only whitespace text.
func IsBlank(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}

// Closest returns the nearest ancestor-or-self of n matching match.
func Closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}

// ClosestTag returns the nearest ancestor-or-self element with tag a.
func ClosestTag(n *html.Node, a atom.Atom) *html.Node {
	return Closest(n, func(n *html.Node) bool { return n.DataAtom == a })
}

// Find returns the first descendant of root (excluding root) matching match,
// in document order.
func Find(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := Find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns all descendants of root (excluding root) matching match,
// in document order.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// FindTag returns the first descendant element with tag a.
func FindTag(root *html.Node, a atom.Atom) *html.Node {
	return Find(root, func(n *html.Node) bool { return n.DataAtom == a })
}

// Detach removes n from its parent, if it has one, and returns n.
func Detach(n *html.Node) *html.Node {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return n
}

// Append detaches each child and appends it to parent.
func Append(parent *html.Node, children ...*html.Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		parent.AppendChild(Detach(c))
	}
}

// Prepend detaches child and inserts it as the first child of parent.
func Prepend(parent, child *html.Node) {
	Detach(child)
	if parent.FirstChild == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, parent.FirstChild)
}

// InsertAfter detaches n and inserts it right after ref.
func InsertAfter(ref, n *html.Node) {
	Detach(n)
	if ref.NextSibling == nil {
		ref.Parent.AppendChild(n)
		return
	}
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

// Replace puts n where old was and detaches old.
func Replace(old, n *html.Node) {
	Detach(n)
	old.Parent.InsertBefore(n, old)
	old.Parent.RemoveChild(old)
}

// Clone returns a deep, detached copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(Clone(ch))
	}
	return c
}

// Fragment parses s as body content and returns the detached top-level nodes.
func Fragment(s string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// SetInnerHTML replaces the children of n with the parsed fragment s.
func SetInnerHTML(n *html.Node, s string) error {
	nodes, err := Fragment(s)
	if err != nil {
		return err
	}
	Empty(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// ClassName lowercases s and replaces every character outside [0-9a-z]
// with a dash, producing a string usable as a class token.
func ClassName(s string) string {
	s = strings.ToLower(s)
	b := []byte(s)
	for i, c := range b {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z') {
			b[i] = '-'
		}
	}
	return string(b)
}
