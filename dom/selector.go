package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector is a compiled subset of CSS selectors.
//
// Supported syntax:
//   - type, #id, .class and attribute ([a], [a=v], [a*=v], [a^=v]) compounds
//   - the :first-child and :first-of-type pseudo-classes
//   - descendant (whitespace) and child (>) combinators
//   - a leading ">" anchors the first compound to the query root's children,
//     like ":scope >" in the browser
//   - comma separated alternatives
type Selector struct {
	alts [][]step
}

type step struct {
	sel   compound
	child bool // combinator to the previous step is '>'
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrSel
	pseudos []string
}

type attrSel struct {
	key string
	op  string // "", "=", "*=", "^="
	val string
}

// Compile parses a selector.
func Compile(s string) (*Selector, error) {
	sel := &Selector{}
	for _, part := range strings.Split(s, ",") {
		steps, err := compileSteps(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", s, err)
		}
		sel.alts = append(sel.alts, steps)
	}
	return sel, nil
}

// MustCompile is like [Compile] but panics on error. Intended for
// package-level selector variables.
func MustCompile(s string) *Selector {
	sel, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return sel
}

func compileSteps(s string) ([]step, error) {
	if s == "" {
		return nil, fmt.Errorf("empty selector")
	}

	var steps []step
	child := false
	i := 0
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t' || s[i] == '\n':
			i++
		case s[i] == '>':
			child = true
			i++
		default:
			end := i
			inBracket := false
			for end < len(s) {
				c := s[end]
				if c == '[' {
					inBracket = true
				} else if c == ']' {
					inBracket = false
				} else if !inBracket && (c == ' ' || c == '>' || c == '\t' || c == '\n') {
					break
				}
				end++
			}
			cp, err := parseCompound(s[i:end])
			if err != nil {
				return nil, err
			}
			steps = append(steps, step{sel: cp, child: child})
			child = false
			i = end
		}
	}
	if child {
		return nil, fmt.Errorf("dangling combinator")
	}
	return steps, nil
}

func parseCompound(s string) (compound, error) {
	var cp compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' && s[i] != ':' {
			i++
		}
		return s[start:i]
	}

	if i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' && s[i] != ':' {
		cp.tag = strings.ToLower(readIdent())
		if cp.tag == "*" {
			cp.tag = ""
		}
	}
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			name := readIdent()
			if name == "" {
				return cp, fmt.Errorf("empty class in %q", s)
			}
			cp.classes = append(cp.classes, name)
		case '#':
			i++
			cp.id = readIdent()
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return cp, fmt.Errorf("unterminated attribute in %q", s)
			}
			cp.attrs = append(cp.attrs, parseAttr(s[i+1:i+end]))
			i += end + 1
		case ':':
			i++
			name := readIdent()
			if name != "first-child" && name != "first-of-type" {
				return cp, fmt.Errorf("unsupported pseudo-class :%s in %q", name, s)
			}
			cp.pseudos = append(cp.pseudos, name)
		default:
			return cp, fmt.Errorf("unexpected %q in %q", s[i], s)
		}
	}
	return cp, nil
}

func parseAttr(s string) attrSel {
	for _, op := range []string{"*=", "^=", "="} {
		if idx := strings.Index(s, op); idx > 0 {
			return attrSel{
				key: strings.TrimSpace(s[:idx]),
				op:  op,
				val: strings.Trim(strings.TrimSpace(s[idx+len(op):]), `"'`),
			}
		}
	}
	return attrSel{key: strings.TrimSpace(s)}
}

func (cp compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if cp.tag != "" && n.Data != cp.tag {
		return false
	}
	if cp.id != "" && Attr(n, "id") != cp.id {
		return false
	}
	for _, c := range cp.classes {
		if !HasClass(n, c) {
			return false
		}
	}
	for _, a := range cp.attrs {
		if !HasAttr(n, a.key) {
			return false
		}
		v := Attr(n, a.key)
		switch a.op {
		case "=":
			if v != a.val {
				return false
			}
		case "*=":
			if !strings.Contains(v, a.val) {
				return false
			}
		case "^=":
			if !strings.HasPrefix(v, a.val) {
				return false
			}
		}
	}
	for _, ps := range cp.pseudos {
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type != html.ElementNode {
				continue
			}
			if ps == "first-child" || prev.Data == n.Data {
				return false
			}
		}
	}
	return true
}

// Match reports whether n matches the selector, with root bounding the
// ancestor walk (root itself never matches a compound).
func (s *Selector) Match(root, n *html.Node) bool {
	for _, steps := range s.alts {
		if matchAt(steps, len(steps)-1, root, n) {
			return true
		}
	}
	return false
}

func matchAt(steps []step, i int, root, n *html.Node) bool {
	if n == nil || n == root || !steps[i].sel.matches(n) {
		return false
	}
	if i == 0 {
		if steps[0].child {
			return n.Parent == root
		}
		return true
	}
	if steps[i].child {
		return matchAt(steps, i-1, root, n.Parent)
	}
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if matchAt(steps, i-1, root, p) {
			return true
		}
	}
	return false
}

// QueryAll returns the descendants of root matching selector, in document
// order. It panics if selector does not compile.
func QueryAll(root *html.Node, selector string) []*html.Node {
	sel := MustCompile(selector)
	return FindAll(root, func(n *html.Node) bool { return sel.Match(root, n) })
}

// Query returns the first descendant of root matching selector, or nil.
func Query(root *html.Node, selector string) *html.Node {
	sel := MustCompile(selector)
	return Find(root, func(n *html.Node) bool { return sel.Match(root, n) })
}
