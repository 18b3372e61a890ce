// Package taxonomy resolves article tags against the site's topic taxonomy.
//
// The taxonomy is published by the authoring system as a JSON sheet:
//
//	{"data": [
//	  {"Name": "Economy", "Parent": "News", "Link": "/en/topics/economy", "UFT": "yes", "Skip Meta": ""},
//	  {"Name": "News", "Parent": "", "Link": "", "UFT": "yes", "Skip Meta": ""}
//	]}
//
// A nil *Taxonomy is valid and behaves like a taxonomy that has not been
// loaded yet: [Taxonomy.Compute] only derives the category and
// [TopicLink] emits links that can be fixed later.
package taxonomy

import (
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"

	"github.com/jpalmerr/pageblocks/dom"
)

// DefaultCategory is used when a page has no tags.
const DefaultCategory = "news"

// TopicLinkAttr marks anchors created before the taxonomy was available.
const TopicLinkAttr = "data-topic-link"

// titleSubs holds display-name overrides for specific topics.
var titleSubs = map[string]string{
	"Transformation digitale": "Transformation numérique",
}

// Topic is a single taxonomy entry.
type Topic struct {
	Name     string
	Parent   string
	Link     string
	IsUFT    bool // user facing topic
	SkipMeta bool
}

// Taxonomy is an immutable topic lookup.
type Taxonomy struct {
	topics map[string]Topic
}

type sheetRow struct {
	Name     string `json:"Name"`
	Parent   string `json:"Parent"`
	Link     string `json:"Link"`
	UFT      string `json:"UFT"`
	SkipMeta string `json:"Skip Meta"`
}

// Parse decodes a taxonomy sheet. Topics without a link get
// {rootPath}/topics/{class-name}.
func Parse(data []byte, rootPath string) (*Taxonomy, error) {
	var sheet struct {
		Data []sheetRow `json:"data"`
	}
	if err := json.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}

	t := &Taxonomy{topics: make(map[string]Topic, len(sheet.Data))}
	for _, row := range sheet.Data {
		if row.Name == "" {
			continue
		}
		link := row.Link
		if link == "" {
			link = fmt.Sprintf("%s/topics/%s", rootPath, dom.ClassName(row.Name))
		}
		t.topics[row.Name] = Topic{
			Name:     row.Name,
			Parent:   row.Parent,
			Link:     link,
			IsUFT:    truthy(row.UFT),
			SkipMeta: truthy(row.SkipMeta),
		}
	}
	return t, nil
}

func truthy(s string) bool {
	switch s {
	case "yes", "Yes", "YES", "true", "TRUE", "x", "1":
		return true
	}
	return false
}

// Get looks up a topic by name.
func (t *Taxonomy) Get(name string) (Topic, bool) {
	if t == nil {
		return Topic{}, false
	}
	topic, ok := t.topics[name]
	return topic, ok
}

// Parents returns the ancestors of name, nearest first.
func (t *Taxonomy) Parents(name string) []string {
	if t == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{name: true}
	cur, ok := t.topics[name]
	for ok && cur.Parent != "" && !seen[cur.Parent] {
		seen[cur.Parent] = true
		out = append(out, cur.Parent)
		cur, ok = t.topics[cur.Parent]
	}
	return out
}

// Result is the computed taxonomy of a page.
type Result struct {
	// Category is the main topic: the first tag, or DefaultCategory.
	Category string

	// Topics are the page tags as authored.
	Topics []string

	// VisibleTopics are user facing topics, including parents.
	VisibleTopics []string

	// AllTopics are all known topics, including parents.
	AllTopics []string

	// Unknown lists tags missing from the taxonomy.
	Unknown []string
}

// Compute derives the [Result] for the given tags.
func (t *Taxonomy) Compute(topics []string) Result {
	res := Result{Category: DefaultCategory, Topics: topics}
	if len(topics) > 0 {
		res.Category = topics[0]
	}
	if t == nil {
		return res
	}

	seen := make(map[string]bool)
	for _, tag := range topics {
		tax, ok := t.topics[tag]
		if !ok {
			res.Unknown = append(res.Unknown, tag)
			continue
		}
		if seen[tag] || tax.SkipMeta {
			continue
		}
		seen[tag] = true
		res.AllTopics = append(res.AllTopics, tag)
		if tax.IsUFT {
			res.VisibleTopics = append(res.VisibleTopics, tag)
		}
		for _, parent := range t.Parents(tag) {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			res.AllTopics = append(res.AllTopics, parent)
			if ptax, ok := t.topics[parent]; ok && ptax.IsUFT {
				res.VisibleTopics = append(res.VisibleTopics, parent)
			}
		}
	}
	return res
}

// TopicLink builds an anchor for topic.
//
// With a nil taxonomy the anchor has an empty href and carries
// [TopicLinkAttr] so [Fix] can resolve it later. Unknown topics link to "#".
func TopicLink(t *Taxonomy, topic string) *html.Node {
	a := dom.Element("a")
	if t == nil {
		dom.SetAttr(a, "href", "")
		dom.SetAttr(a, TopicLinkAttr, topic)
	} else if tax, ok := t.topics[topic]; ok {
		dom.SetAttr(a, "href", tax.Link)
	} else {
		dom.SetAttr(a, "href", "#")
	}

	label := topic
	if sub, ok := titleSubs[topic]; ok {
		label = sub
	}
	dom.SetText(a, label)
	return a
}

// Fix resolves every anchor under root carrying [TopicLinkAttr] and returns
// the number of links updated. A nil taxonomy is a no-op.
func Fix(t *Taxonomy, root *html.Node) int {
	if t == nil {
		return 0
	}
	links := dom.FindAll(root, func(n *html.Node) bool {
		return n.Data == "a" && dom.HasAttr(n, TopicLinkAttr)
	})
	for _, a := range links {
		topic := dom.Attr(a, TopicLinkAttr)
		href := "#"
		if tax, ok := t.topics[topic]; ok {
			href = tax.Link
		}
		dom.SetAttr(a, "href", href)
		dom.RemoveAttr(a, TopicLinkAttr)
	}
	return len(links)
}
