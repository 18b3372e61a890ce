package rum

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/pageblocks/dom"
)

// Threshold is the visible fraction of an element that counts as seen.
const Threshold = 0.25

// Observer reports the first substantial intersection of each observed
// element with the viewport. Every element fires at most once.
type Observer struct {
	sampler *Sampler
	pageURL *url.URL

	mu       sync.Mutex
	observed map[*html.Node]struct{}
}

// NewObserver creates an [Observer] that samples through s. Domain relative
// targets are resolved against pageURL.
func NewObserver(s *Sampler, pageURL *url.URL) *Observer {
	return &Observer{
		sampler:  s,
		pageURL:  pageURL,
		observed: make(map[*html.Node]struct{}),
	}
}

// Observe starts tracking nodes. Nodes already observed or already fired
// are not tracked again until re-observed.
func (o *Observer) Observe(nodes ...*html.Node) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, n := range nodes {
		if n != nil {
			o.observed[n] = struct{}{}
		}
	}
}

// Observing reports whether n is tracked and has not fired yet.
func (o *Observer) Observing(n *html.Node) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.observed[n]
	return ok
}

// Intersect reports that ratio of n is visible. The first report at or above
// [Threshold] unobserves n and samples a viewmedia or viewblock event; it
// returns true only then.
func (o *Observer) Intersect(ctx context.Context, n *html.Node, ratio float64) bool {
	if ratio < Threshold {
		return false
	}

	o.mu.Lock()
	if _, ok := o.observed[n]; !ok {
		o.mu.Unlock()
		return false
	}
	delete(o.observed, n)
	o.mu.Unlock()

	checkpoint := CheckpointViewBlock
	if isMedia(n) {
		checkpoint = CheckpointViewMedia
	}
	o.sampler.Sample(ctx, checkpoint, Data{
		Target: o.Target(n),
		Source: Source(n),
	})
	return true
}

func isMedia(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Img, atom.Video, atom.Audio, atom.Iframe:
		return true
	}
	return false
}

// Target returns the link or media URL of n, absolutised when it is domain
// relative.
func (o *Observer) Target(n *html.Node) string {
	value := dom.Attr(n, "href")
	if value == "" {
		value = dom.Attr(n, "src")
	}
	if value == "" || !strings.HasPrefix(value, "/") || o.pageURL == nil {
		return value
	}
	ref, err := url.Parse(value)
	if err != nil {
		return value
	}
	return o.pageURL.ResolveReference(ref).String()
}

// Source identifies where n lives: the nearest ancestor-or-self with an id
// ("#id") or a block name (".name"). It returns "" once body, html or the
// top of the tree is reached.
func Source(n *html.Node) string {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode || n.DataAtom == atom.Body || n.DataAtom == atom.Html {
			return ""
		}
		if id := dom.Attr(n, "id"); id != "" {
			return "#" + id
		}
		if name := dom.Attr(n, "data-block-name"); name != "" {
			return "." + name
		}
	}
	return ""
}
