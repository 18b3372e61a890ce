package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/jpalmerr/pageblocks/page"
)

// Library bases used when the milolibs query parameter selects a branch.
const (
	localLibsBase  = "http://localhost:6456/libs"
	branchLibsBase = "https://%s.milo.pink/libs"
)

// LibsQueryParam selects the library branch on non-production hosts.
const LibsQueryParam = "milolibs"

// branchPattern is a single DNS label; anything else could steer library
// fetches to an arbitrary host.
var branchPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Libs is the shared block library: blocks listed here load their styles from
// Base instead of the site's own code base.
type Libs struct {
	// Base is the library root, e.g. "https://example.com/libs".
	Base string

	blocks []string
}

// NewLibs creates a [Libs] with a known block list.
func NewLibs(base string, blocks []string) *Libs {
	return &Libs{Base: strings.TrimSuffix(base, "/"), blocks: blocks}
}

// Has reports whether the library provides block name. A nil Libs has no
// blocks.
func (l *Libs) Has(name string) bool {
	if l == nil {
		return false
	}
	return slices.Contains(l.blocks, name)
}

// Blocks returns the library block names.
func (l *Libs) Blocks() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.blocks...)
}

// LibsBase returns the library base for a page, or "" when no library is
// configured. On production hosts the configured base is used as is.
// Elsewhere the milolibs query parameter can point the page at a branch
// ("local" means a library served on localhost); values that are not a
// single lowercase DNS label are ignored.
func LibsBase(p *page.Page, configured string, productionDomains []string) string {
	if configured == "" {
		return ""
	}
	u := p.URL()
	if slices.Contains(productionDomains, u.Hostname()) {
		return configured
	}
	switch branch := p.Query().Get(LibsQueryParam); {
	case branch == "":
		return configured
	case branch == "local":
		return localLibsBase
	case branchPattern.MatchString(branch):
		return fmt.Sprintf(branchLibsBase, branch)
	default:
		return configured
	}
}

// LoadLibs fetches the library block list from listPath (relative to base,
// default "/blocks/list.json"). A missing or malformed list is logged and
// yields a library without blocks.
func LoadLibs(ctx context.Context, p *page.Page, base, listPath string, logger *slog.Logger) *Libs {
	if base == "" {
		return nil
	}
	if listPath == "" {
		listPath = "/blocks/list.json"
	}
	libs := NewLibs(base, nil)

	data, err := p.Fetch(ctx, libs.Base+listPath)
	if err != nil {
		logger.Info("couldn't load libs list", "base", libs.Base, "error", err)
		return libs
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		logger.Info("couldn't parse libs list", "base", libs.Base, "error", err)
		return libs
	}
	libs.blocks = list
	return libs
}
