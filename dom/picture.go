package dom

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// Breakpoint pairs a media query with the image width requested for it.
// The last breakpoint in a list is the fallback and its Media is ignored.
type Breakpoint struct {
	Media string
	Width int
}

// DefaultBreakpoints are used by [OptimizedPicture] when none are given.
var DefaultBreakpoints = []Breakpoint{
	{Media: "(min-width: 400px)", Width: 2000},
	{Width: 750},
}

// OptimizedPicture builds a <picture> with webp sources for every breakpoint,
// original-format fallbacks and an <img> for the last breakpoint.
//
// src may be absolute or path-only; only its path is used for the generated
// srcsets so the media is served from the page's own origin.
func OptimizedPicture(src, alt string, eager bool, breakpoints []Breakpoint) (*html.Node, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid image src %q: %w", src, err)
	}
	if len(breakpoints) == 0 {
		breakpoints = DefaultBreakpoints
	}
	pathname := u.Path
	ext := strings.TrimPrefix(path.Ext(pathname), ".")

	picture := Element("picture")

	for _, br := range breakpoints {
		source := Element("source")
		if br.Media != "" {
			SetAttr(source, "media", br.Media)
		}
		SetAttr(source, "type", "image/webp")
		SetAttr(source, "srcset", fmt.Sprintf("%s?width=%d&format=webply&optimize=medium", pathname, br.Width))
		picture.AppendChild(source)
	}

	for i, br := range breakpoints {
		if i < len(breakpoints)-1 {
			source := Element("source")
			if br.Media != "" {
				SetAttr(source, "media", br.Media)
			}
			SetAttr(source, "srcset", fmt.Sprintf("%s?width=%d&format=%s&optimize=medium", pathname, br.Width, ext))
			picture.AppendChild(source)
			continue
		}
		loading := "lazy"
		if eager {
			loading = "eager"
		}
		img := Element("img",
			"src", fmt.Sprintf("%s?width=%d&format=%s&optimize=medium", pathname, br.Width, ext),
			"loading", loading,
			"alt", alt,
		)
		picture.AppendChild(img)
	}

	return picture, nil
}
