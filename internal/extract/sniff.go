package extract

import (
	"io"

	"golang.org/x/net/html"
)

// SniffTitle parses just enough of an HTML body to find a page title,
// preferring the social-preview title over the document title. Used by the
// fetch strategy selector to judge whether server-rendered markup carries
// usable metadata.
func SniffTitle(r io.Reader) string {
	root, err := html.Parse(r)
	if err != nil {
		return ""
	}
	d := walk(root)
	if d.ogTitle != "" {
		return d.ogTitle
	}
	if d.twitterTitle != "" {
		return d.twitterTitle
	}
	return d.htmlTitle
}
