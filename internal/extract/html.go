package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/macitch/Bridgea/internal/link"
)

// docMeta collects the raw signals found during a single DOM walk. The
// priority rules in fromDocument turn it into a link.Metadata.
type docMeta struct {
	ogTitle      string
	twitterTitle string
	htmlTitle    string
	metaDesc     string
	ogDesc       string
	ogImage      string
	twitterImage string
	keywordsMeta string
	jsonLD       []string // raw ld+json script bodies
}

// fromDocument applies the extraction rules to a parsed DOM tree and returns
// the raw (pre-enrichment) metadata for the page.
// Priority: og:title > twitter:title > <title>; meta description >
// og:description; og:image > twitter:image. Tags merge the keywords meta tag
// with JSON-LD keywords/about entries, set-deduplicated in insertion order.
func fromDocument(root *html.Node, url string) link.Metadata {
	d := walk(root)
	meta := link.NewMetadata(url)

	switch {
	case d.ogTitle != "":
		meta.Title = d.ogTitle
	case d.twitterTitle != "":
		meta.Title = d.twitterTitle
	default:
		meta.Title = d.htmlTitle
	}

	if d.metaDesc != "" {
		meta.Description = d.metaDesc
	} else {
		meta.Description = d.ogDesc
	}

	if d.ogImage != "" {
		meta.ImageURL = d.ogImage
	} else {
		meta.ImageURL = d.twitterImage
	}

	tags := splitCommaList(d.keywordsMeta)
	for _, raw := range d.jsonLD {
		tags = append(tags, tagsFromJSONLD(raw, url)...)
	}
	meta.Tags = link.Dedupe(tags)

	return meta
}

func walk(root *html.Node) docMeta {
	var d docMeta

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var name, property, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "name":
						name = strings.ToLower(attr.Val)
					case "property":
						property = strings.ToLower(attr.Val)
					case "content":
						content = strings.TrimSpace(attr.Val)
					}
				}
				switch {
				case property == "og:title" && d.ogTitle == "":
					d.ogTitle = content
				case name == "twitter:title" && d.twitterTitle == "":
					d.twitterTitle = content
				case name == "description" && d.metaDesc == "":
					d.metaDesc = content
				case property == "og:description" && d.ogDesc == "":
					d.ogDesc = content
				case property == "og:image" && d.ogImage == "":
					d.ogImage = content
				case name == "twitter:image" && d.twitterImage == "":
					d.twitterImage = content
				case name == "keywords" && d.keywordsMeta == "":
					d.keywordsMeta = content
				}
			case "title":
				if d.htmlTitle == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					d.htmlTitle = strings.TrimSpace(n.FirstChild.Data)
				}
			case "script":
				if isJSONLD(n) && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					d.jsonLD = append(d.jsonLD, n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)

	return d
}

func isJSONLD(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "type" && strings.EqualFold(strings.TrimSpace(attr.Val), "application/ld+json") {
			return true
		}
	}
	return false
}

// splitCommaList splits a comma-separated value into trimmed, non-empty parts.
func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
