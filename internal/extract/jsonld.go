package extract

import (
	"encoding/json"
	"log/slog"
)

// tagsFromJSONLD pulls candidate tags out of one ld+json block. A block that
// fails to parse is logged and skipped; structured data on real pages is
// unreliable enough that one bad block must never abort the extraction.
func tagsFromJSONLD(raw, url string) []string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		slog.Debug("skipping malformed ld+json block", "url", url, "error", err)
		return nil
	}

	var tags []string
	if kw, ok := doc["keywords"]; ok {
		tags = append(tags, keywordsValue(kw)...)
	}
	if about, ok := doc["about"]; ok {
		tags = append(tags, aboutValue(about)...)
	}
	return tags
}

// keywordsValue handles the two shapes found in the wild: a comma-separated
// string or an array of strings.
func keywordsValue(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return splitCommaList(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, k := range list {
			if k != "" {
				out = append(out, k)
			}
		}
		return out
	}
	return nil
}

// aboutEntity is the named-entity form of an `about` member.
type aboutEntity struct {
	Name string `json:"name"`
}

// aboutValue handles a plain string, a single named entity, or a list mixing
// both.
func aboutValue(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var entity aboutEntity
	if err := json.Unmarshal(raw, &entity); err == nil && entity.Name != "" {
		return []string{entity.Name}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	var out []string
	for _, item := range list {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			if name != "" {
				out = append(out, name)
			}
			continue
		}
		var e aboutEntity
		if err := json.Unmarshal(item, &e); err == nil && e.Name != "" {
			out = append(out, e.Name)
		}
	}
	return out
}
