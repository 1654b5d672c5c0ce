package link

import (
	"strings"
	"time"
)

// Metadata is the extracted and enriched record for one URL. It is produced
// fresh on every extraction request and never stored directly; callers persist
// a SavedLink derived from it. All fields default to empty values so consumers
// never branch on absence.
type Metadata struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories"`
}

// NewMetadata returns a Metadata with non-nil tag and category slices.
func NewMetadata(url string) Metadata {
	return Metadata{
		URL:        url,
		Tags:       []string{},
		Categories: []string{},
	}
}

// SavedLink is a persisted bookmark owned by a user.
type SavedLink struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Tags        []string  `json:"tags"`
	Categories  []string  `json:"categories"`
	Favorite    bool      `json:"favorite"`
	SearchTerms string    `json:"searchTerms"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BuildSearchTerms derives the lowercased prefix-search string from the
// link's textual fields. Stored alongside the link so prefix queries don't
// have to reassemble it at read time.
func (l *SavedLink) BuildSearchTerms() string {
	parts := make([]string, 0, 4+len(l.Tags)+len(l.Categories))
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	parts = append(parts, l.Tags...)
	parts = append(parts, l.Categories...)
	if l.Description != "" {
		parts = append(parts, l.Description)
	}
	if l.URL != "" {
		parts = append(parts, l.URL)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Dedupe returns the entries of in with duplicates removed (case-sensitive),
// preserving first-occurrence order. Always returns a non-nil slice.
func Dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
