package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/macitch/Bridgea/internal/cache"
	"github.com/macitch/Bridgea/internal/link"
)

// QueryEmbedder turns query text into a vector. Satisfied by Embedder.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Query is one search invocation.
type Query struct {
	Text      string
	SessionID string
	UserID    string
	K         int // candidate pool size for the vector search
	Offset    int
	Limit     int
}

// ScoredLink is one ranked search hit.
type ScoredLink struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Date        string   `json:"date,omitempty"`
	Score       int      `json:"score"`
	Distance    float32  `json:"distance"`
}

// Result is the outcome of one search: the requested page of links plus the
// total number of distinct matches before pagination.
type Result struct {
	Links []ScoredLink `json:"links"`
	Total int          `json:"total"`
}

// filterKeys are the recognized structured-filter prefixes in query text.
var filterKeys = map[string]bool{
	"category":    true,
	"tag":         true,
	"title":       true,
	"description": true,
	"date":        true,
}

// Searcher ranks a user's saved links against a natural-language query:
// vector candidates from the store, keyword-overlap scoring, structured
// filtering, URL deduplication, and pagination.
type Searcher struct {
	embedder QueryEmbedder
	store    VectorStore
	cache    cache.ResultCache
	cacheTTL time.Duration
	defaultK int
}

// NewSearcher creates a Searcher. defaultK is the candidate pool size used
// when a query does not set its own K. Pass cache.Noop{} to disable result
// caching.
func NewSearcher(embedder QueryEmbedder, store VectorStore, resultCache cache.ResultCache, cacheTTL time.Duration, defaultK int) *Searcher {
	if resultCache == nil {
		resultCache = cache.Noop{}
	}
	if defaultK <= 0 {
		defaultK = 20
	}
	return &Searcher{embedder: embedder, store: store, cache: resultCache, cacheTTL: cacheTTL, defaultK: defaultK}
}

// Search runs the full retrieval pipeline. Any internal failure surfaces as
// one wrapped error; nothing is cached on the error path.
func (s *Searcher) Search(ctx context.Context, q Query) (Result, error) {
	if q.K <= 0 {
		q.K = s.defaultK
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	key := cache.Key(q.SessionID, q.UserID, q.Text, q.K, q.Offset, q.Limit)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			slog.Debug("search cache hit", "session", q.SessionID)
			return cached, nil
		}
	}

	filters, keywords := parseQuery(q.Text)

	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return Result{}, fmt.Errorf("search failed: %w", err)
	}

	candidates, err := s.store.Search(vec, q.K, q.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("search failed: %w", err)
	}

	scored := scoreAndFilter(candidates, filters, keywords)

	// Score descending, ties broken by ascending vector distance.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Distance < scored[j].Distance
	})

	deduped := dedupeByURL(scored)

	result := Result{Total: len(deduped), Links: paginate(deduped, q.Offset, q.Limit)}

	if raw, err := json.Marshal(result); err == nil {
		s.cache.Set(ctx, key, raw, s.cacheTTL)
	}

	return result, nil
}

// parseQuery splits query text into recognized key:value filters and residual
// keywords. Keywords are lowercased for case-insensitive matching.
func parseQuery(text string) (filters map[string]string, keywords []string) {
	filters = make(map[string]string)
	for _, token := range strings.Fields(text) {
		if k, v, ok := strings.Cut(token, ":"); ok {
			lk := strings.ToLower(k)
			if filterKeys[lk] && v != "" {
				filters[lk] = v
				continue
			}
		}
		keywords = append(keywords, strings.ToLower(token))
	}
	return filters, keywords
}

// scoreAndFilter decodes each candidate's payload, computes its
// keyword-overlap score, and applies the filter semantics: with structured
// filters present, a candidate must satisfy all of them; with none, it must
// have a positive keyword score unless the query carried no keywords at all.
func scoreAndFilter(candidates []ScoredRecord, filters map[string]string, keywords []string) []ScoredLink {
	out := make([]ScoredLink, 0, len(candidates))
	for _, c := range candidates {
		payload, err := link.DecodeVectorPayload(c.Payload)
		if err != nil {
			// A garbled payload degrades to an empty one; the candidate can
			// still match on keyword-free queries.
			slog.Debug("dropping candidate payload", "id", c.ID, "error", err)
			payload = link.VectorPayload{}
		}
		if payload.URL == "" {
			payload.URL = c.URL
		}

		score := keywordScore(payload, keywords)

		if len(filters) > 0 {
			if !matchesFilters(payload, filters) {
				continue
			}
		} else if len(keywords) > 0 && score == 0 {
			continue
		}

		out = append(out, ScoredLink{
			URL:         payload.URL,
			Title:       payload.Title,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
			Tags:        payload.Tags,
			Categories:  payload.Categories,
			Date:        payload.Date,
			Score:       score,
			Distance:    c.Distance,
		})
	}
	return out
}

// keywordScore counts how many keywords appear as substrings anywhere in the
// candidate's searchable text.
func keywordScore(p link.VectorPayload, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}
	text := strings.ToLower(p.SearchText())
	score := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return score
}

// matchesFilters reports whether the payload satisfies every given filter.
// Category and tag use case-insensitive set membership; title and description
// use case-insensitive substring; date matches a substring of the stored date
// string.
func matchesFilters(p link.VectorPayload, filters map[string]string) bool {
	for key, want := range filters {
		switch key {
		case "category":
			if !containsFold(p.Categories, want) {
				return false
			}
		case "tag":
			if !containsFold(p.Tags, want) {
				return false
			}
		case "title":
			if !strings.Contains(strings.ToLower(p.Title), strings.ToLower(want)) {
				return false
			}
		case "description":
			if !strings.Contains(strings.ToLower(p.Description), strings.ToLower(want)) {
				return false
			}
		case "date":
			if !strings.Contains(p.Date, want) {
				return false
			}
		}
	}
	return true
}

func containsFold(haystack []string, want string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, want) {
			return true
		}
	}
	return false
}

// dedupeByURL keeps the first (highest-ranked) occurrence of each URL.
func dedupeByURL(links []ScoredLink) []ScoredLink {
	seen := make(map[string]struct{}, len(links))
	out := make([]ScoredLink, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l.URL]; ok {
			continue
		}
		seen[l.URL] = struct{}{}
		out = append(out, l)
	}
	return out
}

func paginate(links []ScoredLink, offset, limit int) []ScoredLink {
	if offset >= len(links) {
		return []ScoredLink{}
	}
	end := offset + limit
	if end > len(links) {
		end = len(links)
	}
	return links[offset:end]
}
