package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/macitch/Bridgea/internal/config"
	"github.com/macitch/Bridgea/internal/link"
)

const generationTimeout = 15 * time.Second

// Chatter is the generative text service: prompt in, raw completion out.
// Satisfied by the ollama client.
type Chatter interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Enricher assigns categories and a bounded, ranked tag set to extracted
// metadata. Both operations are best-effort: a service failure degrades to an
// empty result and never blocks link creation.
type Enricher struct {
	chatter Chatter
	model   string
	weights config.EnrichConfig
	generic map[string]struct{}
}

// New creates an Enricher using the given generative client, model name, and
// ranking weights.
func New(chatter Chatter, model string, weights config.EnrichConfig) *Enricher {
	if weights.MaxTags <= 0 {
		weights.MaxTags = 5
	}
	generic := make(map[string]struct{}, len(weights.GenericTags))
	for _, g := range weights.GenericTags {
		generic[strings.ToLower(g)] = struct{}{}
	}
	return &Enricher{chatter: chatter, model: model, weights: weights, generic: generic}
}

// Categories asks the generative service for broad classification labels.
// Returns an empty slice on any service or parse failure.
func (e *Enricher) Categories(ctx context.Context, meta link.Metadata) []string {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Assign broad category labels to a saved link.\n"+
			"Title: %s\nDescription: %s\nTags: %s\n"+
			"Respond with ONLY a JSON array of category strings, nothing else.",
		meta.Title, meta.Description, strings.Join(meta.Tags, ", "))

	raw, err := e.chatter.Generate(ctx, e.model, prompt)
	if err != nil {
		slog.Warn("category generation failed", "url", meta.URL, "error", err)
		return []string{}
	}

	var categories []string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &categories); err != nil {
		slog.Warn("unparseable category response", "url", meta.URL, "error", err)
		return []string{}
	}

	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return link.Dedupe(out)
}

// Tags returns the final tag set for the metadata: the top-ranked existing
// tags when the page yielded any, otherwise a freshly generated set. Never
// more than MaxTags entries, never a duplicate, never an error.
func (e *Enricher) Tags(ctx context.Context, meta link.Metadata) []string {
	if len(meta.Tags) > 0 {
		return e.rank(meta)
	}
	return e.generate(ctx, meta)
}

// tagScore pairs a tag with its relevance score; order is the original
// position, used as the stable tiebreaker.
type tagScore struct {
	tag   string
	score int
}

// rank scores each existing tag against the extracted title and description
// and keeps the top MaxTags. Multi-word tags get a per-word bonus so specific
// phrases outrank single generic words.
func (e *Enricher) rank(meta link.Metadata) []string {
	title := strings.ToLower(meta.Title)
	desc := strings.ToLower(meta.Description)

	tags := link.Dedupe(meta.Tags)
	scored := make([]tagScore, 0, len(tags))
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		words := len(strings.Fields(tag))

		score := 0
		if title != "" && strings.Contains(title, lower) {
			score += e.weights.TitleWeight
		}
		if desc != "" && strings.Contains(desc, lower) {
			score += e.weights.DescWeight
		}
		score += words * e.weights.WordBonus
		if words == 1 {
			if _, ok := e.generic[lower]; ok {
				score -= e.weights.GenericPenalty
			}
		}
		scored = append(scored, tagScore{tag: tag, score: score})
	}

	// Stable sort keeps the original order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	n := len(scored)
	if n > e.weights.MaxTags {
		n = e.weights.MaxTags
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = scored[i].tag
	}
	return out
}

// generate asks the generative service for tags when the page offered none.
func (e *Enricher) generate(ctx context.Context, meta link.Metadata) []string {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Suggest exactly %d short, specific tags for a saved link.\n"+
			"Title: %s\nDescription: %s\n"+
			"Respond with ONLY the tags, comma-separated, nothing else.",
		e.weights.MaxTags, meta.Title, meta.Description)

	raw, err := e.chatter.Generate(ctx, e.model, prompt)
	if err != nil {
		slog.Warn("tag generation failed", "url", meta.URL, "error", err)
		return []string{}
	}

	parts := strings.Split(stripCodeFence(raw), ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	tags = link.Dedupe(tags)
	if len(tags) > e.weights.MaxTags {
		tags = tags[:e.weights.MaxTags]
	}
	return tags
}

// stripCodeFence removes surrounding markdown code-fence markers from a raw
// model response. Small models frequently wrap structured output in
// ```json ... ``` despite instructions not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}
