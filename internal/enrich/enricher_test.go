package enrich

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/macitch/Bridgea/internal/config"
	"github.com/macitch/Bridgea/internal/link"
)

type mockChatter struct {
	response string
	err      error
	prompts  []string
}

func (m *mockChatter) Generate(ctx context.Context, model, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func defaultWeights() config.EnrichConfig {
	return config.EnrichConfig{
		TitleWeight:    3,
		DescWeight:     2,
		WordBonus:      1,
		GenericPenalty: 1,
		MaxTags:        5,
		GenericTags:    []string{"design", "brand", "logo", "art", "web", "tech"},
	}
}

func TestRank_SpecificPhraseBeatsGenericWord(t *testing.T) {
	e := New(&mockChatter{}, "m", defaultWeights())

	meta := link.Metadata{
		Title: "Minimalist Packaging Design",
		Tags:  []string{"logo", "minimalist packaging design"},
	}

	got := e.Tags(context.Background(), meta)
	// "logo": generic single word, not in title: 1*1 - 1 = 0.
	// "minimalist packaging design": in title (+3) plus three words: 3 + 3 = 6.
	want := []string{"minimalist packaging design", "logo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
}

func TestRank_CapsAtMaxTags(t *testing.T) {
	e := New(&mockChatter{}, "m", defaultWeights())

	meta := link.Metadata{
		Title: "untitled",
		Tags:  []string{"one", "two", "three", "four", "five", "six", "seven"},
	}

	got := e.Tags(context.Background(), meta)
	if len(got) != 5 {
		t.Fatalf("len(Tags()) = %d, want 5", len(got))
	}
}

func TestRank_DedupesBeforeScoring(t *testing.T) {
	e := New(&mockChatter{}, "m", defaultWeights())

	meta := link.Metadata{
		Title: "Coffee",
		Tags:  []string{"coffee", "espresso", "coffee"},
	}

	got := e.Tags(context.Background(), meta)
	want := []string{"coffee", "espresso"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
}

func TestRank_StableOrderForEqualScores(t *testing.T) {
	e := New(&mockChatter{}, "m", defaultWeights())

	meta := link.Metadata{
		Tags: []string{"alpha", "beta", "gamma"},
	}

	got := e.Tags(context.Background(), meta)
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
}

func TestGenerate_UsedWhenNoTags(t *testing.T) {
	chatter := &mockChatter{response: "espresso, brewing, coffee gear"}
	e := New(chatter, "m", defaultWeights())

	meta := link.Metadata{Title: "Espresso Guide"}

	got := e.Tags(context.Background(), meta)
	want := []string{"espresso", "brewing", "coffee gear"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
	if len(chatter.prompts) != 1 {
		t.Errorf("expected one generation call, got %d", len(chatter.prompts))
	}
}

func TestGenerate_ErrorReturnsEmpty(t *testing.T) {
	chatter := &mockChatter{err: errors.New("model offline")}
	e := New(chatter, "m", defaultWeights())

	got := e.Tags(context.Background(), link.Metadata{Title: "anything"})
	if len(got) != 0 {
		t.Errorf("Tags() = %v, want empty", got)
	}
	if got == nil {
		t.Error("Tags() should return empty slice, not nil")
	}
}

func TestCategories_ParsesJSONArray(t *testing.T) {
	chatter := &mockChatter{response: `["Design", "Inspiration", "Design"]`}
	e := New(chatter, "m", defaultWeights())

	got := e.Categories(context.Background(), link.Metadata{Title: "Portfolio"})
	want := []string{"Design", "Inspiration"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

func TestCategories_StripsCodeFence(t *testing.T) {
	chatter := &mockChatter{response: "```json\n[\"Design\", \"Tech\"]\n```"}
	e := New(chatter, "m", defaultWeights())

	got := e.Categories(context.Background(), link.Metadata{})
	want := []string{"Design", "Tech"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

func TestCategories_UnparseableReturnsEmpty(t *testing.T) {
	chatter := &mockChatter{response: "Sure! Here are some categories: Design, Tech"}
	e := New(chatter, "m", defaultWeights())

	got := e.Categories(context.Background(), link.Metadata{})
	if len(got) != 0 {
		t.Errorf("Categories() = %v, want empty", got)
	}
}

func TestCategories_ServiceErrorReturnsEmpty(t *testing.T) {
	chatter := &mockChatter{err: errors.New("connection refused")}
	e := New(chatter, "m", defaultWeights())

	got := e.Categories(context.Background(), link.Metadata{})
	if got == nil || len(got) != 0 {
		t.Errorf("Categories() = %v, want non-nil empty slice", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`["a"]`, `["a"]`},
		{"```json\n[\"a\"]\n```", `["a"]`},
		{"```\n[\"a\"]\n```", `["a"]`},
		{"  [\"a\"]  ", `["a"]`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
