package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type mockEmbeddingClient struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (m *mockEmbeddingClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if err, ok := m.fail[text]; ok {
		return nil, err
	}
	return []float32{float32(len(text))}, nil
}

func TestEmbedBatch(t *testing.T) {
	client := &mockEmbeddingClient{}
	e := NewEmbedder(client, "nomic-embed-text")

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("text number %d", i)
	}

	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("len(vecs) = %d, want %d", len(vecs), len(texts))
	}
	// Results land at the index of their input regardless of completion order.
	for i, v := range vecs {
		if len(v) != 1 || v[0] != float32(len(texts[i])) {
			t.Errorf("vecs[%d] = %v for %q", i, v, texts[i])
		}
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := NewEmbedder(&mockEmbeddingClient{}, "m")
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil) failed: %v", err)
	}
	if vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, want nil", vecs)
	}
}

func TestEmbedBatch_PropagatesFailure(t *testing.T) {
	client := &mockEmbeddingClient{fail: map[string]error{"bad": errors.New("boom")}}
	e := NewEmbedder(client, "m")

	if _, err := e.EmbedBatch(context.Background(), []string{"ok", "bad", "fine"}); err == nil {
		t.Fatal("expected batch to fail when one embedding fails")
	}
}
