package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/macitch/Bridgea/internal/fetch"
	"github.com/macitch/Bridgea/internal/guard"
	"github.com/macitch/Bridgea/internal/link"
)

type mockSelector struct {
	strategy fetch.Strategy
}

func (m *mockSelector) Select(ctx context.Context, url string) fetch.Strategy {
	return m.strategy
}

type mockExtractor struct {
	meta    link.Metadata
	err     error
	calls   int
	release chan struct{} // when non-nil, Extract blocks until closed
	started chan struct{} // when non-nil, closed once Extract begins
	once    sync.Once
}

func (m *mockExtractor) Extract(ctx context.Context, url string) (link.Metadata, error) {
	m.calls++
	if m.started != nil {
		m.once.Do(func() { close(m.started) })
	}
	if m.release != nil {
		<-m.release
	}
	return m.meta, m.err
}

type mockEnricher struct {
	categories []string
	tags       []string
}

func (m *mockEnricher) Categories(ctx context.Context, meta link.Metadata) []string {
	return m.categories
}

func (m *mockEnricher) Tags(ctx context.Context, meta link.Metadata) []string {
	return m.tags
}

func TestProcess_StaticPath(t *testing.T) {
	static := &mockExtractor{meta: link.Metadata{Title: "Static Page"}}
	rendered := &mockExtractor{meta: link.Metadata{Title: "Rendered Page"}}
	p := NewProcessor(
		guard.NewInFlight(),
		&mockSelector{strategy: fetch.StrategyLightweight},
		static, rendered,
		&mockEnricher{categories: []string{"News"}, tags: []string{"article"}},
	)

	meta, err := p.Process(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if static.calls != 1 || rendered.calls != 0 {
		t.Errorf("static calls = %d, rendered calls = %d; want 1, 0", static.calls, rendered.calls)
	}
	if meta.Title != "Static Page" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.URL != "https://example.com" {
		t.Errorf("URL = %q, want request URL", meta.URL)
	}
	if !reflect.DeepEqual(meta.Categories, []string{"News"}) {
		t.Errorf("Categories = %v", meta.Categories)
	}
	if !reflect.DeepEqual(meta.Tags, []string{"article"}) {
		t.Errorf("Tags = %v", meta.Tags)
	}
}

func TestProcess_RenderedPath(t *testing.T) {
	static := &mockExtractor{meta: link.Metadata{Title: "Static Page"}}
	rendered := &mockExtractor{meta: link.Metadata{Title: "Rendered Page"}}
	p := NewProcessor(
		guard.NewInFlight(),
		&mockSelector{strategy: fetch.StrategyRendered},
		static, rendered,
		&mockEnricher{},
	)

	meta, err := p.Process(context.Background(), "https://dribbble.com/shots/1")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rendered.calls != 1 || static.calls != 0 {
		t.Errorf("rendered calls = %d, static calls = %d; want 1, 0", rendered.calls, static.calls)
	}
	if meta.Title != "Rendered Page" {
		t.Errorf("Title = %q", meta.Title)
	}
}

func TestProcess_ExtractErrorPropagates(t *testing.T) {
	static := &mockExtractor{err: errors.New("connection refused")}
	p := NewProcessor(
		guard.NewInFlight(),
		&mockSelector{strategy: fetch.StrategyLightweight},
		static, &mockExtractor{},
		&mockEnricher{},
	)

	if _, err := p.Process(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected extraction error")
	}

	// The in-flight slot must be released after a failure.
	if _, err := p.Process(context.Background(), "https://example.com"); errors.Is(err, ErrInFlight) {
		t.Fatal("slot still held after failed extraction")
	}
}

func TestProcess_ConcurrentDuplicateRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	static := &mockExtractor{meta: link.Metadata{Title: "Slow"}, release: release, started: started}
	p := NewProcessor(
		guard.NewInFlight(),
		&mockSelector{strategy: fetch.StrategyLightweight},
		static, &mockExtractor{},
		&mockEnricher{},
	)

	done := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), "https://example.com")
		done <- err
	}()
	<-started

	_, err := p.Process(context.Background(), "https://example.com")
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("duplicate request error = %v, want ErrInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	// Slot released after completion.
	if _, err := p.Process(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("request after completion failed: %v", err)
	}
}
