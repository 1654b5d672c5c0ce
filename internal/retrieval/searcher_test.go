package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/macitch/Bridgea/internal/link"
)

type mockQueryEmbedder struct {
	vec []float32
	err error
}

func (m *mockQueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.vec, m.err
}

type mockVectorStore struct {
	records []ScoredRecord
	err     error
	lastK   int
	lastUID string
}

func (m *mockVectorStore) Upsert(records []Record) error        { return nil }
func (m *mockVectorStore) Delete(id string) error               { return nil }
func (m *mockVectorStore) DeleteByURL(userID, url string) error { return nil }
func (m *mockVectorStore) Count() (int, error)                  { return len(m.records), nil }
func (m *mockVectorStore) Search(vector []float32, topK int, userID string) ([]ScoredRecord, error) {
	m.lastK = topK
	m.lastUID = userID
	return m.records, m.err
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
}

func record(t *testing.T, id, url, title, desc string, tags, categories []string, distance float32) ScoredRecord {
	t.Helper()
	blob, err := link.EncodeVectorPayload(link.VectorPayload{
		URL:         url,
		Title:       title,
		Description: desc,
		Tags:        tags,
		Categories:  categories,
		Date:        "2026-08-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}
	return ScoredRecord{
		Record:   Record{ID: id, URL: url, Payload: blob},
		Distance: distance,
	}
}

func newTestSearcher(store VectorStore) *Searcher {
	return NewSearcher(&mockQueryEmbedder{vec: []float32{1, 0}}, store, nil, time.Minute, 0)
}

func TestSearch_KeywordScoringAndOrder(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://a.com", "Espresso Guide", "pulling espresso shots", nil, nil, 0.1),
		record(t, "2", "https://b.com", "Coffee News", "daily roundup", nil, nil, 0.05),
		record(t, "3", "https://c.com", "Espresso Machines", "espresso hardware review", nil, nil, 0.2),
	}}
	s := newTestSearcher(store)

	res, err := s.Search(context.Background(), Query{Text: "espresso shots", SessionID: "s"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// "Coffee News" matches no keywords and is dropped. Record 1 matches both
	// keywords, record 3 only "espresso".
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2", res.Total)
	}
	if res.Links[0].URL != "https://a.com" || res.Links[0].Score != 2 {
		t.Errorf("first result = %q score %d, want a.com score 2", res.Links[0].URL, res.Links[0].Score)
	}
	if res.Links[1].URL != "https://c.com" || res.Links[1].Score != 1 {
		t.Errorf("second result = %q score %d, want c.com score 1", res.Links[1].URL, res.Links[1].Score)
	}
}

func TestSearch_DistanceTiebreak(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://far.com", "espresso", "", nil, nil, 0.9),
		record(t, "2", "https://near.com", "espresso", "", nil, nil, 0.1),
	}}
	s := newTestSearcher(store)

	res, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Links[0].URL != "https://near.com" {
		t.Errorf("equal scores should order by ascending distance, got %q first", res.Links[0].URL)
	}
}

func TestSearch_FilterSemantics(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://a.com", "Portfolio", "", []string{"Design"}, []string{"Inspiration"}, 0.1),
		record(t, "2", "https://b.com", "Shop", "", []string{"design"}, []string{"Commerce"}, 0.2),
		record(t, "3", "https://c.com", "Blog", "", []string{"writing"}, []string{"Inspiration"}, 0.3),
	}}
	s := newTestSearcher(store)

	// Both filters must hold (AND semantics); tag matching is case-insensitive.
	res, err := s.Search(context.Background(), Query{Text: "tag:design category:inspiration", SessionID: "s"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 1 || res.Links[0].URL != "https://a.com" {
		t.Fatalf("filtered result = %+v, want only a.com", res.Links)
	}
}

func TestSearch_FilterWithKeywords(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://a.com", "Espresso Guide", "", []string{"coffee"}, nil, 0.1),
		record(t, "2", "https://b.com", "Latte Art", "", []string{"coffee"}, nil, 0.2),
	}}
	s := newTestSearcher(store)

	// With a filter present, candidates matching the filter are kept even
	// when their keyword score is zero; keywords still rank them.
	res, err := s.Search(context.Background(), Query{Text: "espresso tag:coffee", SessionID: "s"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2", res.Total)
	}
	if res.Links[0].URL != "https://a.com" {
		t.Errorf("keyword match should rank first, got %q", res.Links[0].URL)
	}
}

func TestSearch_DedupeKeepsHighestRanked(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://dup.com", "espresso espresso guide", "espresso", nil, nil, 0.2),
		record(t, "2", "https://dup.com", "espresso", "", nil, nil, 0.1),
	}}
	s := newTestSearcher(store)

	res, err := s.Search(context.Background(), Query{Text: "espresso guide", SessionID: "s"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("Total = %d, want 1 after dedupe", res.Total)
	}
	if res.Links[0].Score != 2 {
		t.Errorf("kept record score = %d, want the higher-scored 2", res.Links[0].Score)
	}
}

func TestSearch_Pagination(t *testing.T) {
	var records []ScoredRecord
	urls := []string{"https://a.com", "https://b.com", "https://c.com", "https://d.com", "https://e.com"}
	for i, u := range urls {
		records = append(records, record(t, u, u, "espresso", "", nil, nil, float32(i)*0.1))
	}
	store := &mockVectorStore{records: records}
	s := newTestSearcher(store)

	page1, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s", Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	page2, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	page3, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s", Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if page1.Total != 5 || page2.Total != 5 || page3.Total != 5 {
		t.Errorf("Total should be 5 on every page: %d, %d, %d", page1.Total, page2.Total, page3.Total)
	}

	var got []string
	for _, p := range [][]ScoredLink{page1.Links, page2.Links, page3.Links} {
		for _, l := range p {
			got = append(got, l.URL)
		}
	}
	if len(got) != 5 {
		t.Fatalf("pages concatenated to %d links, want 5", len(got))
	}
	for i, u := range urls {
		if got[i] != u {
			t.Errorf("concatenated[%d] = %q, want %q", i, got[i], u)
		}
	}
}

func TestSearch_OffsetPastEnd(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://a.com", "espresso", "", nil, nil, 0.1),
	}}
	s := newTestSearcher(store)

	res, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s", Offset: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("Total = %d, want 1", res.Total)
	}
	if len(res.Links) != 0 {
		t.Errorf("links past the end = %v, want empty", res.Links)
	}
}

func TestSearch_CacheRoundtrip(t *testing.T) {
	store := &mockVectorStore{records: []ScoredRecord{
		record(t, "1", "https://a.com", "espresso", "", nil, nil, 0.1),
	}}
	mc := newMemoryCache()
	s := NewSearcher(&mockQueryEmbedder{vec: []float32{1}}, store, mc, time.Minute, 0)

	q := Query{Text: "espresso", SessionID: "s"}
	first, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if mc.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", mc.sets)
	}

	// Second identical query short-circuits on the cache; empty the store to
	// prove the result did not come from it.
	store.records = nil
	second, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("cached result differs: %s vs %s", a, b)
	}
}

type perUserVectorStore struct {
	mockVectorStore
	byUser map[string][]ScoredRecord
}

func (m *perUserVectorStore) Search(vector []float32, topK int, userID string) ([]ScoredRecord, error) {
	return m.byUser[userID], nil
}

func TestSearch_CacheScopedPerUser(t *testing.T) {
	store := &perUserVectorStore{byUser: map[string][]ScoredRecord{
		"alice": {record(t, "1", "https://alice-only.com", "espresso", "", nil, nil, 0.1)},
		"bob":   {record(t, "2", "https://bob-only.com", "espresso", "", nil, nil, 0.1)},
	}}
	mc := newMemoryCache()
	s := NewSearcher(&mockQueryEmbedder{vec: []float32{1}}, store, mc, time.Minute, 0)

	// Same session and query text, different users. The fixed session IDs
	// used by the MCP and CLI clients make this the common case.
	aliceRes, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "mcp", UserID: "alice"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if aliceRes.Total != 1 || aliceRes.Links[0].URL != "https://alice-only.com" {
		t.Fatalf("alice result = %+v", aliceRes.Links)
	}

	bobRes, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "mcp", UserID: "bob"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if bobRes.Total != 1 || bobRes.Links[0].URL != "https://bob-only.com" {
		t.Fatalf("bob received another user's cached results: %+v", bobRes.Links)
	}
	if mc.sets != 2 {
		t.Errorf("cache sets = %d, want separate entries per user", mc.sets)
	}
}

func TestSearch_ErrorsNotCached(t *testing.T) {
	store := &mockVectorStore{err: errors.New("db locked")}
	mc := newMemoryCache()
	s := NewSearcher(&mockQueryEmbedder{vec: []float32{1}}, store, mc, time.Minute, 0)

	if _, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s"}); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if mc.sets != 0 {
		t.Errorf("error result was cached: %d sets", mc.sets)
	}
}

func TestSearch_EmbedErrorPropagates(t *testing.T) {
	s := NewSearcher(&mockQueryEmbedder{err: errors.New("model offline")}, &mockVectorStore{}, nil, time.Minute, 0)
	if _, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s"}); err == nil {
		t.Fatal("expected embed error to propagate")
	}
}

func TestSearch_DefaultsApplied(t *testing.T) {
	store := &mockVectorStore{}
	s := newTestSearcher(store)

	if _, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s", UserID: "alice"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.lastK != 20 {
		t.Errorf("candidate pool K = %d, want default 20", store.lastK)
	}
	if store.lastUID != "alice" {
		t.Errorf("userID = %q, want alice", store.lastUID)
	}
}

func TestSearch_ConfiguredDefaultK(t *testing.T) {
	store := &mockVectorStore{}
	s := NewSearcher(&mockQueryEmbedder{vec: []float32{1}}, store, nil, time.Minute, 50)

	if _, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.lastK != 50 {
		t.Errorf("candidate pool K = %d, want configured 50", store.lastK)
	}

	// An explicit per-query K still wins over the configured default.
	if _, err := s.Search(context.Background(), Query{Text: "espresso", SessionID: "s", K: 7}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.lastK != 7 {
		t.Errorf("candidate pool K = %d, want per-query 7", store.lastK)
	}
}

func TestParseQuery(t *testing.T) {
	filters, keywords := parseQuery("Espresso tag:Coffee category:Drinks guide unknown:x")
	if filters["tag"] != "Coffee" || filters["category"] != "Drinks" {
		t.Errorf("filters = %v", filters)
	}
	if len(filters) != 2 {
		t.Errorf("unrecognized key should stay a keyword: %v", filters)
	}
	want := []string{"espresso", "guide", "unknown:x"}
	if len(keywords) != len(want) {
		t.Fatalf("keywords = %v, want %v", keywords, want)
	}
	for i := range want {
		if keywords[i] != want[i] {
			t.Errorf("keywords[%d] = %q, want %q", i, keywords[i], want[i])
		}
	}
}
