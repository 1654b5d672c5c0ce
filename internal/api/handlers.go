package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/macitch/Bridgea/internal/link"
	"github.com/macitch/Bridgea/internal/pipeline"
	"github.com/macitch/Bridgea/internal/retrieval"
	"github.com/macitch/Bridgea/internal/storage"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxSyncBodySize = 32 << 20    // 32MB; sync batches carry raw vectors

// MetadataProcessor runs the extraction pipeline for one URL.
type MetadataProcessor interface {
	Process(ctx context.Context, url string) (link.Metadata, error)
}

// LinkSearcher runs the retrieval pipeline for one query.
type LinkSearcher interface {
	Search(ctx context.Context, q retrieval.Query) (retrieval.Result, error)
}

// BatchEmbedder embeds multiple texts, used when sync payloads omit vectors.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps holds the collaborators the HTTP layer delegates to.
type Deps struct {
	Processor MetadataProcessor
	Searcher  LinkSearcher
	Embedder  BatchEmbedder
	Vectors   retrieval.VectorStore
	Store     *storage.Store
	Token     string
}

// NewHandler builds the service router. Metadata extraction and search are
// open; sync and link management require the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/metadata", handleMetadata(deps))
	r.Post("/search", handleSearch(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/sync", handleSync(deps))
		r.Post("/links", handleSaveLink(deps))
		r.Get("/links", handleListLinks(deps))
		r.Delete("/links/{id}", handleDeleteLink(deps))
		r.Patch("/links/{id}", handlePatchLink(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleMetadata(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url query parameter is required")
			return
		}
		parsed, err := url.Parse(target)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is not a valid absolute URL")
			return
		}

		meta, err := deps.Processor.Process(r.Context(), target)
		if errors.Is(err, pipeline.ErrInFlight) {
			httpError(w, http.StatusTooManyRequests, "conflict_error", "url is already being processed, try again shortly")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "metadata extraction failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meta)
	}
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	K         int    `json:"k"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
}

// SearchResponse is the POST /search reply.
type SearchResponse struct {
	Answer string                 `json:"answer"`
	Links  []retrieval.ScoredLink `json:"links"`
	Total  int                    `json:"total"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if req.SessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "sessionId is required")
			return
		}

		result, err := deps.Searcher.Search(r.Context(), retrieval.Query{
			Text:      req.Message,
			SessionID: req.SessionID,
			UserID:    req.UserID,
			K:         req.K,
			Offset:    req.Offset,
			Limit:     req.Limit,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{
			Answer: searchAnswer(result.Total),
			Links:  result.Links,
			Total:  result.Total,
		})
	}
}

func searchAnswer(total int) string {
	switch total {
	case 0:
		return "I couldn't find any saved links matching that."
	case 1:
		return "I found 1 saved link matching that."
	default:
		return fmt.Sprintf("I found %d saved links matching that.", total)
	}
}

// SyncEntry is one vector record in a POST /sync batch. Vector may be empty,
// in which case the text is embedded server-side.
type SyncEntry struct {
	ID       string          `json:"id"`
	Vector   []float32       `json:"vector"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata"`
}

// SyncRequest is the POST /sync body.
type SyncRequest struct {
	UserID string      `json:"userId"`
	Links  []SyncEntry `json:"links"`
}

func handleSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSyncBodySize)
		defer r.Body.Close()

		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId is required")
			return
		}
		if len(req.Links) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "links is required and must not be empty")
			return
		}

		records, err := buildSyncRecords(r.Context(), deps.Embedder, req)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "sync failed: %v", err)
			return
		}

		if err := deps.Vectors.Upsert(records); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "sync failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"count":   len(records),
		})
	}
}

// buildSyncRecords converts sync entries to vector records, embedding any
// entries that arrived without a vector. Metadata blobs are re-encoded
// through the versioned payload codec so every stored blob carries the
// current version stamp.
func buildSyncRecords(ctx context.Context, embedder BatchEmbedder, req SyncRequest) ([]retrieval.Record, error) {
	records := make([]retrieval.Record, len(req.Links))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, entry := range req.Links {
		g.Go(func() error {
			id := entry.ID
			if id == "" {
				id = uuid.New().String()
			}

			var payload link.VectorPayload
			if len(entry.Metadata) > 0 {
				decoded, err := link.DecodeVectorPayload(string(entry.Metadata))
				if err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}
				payload = decoded
			}
			blob, err := link.EncodeVectorPayload(payload)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}

			vec := entry.Vector
			if len(vec) == 0 {
				embedded, err := embedder.EmbedBatch(gCtx, []string{entry.Text})
				if err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}
				vec = embedded[0]
			}

			records[i] = retrieval.Record{
				ID:        id,
				UserID:    req.UserID,
				URL:       payload.URL,
				Text:      entry.Text,
				Embedding: vec,
				Payload:   blob,
				CreatedAt: time.Now().UTC(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveLinkRequest is the POST /links body.
type SaveLinkRequest struct {
	UserID      string   `json:"userId"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories"`
	Favorite    bool     `json:"favorite"`
}

func handleSaveLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SaveLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId and url are required")
			return
		}

		saved := link.SavedLink{
			ID:          uuid.New().String(),
			UserID:      req.UserID,
			URL:         req.URL,
			Title:       req.Title,
			Description: req.Description,
			ImageURL:    req.ImageURL,
			Tags:        req.Tags,
			Categories:  req.Categories,
			Favorite:    req.Favorite,
			CreatedAt:   time.Now().UTC(),
		}
		saved.SearchTerms = saved.BuildSearchTerms()

		if err := deps.Store.SaveLink(saved); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save link: %v", err)
			return
		}

		if err := enqueueEmbed(deps.Store, saved.ID); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue embedding: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(saved)
	}
}

func enqueueEmbed(store *storage.Store, linkID string) error {
	payload, err := json.Marshal(map[string]string{"link_id": linkID})
	if err != nil {
		return err
	}
	return store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        "embed_link",
		PayloadJSON: string(payload),
	})
}

func handleListLinks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId query parameter is required")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		var links []link.SavedLink
		var err error
		if q := r.URL.Query().Get("q"); q != "" {
			links, err = deps.Store.SearchLinksByPrefix(userID, q, limit)
		} else {
			links, err = deps.Store.ListLinks(userID, limit, offset)
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list links: %v", err)
			return
		}
		if links == nil {
			links = []link.SavedLink{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(links)
	}
}

func handleDeleteLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		saved, err := deps.Store.GetLink(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "link not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get link: %v", err)
			return
		}

		if err := deps.Vectors.DeleteByURL(saved.UserID, saved.URL); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete vectors: %v", err)
			return
		}
		if err := deps.Store.DeleteLink(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete link: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

// PatchLinkRequest updates mutable fields of a saved link.
type PatchLinkRequest struct {
	Favorite *bool `json:"favorite"`
}

func handlePatchLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req PatchLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.Favorite != nil {
			err := deps.Store.SetFavorite(id, *req.Favorite)
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "link not found")
				return
			}
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to update link: %v", err)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
