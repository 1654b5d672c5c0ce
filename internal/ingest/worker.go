package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/macitch/Bridgea/internal/link"
	"github.com/macitch/Bridgea/internal/retrieval"
	"github.com/macitch/Bridgea/internal/storage"
)

// JobStore abstracts the job queue and link lookups.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetLink(id string) (link.SavedLink, error)
}

// TextEmbedder generates embeddings for text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorUpserter writes records into the vector store.
type VectorUpserter interface {
	Upsert(records []retrieval.Record) error
	DeleteByURL(userID, url string) error
}

// Worker processes embed_link jobs from the SQLite job queue, keeping the
// vector index in sync with saved links without blocking the request path.
type Worker struct {
	store    JobStore
	embedder TextEmbedder
	vectors  VectorUpserter
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder TextEmbedder, vectors VectorUpserter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single embed_link job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{"embed_link"})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// EmbedPayload is the JSON payload of an embed_link job.
type EmbedPayload struct {
	LinkID string `json:"link_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload EmbedPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	saved, err := w.store.GetLink(payload.LinkID)
	if err != nil {
		return fmt.Errorf("loading link %s: %w", payload.LinkID, err)
	}

	text := saved.BuildSearchTerms()
	vec, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding link text: %w", err)
	}

	blob, err := link.EncodeVectorPayload(link.VectorPayload{
		URL:         saved.URL,
		Title:       saved.Title,
		Description: saved.Description,
		ImageURL:    saved.ImageURL,
		Tags:        saved.Tags,
		Categories:  saved.Categories,
		Date:        saved.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	// Drop any stale vectors for this URL before writing the fresh one, so an
	// edited link doesn't leave its old embedding behind.
	if err := w.vectors.DeleteByURL(saved.UserID, saved.URL); err != nil {
		return fmt.Errorf("clearing old vectors: %w", err)
	}

	rec := retrieval.Record{
		ID:        uuid.New().String(),
		UserID:    saved.UserID,
		URL:       saved.URL,
		Text:      text,
		Embedding: vec,
		Payload:   blob,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.vectors.Upsert([]retrieval.Record{rec}); err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}

	return nil
}
