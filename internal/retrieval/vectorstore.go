package retrieval

import "time"

// VectorStore is the interface for vector storage and nearest-neighbor
// retrieval. The default implementation is SQLite with brute-force cosine
// distance; an ANN-capable backend can replace it behind the same interface.
type VectorStore interface {
	// Upsert inserts records, replacing any existing record with the same ID.
	Upsert(records []Record) error

	// Search returns the topK records nearest to the query vector, closest
	// first. When userID is non-empty, only that user's records are scanned.
	Search(vector []float32, topK int, userID string) ([]ScoredRecord, error)

	// Delete removes a record by ID.
	Delete(id string) error

	// DeleteByURL removes all records for the given user and URL.
	DeleteByURL(userID, url string) error

	// Count returns the number of stored records.
	Count() (int, error)
}

// Record is one row in the vector index. Payload carries the encoded
// link.VectorPayload blob the search engine decodes when scoring.
type Record struct {
	ID        string
	UserID    string
	URL       string
	Text      string
	Embedding []float32
	Payload   string
	CreatedAt time.Time
}

// ScoredRecord is a Record with its distance to the query vector.
// Distance is 1 − cosine similarity, so smaller is closer.
type ScoredRecord struct {
	Record
	Distance float32
}
