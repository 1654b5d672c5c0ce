package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ResultCache is a short-TTL cache for serialized search results, keyed by
// the full query identity. It absorbs repeated identical queries within a
// bounded window; a miss is never an error.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Key derives the cache key for one search invocation. The user ID and all
// pagination parameters participate so entries are never shared across users
// and different pages never collide.
func Key(sessionID, userID, query string, k, offset, limit int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%s\x00%d\x00%d\x00%d", sessionID, userID, query, k, offset, limit))
	return "search:" + hex.EncodeToString(sum[:])
}

// Noop is the cache used when no Redis address is configured: every lookup
// misses and writes are discarded.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}
