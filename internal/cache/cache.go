// Package cache stores embedding vectors across runs, in memory and on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const keyPrefix = "regdiff:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// VectorKey generates the cache key of a text's embedding under a model.
// Vectors from different models never share a key.
func VectorKey(provider, model, text string) string {
	h := sha256.New()
	for _, part := range []string{provider, model, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
