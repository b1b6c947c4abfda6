package embedding

import (
	"crypto/sha256"
	"fmt"

	"github.com/AVIDS2/memorix/internal/store"
)

// cacheCapacity bounds both cache layers. The in-memory map evicts FIFO;
// the on-disk file is truncated to the same cap on save so a long-lived
// installation cannot grow it without bound.
const cacheCapacity = 5000

// Cache wraps a Provider with two lookup layers: an in-memory map keyed by
// the 16-hex-char prefix of SHA-256(text), then the on-disk cache loaded
// once at startup. Batch calls only compute the uncached subset and keep
// hits and misses in the caller's original order.
//
// The disk cache is what makes cold starts cheap: re-embedding a few
// thousand observations costs minutes of CPU, reading the cache does not.
type Cache struct {
	provider Provider
	st       *store.Store

	entries map[string][]float32
	order   []string
	dirty   bool
}

// NewCache builds the cache around provider, loading the disk layer.
// Entries whose dimensionality disagrees with the provider are discarded.
func NewCache(provider Provider, st *store.Store) (*Cache, error) {
	c := &Cache{
		provider: provider,
		st:       st,
		entries:  make(map[string][]float32),
	}
	persisted, err := st.LoadEmbeddingCache(provider.Dimensions())
	if err != nil {
		return nil, err
	}
	for _, e := range persisted {
		c.put(e.Hash, e.Vector)
	}
	c.dirty = false
	return c, nil
}

func (c *Cache) Name() string    { return c.provider.Name() }
func (c *Cache) Dimensions() int { return c.provider.Dimensions() }

// Embed returns the embedding for text, computing it only on a double miss.
func (c *Cache) Embed(text string) ([]float32, error) {
	vecs, err := c.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch resolves texts against the cache and asks the provider for the
// misses in provider-native batches. The result preserves input order. The
// disk layer is rewritten after the call when anything new was computed.
func (c *Cache) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if vec, ok := c.entries[ContentHash(t)]; ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	for start := 0; start < len(missTexts); start += batchSize {
		end := start + batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vecs, err := c.provider.EmbedBatch(missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			i := missIdx[start+j]
			out[i] = vec
			c.put(ContentHash(texts[i]), vec)
		}
	}

	if c.dirty {
		if err := c.flush(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// put inserts into the memory layer, evicting the oldest entry at capacity.
func (c *Cache) put(hash string, vec []float32) {
	if _, exists := c.entries[hash]; exists {
		return
	}
	if len(c.order) >= cacheCapacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[hash] = vec
	c.order = append(c.order, hash)
	c.dirty = true
}

// flush persists the memory layer in insertion order.
func (c *Cache) flush() error {
	entries := make([]store.CacheEntry, 0, len(c.order))
	for _, hash := range c.order {
		entries = append(entries, store.CacheEntry{Hash: hash, Vector: c.entries[hash]})
	}
	if err := c.st.SaveEmbeddingCache(entries); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Len reports how many embeddings the memory layer holds.
func (c *Cache) Len() int { return len(c.order) }

// ContentHash is the cache key: the first 16 hex chars of SHA-256(text).
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)[:16]
}
