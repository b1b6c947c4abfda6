package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AVIDS2/memorix/internal/fsio"
	"github.com/AVIDS2/memorix/internal/memerr"
)

// CacheEntry is one persisted embedding, keyed by the 16-hex-char prefix of
// SHA-256 over the embedded text. On disk it is a 2-tuple [hash, vector].
type CacheEntry struct {
	Hash   string
	Vector []float32
}

func (e CacheEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Hash, e.Vector})
}

func (e *CacheEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &e.Hash); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Vector)
}

// LoadEmbeddingCache reads .embedding-cache.json, discarding entries whose
// vector length disagrees with dims. dims <= 0 keeps everything.
func (s *Store) LoadEmbeddingCache(dims int) ([]CacheEntry, error) {
	data, err := os.ReadFile(s.path(EmbeddingFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", EmbeddingFile, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, memerr.WrapFS(memerr.KindIntegrityError, "parse", s.path(EmbeddingFile), err)
	}
	if dims <= 0 {
		return entries, nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if len(e.Vector) == dims {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// SaveEmbeddingCache writes the cache atomically.
func (s *Store) SaveEmbeddingCache(entries []CacheEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", EmbeddingFile, err)
	}
	if err := fsio.AtomicWrite(s.path(EmbeddingFile), data); err != nil {
		return fmt.Errorf("write %s: %w", EmbeddingFile, err)
	}
	return nil
}
