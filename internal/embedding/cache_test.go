package embedding

import (
	"fmt"
	"testing"

	"github.com/AVIDS2/memorix/internal/store"
)

// fakeProvider deterministically embeds text and counts provider calls.
type fakeProvider struct {
	dims  int
	calls int
	texts []string
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Dimensions() int { return f.dims }

func (f *fakeProvider) Embed(text string) ([]float32, error) {
	vecs, err := f.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeProvider) EmbedBatch(texts []string) ([][]float32, error) {
	f.calls++
	f.texts = append(f.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, f.dims)
		for j := range vec {
			vec[j] = float32(len(t)+i) / 10
		}
		out[i] = vec
	}
	return out, nil
}

func newTestCache(t *testing.T, dims int) (*Cache, *fakeProvider, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fp := &fakeProvider{dims: dims}
	c, err := NewCache(fp, st)
	if err != nil {
		t.Fatal(err)
	}
	return c, fp, st
}

func TestEmbedBatchEmptyDoesNotTouchProvider(t *testing.T) {
	c, fp, _ := newTestCache(t, 4)
	vecs, err := c.EmbedBatch(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 0 || fp.calls != 0 {
		t.Fatalf("vecs=%v calls=%d", vecs, fp.calls)
	}
}

func TestEmbedCachesSecondCall(t *testing.T) {
	c, fp, _ := newTestCache(t, 4)

	v1, err := c.Embed("hello world")
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.Embed("hello world")
	if err != nil {
		t.Fatal(err)
	}
	if fp.calls != 1 {
		t.Fatalf("provider called %d times, want 1", fp.calls)
	}
	if len(v1) != 4 || len(v2) != 4 {
		t.Fatal("wrong vector lengths")
	}
}

func TestEmbedBatchPreservesOrderWithMixedHits(t *testing.T) {
	c, fp, _ := newTestCache(t, 2)

	if _, err := c.Embed("cached-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed("cached-b"); err != nil {
		t.Fatal(err)
	}
	fp.texts = nil

	texts := []string{"new-1", "cached-a", "new-2", "cached-b"}
	vecs, err := c.EmbedBatch(texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 4 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 2 {
			t.Fatalf("vector %d has length %d", i, len(v))
		}
	}
	// Only the misses reached the provider.
	if len(fp.texts) != 2 || fp.texts[0] != "new-1" || fp.texts[1] != "new-2" {
		t.Fatalf("provider saw %v", fp.texts)
	}
}

func TestCacheSurvivesRestart(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fp := &fakeProvider{dims: 3}
	c, err := NewCache(fp, st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed("persisted text"); err != nil {
		t.Fatal(err)
	}

	// Fresh cache over the same store: no provider call needed.
	fp2 := &fakeProvider{dims: 3}
	c2, err := NewCache(fp2, st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c2.Embed("persisted text"); err != nil {
		t.Fatal(err)
	}
	if fp2.calls != 0 {
		t.Fatalf("provider called %d times after warm restart", fp2.calls)
	}
}

func TestFIFOEviction(t *testing.T) {
	c, _, _ := newTestCache(t, 1)

	for i := 0; i < cacheCapacity+10; i++ {
		if _, err := c.Embed(fmt.Sprintf("text-%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != cacheCapacity {
		t.Fatalf("cache holds %d entries, cap is %d", c.Len(), cacheCapacity)
	}
	// The earliest entries were evicted.
	if _, ok := c.entries[ContentHash("text-0")]; ok {
		t.Fatal("oldest entry not evicted")
	}
	if _, ok := c.entries[ContentHash(fmt.Sprintf("text-%d", cacheCapacity+9))]; !ok {
		t.Fatal("newest entry missing")
	}
}

func TestContentHashShape(t *testing.T) {
	h := ContentHash("abc")
	if len(h) != 16 {
		t.Fatalf("hash length = %d, want 16", len(h))
	}
	if h != ContentHash("abc") {
		t.Fatal("hash not deterministic")
	}
}
