package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefsmith/internal/index"
)

// fakeEmbedder maps known texts to fixed vectors so ranking is predictable.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake" }

func entry(sourceID, sourceName, content string, vec []float32) index.Entry {
	return index.Entry{
		Content:   content,
		Embedding: vec,
		Meta: index.Metadata{
			SourceID:   sourceID,
			SourceName: sourceName,
			Locator:    "chunk 0 — lines 1–5",
		},
	}
}

func newTestRetriever(entries []index.Entry) *Retriever {
	cache := index.NewCache(func() (*index.Handle, error) {
		return index.NewHandle(entries), nil
	})
	return New(&fakeEmbedder{}, cache)
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	entries := []index.Entry{
		entry("doc:a.md#chunk_0", "a.md", "far away content", []float32{0, 1, 0}),
		entry("doc:b.md#chunk_0", "b.md", "exact match content", []float32{1, 0, 0}),
		entry("doc:c.md#chunk_0", "c.md", "nearby content", []float32{0.9, 0.1, 0}),
	}
	r := newTestRetriever(entries)

	got, err := r.Search(context.Background(), "query", 2, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc:b.md#chunk_0", got[0].SourceID)
	assert.Equal(t, "doc:c.md#chunk_0", got[1].SourceID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestSearch_SkipsEmptyContent(t *testing.T) {
	entries := []index.Entry{
		entry("doc:a.md#chunk_0", "a.md", "   ", []float32{1, 0, 0}),
		entry("doc:b.md#chunk_0", "b.md", "real content", []float32{0.5, 0.5, 0}),
	}
	r := newTestRetriever(entries)

	got, err := r.Search(context.Background(), "query", 5, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc:b.md#chunk_0", got[0].SourceID)
}

func TestSearch_ForcedInclusion(t *testing.T) {
	// risks.md ranks last; forced inclusion must still surface it.
	entries := []index.Entry{
		entry("doc:a.md#chunk_0", "a.md", "top ranked", []float32{1, 0, 0}),
		entry("doc:b.md#chunk_0", "b.md", "second", []float32{0.95, 0.05, 0}),
		entry("doc:c.md#chunk_0", "c.md", "third", []float32{0.9, 0.1, 0}),
		entry("doc:risks.md#chunk_0", "risks.md", "risk register", []float32{0, 0, 1}),
	}
	r := newTestRetriever(entries)

	for _, topK := range []int{1, 2, 3} {
		got, err := r.Search(context.Background(), "query", topK, "risks.md", 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)

		found := false
		for _, rec := range got {
			if strings.Contains(rec.SourceID, "risks.md") || strings.Contains(rec.SourceName, "risks.md") {
				found = true
			}
		}
		assert.True(t, found, "topK=%d result set missing forced document", topK)
		assert.LessOrEqual(t, len(got), topK)
	}
}

func TestSearch_ForcedInclusionBackfillsByRank(t *testing.T) {
	entries := []index.Entry{
		entry("doc:a.md#chunk_0", "a.md", "top ranked", []float32{1, 0, 0}),
		entry("doc:b.md#chunk_0", "b.md", "second", []float32{0.95, 0.05, 0}),
		entry("doc:risks.md#chunk_0", "risks.md", "risk register", []float32{0, 0, 1}),
	}
	r := newTestRetriever(entries)

	got, err := r.Search(context.Background(), "query", 3, "risks.md", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Forced match leads, then rank order resumes.
	assert.Equal(t, "doc:risks.md#chunk_0", got[0].SourceID)
	assert.Equal(t, "doc:a.md#chunk_0", got[1].SourceID)
	assert.Equal(t, "doc:b.md#chunk_0", got[2].SourceID)
}

func TestSearch_MustIncludeNoMatchFallsBack(t *testing.T) {
	entries := []index.Entry{
		entry("doc:a.md#chunk_0", "a.md", "top ranked", []float32{1, 0, 0}),
		entry("doc:b.md#chunk_0", "b.md", "second", []float32{0.9, 0.1, 0}),
	}
	r := newTestRetriever(entries)

	got, err := r.Search(context.Background(), "query", 2, "missing.md", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc:a.md#chunk_0", got[0].SourceID)
}

func TestSearch_IndexUnavailable(t *testing.T) {
	cache := index.NewCache(func() (*index.Handle, error) {
		return nil, assert.AnError
	})
	r := New(&fakeEmbedder{}, cache)

	_, err := r.Search(context.Background(), "query", 5, "", 0)
	require.Error(t, err)
}

func TestDedupeKeepOrder(t *testing.T) {
	records := []Record{
		{SourceID: "doc:a.md#chunk_0", Content: "first"},
		{SourceID: "doc:b.md#chunk_0", Content: "second"},
		{SourceID: "doc:a.md#chunk_0", Content: "duplicate of first"},
	}

	got := DedupeKeepOrder(records)
	require.Len(t, got, 2)
	assert.Equal(t, "doc:a.md#chunk_0", got[0].SourceID)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "doc:b.md#chunk_0", got[1].SourceID)
}

func TestDedupeKeepOrder_ContentPrefixFallback(t *testing.T) {
	long := strings.Repeat("same prefix ", 20)
	records := []Record{
		{Content: long + "tail one"},
		{Content: long + "tail two"}, // same first 80 chars, dropped
		{Content: "different"},
	}

	got := DedupeKeepOrder(records)
	require.Len(t, got, 2)
	assert.Equal(t, long+"tail one", got[0].Content)
	assert.Equal(t, "different", got[1].Content)
}
