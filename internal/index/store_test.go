package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a background worker in its package init;
	// it is not a leak from the code under test.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeEngine produces deterministic vectors from text length so build/load
// round trips are checkable without a live embedding service.
type fakeEngine struct{}

func (fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (fakeEngine) Dimensions() int { return 3 }
func (fakeEngine) Name() string    { return "fake" }

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "risks.md"),
		[]byte("# Risks\n\nR-001: Vendor delay\nSeverity: High\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("plain notes about the project"), 0644))
	return dir
}

func TestBuildAndLoadRoundTrip(t *testing.T) {
	corpusDir := writeCorpus(t)
	indexDir := t.TempDir()

	built, err := Build(context.Background(), corpusDir, indexDir, fakeEngine{}, 800, 120)
	require.NoError(t, err)
	require.Equal(t, 2, built.Len())

	loaded, err := Load(indexDir)
	require.NoError(t, err)
	require.Equal(t, built.Len(), loaded.Len())

	for i := 0; i < built.Len(); i++ {
		assert.Equal(t, built.Entry(i).Meta.SourceID, loaded.Entry(i).Meta.SourceID)
		assert.Equal(t, built.Entry(i).Content, loaded.Entry(i).Content)
		assert.Equal(t, built.Entry(i).Embedding, loaded.Entry(i).Embedding)
	}
}

func TestBuild_MissingCorpusPropagates(t *testing.T) {
	_, err := Build(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir(), fakeEngine{}, 800, 120)
	require.Error(t, err)
}

func TestLoad_MissingArtifactsFails(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_RowCountMismatchFails(t *testing.T) {
	corpusDir := writeCorpus(t)
	indexDir := t.TempDir()

	_, err := Build(context.Background(), corpusDir, indexDir, fakeEngine{}, 800, 120)
	require.NoError(t, err)

	// Truncate the sidecar to one line to break lock-step.
	metaPath := filepath.Join(indexDir, metaFileName)
	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	firstLine := data[:1]
	for i, b := range data {
		if b == '\n' {
			firstLine = data[:i+1]
			break
		}
	}
	require.NoError(t, os.WriteFile(metaPath, firstLine, 0644))

	_, err = Load(indexDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of sync")
}

func TestEnsure_RebuildsOnCorruption(t *testing.T) {
	corpusDir := writeCorpus(t)
	indexDir := t.TempDir()

	_, err := Build(context.Background(), corpusDir, indexDir, fakeEngine{}, 800, 120)
	require.NoError(t, err)

	// Corrupt the metadata sidecar.
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, metaFileName), []byte("{not json"), 0644))

	h, err := Ensure(context.Background(), corpusDir, indexDir, fakeEngine{}, 800, 120, false)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())

	// And the rebuilt artifacts load cleanly afterward.
	_, err = Load(indexDir)
	require.NoError(t, err)
}

func TestEnsure_LoadsExistingWithoutRebuild(t *testing.T) {
	corpusDir := writeCorpus(t)
	indexDir := t.TempDir()

	_, err := Build(context.Background(), corpusDir, indexDir, fakeEngine{}, 800, 120)
	require.NoError(t, err)

	// Removing the corpus proves Ensure did not rebuild.
	require.NoError(t, os.RemoveAll(corpusDir))

	h, err := Ensure(context.Background(), corpusDir, indexDir, fakeEngine{}, 800, 120, false)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
}

func TestCache_GetOrLoadAndInvalidate(t *testing.T) {
	loads := 0
	cache := NewCache(func() (*Handle, error) {
		loads++
		return &Handle{entries: []Entry{{Content: "x"}}}, nil
	})

	h1, err := cache.GetOrLoad()
	require.NoError(t, err)
	h2, err := cache.GetOrLoad()
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, loads)

	cache.Invalidate()
	_, err = cache.GetOrLoad()
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestWatcher_InvalidatesOnCorpusChange(t *testing.T) {
	corpusDir := t.TempDir()

	cache := NewCache(func() (*Handle, error) {
		return &Handle{}, nil
	})
	_, err := cache.GetOrLoad()
	require.NoError(t, err)

	w, err := WatchCorpus(corpusDir, cache)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "new.md"), []byte("# Doc\n"), 0644))

	// The invalidation is asynchronous; poll until the loader runs again.
	assert.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.handle == nil
	}, 2*time.Second, 10*time.Millisecond, "cache was not invalidated after corpus change")
}
