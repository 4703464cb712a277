// Package retrieval performs vector search over the local index with
// forced-inclusion and overfetch/dedup semantics. Overfetching lets
// task-specific plans guarantee a particular document is represented even
// when it ranks outside the naive top-k.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"briefsmith/internal/embedding"
	"briefsmith/internal/index"
	"briefsmith/internal/logging"
)

// Record is one ranked evidence hit.
type Record struct {
	Content    string
	SourceID   string
	SourceName string
	Locator    string
	Score      float64
}

// Retriever embeds queries and searches the cached index.
type Retriever struct {
	embedder embedding.Engine
	cache    *index.Cache
}

// New creates a retriever over an embedding engine and an index cache.
func New(embedder embedding.Engine, cache *index.Cache) *Retriever {
	return &Retriever{embedder: embedder, cache: cache}
}

// forcedMatchCap limits how many forced-inclusion records lead the result
// list before rank-ordered backfill.
const forcedMatchCap = 2

// Search returns up to topK ranked evidence records for the query.
//
// When mustInclude is non-empty it is a case-insensitive substring that must
// appear in a record's SourceID or SourceName; up to two matching records
// are taken first, then the remaining ranked records backfill (skipping
// already-included source ids) until topK records are assembled. Zero
// matches fall back to the plain ranked list.
func (r *Retriever) Search(ctx context.Context, query string, topK int, mustInclude string, overfetch int) ([]Record, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Search")
	defer timer.Stop()

	if topK <= 0 {
		topK = 5
	}

	handle, err := r.cache.GetOrLoad()
	if err != nil {
		return nil, fmt.Errorf("index unavailable: %w", err)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	nFetch := topK
	if mustInclude != "" && overfetch > topK {
		nFetch = overfetch
	}

	hits, err := embedding.FindTopK(queryVec, handle.Vectors(), nFetch)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Record, 0, len(hits))
	for _, hit := range hits {
		if hit.Index < 0 || hit.Index >= handle.Len() {
			continue
		}
		entry := handle.Entry(hit.Index)
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			continue
		}
		results = append(results, Record{
			Content:    content,
			SourceID:   orDefault(entry.Meta.SourceID, "unknown_source"),
			SourceName: orDefault(entry.Meta.SourceName, "unknown"),
			Locator:    orDefault(entry.Meta.Locator, "unknown location"),
			Score:      hit.Similarity,
		})
	}

	logging.RetrievalDebug("Search %q: fetched %d candidates (topK=%d mustInclude=%q)",
		query, len(results), topK, mustInclude)

	if mustInclude != "" {
		if forced := applyForcedInclusion(results, mustInclude, topK); forced != nil {
			return forced, nil
		}
	}

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// applyForcedInclusion returns nil when no record matches the needle, which
// signals the caller to fall back to the plain ranked list.
func applyForcedInclusion(results []Record, mustInclude string, topK int) []Record {
	needle := strings.ToLower(mustInclude)

	var forced []Record
	for _, rec := range results {
		if strings.Contains(strings.ToLower(rec.SourceID), needle) ||
			strings.Contains(strings.ToLower(rec.SourceName), needle) {
			forced = append(forced, rec)
			if len(forced) == forcedMatchCap {
				break
			}
		}
	}
	if len(forced) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(forced))
	for _, rec := range forced {
		seen[rec.SourceID] = true
	}

	for _, rec := range results {
		if len(forced) >= topK {
			break
		}
		if seen[rec.SourceID] {
			continue
		}
		forced = append(forced, rec)
		seen[rec.SourceID] = true
	}

	if len(forced) > topK {
		forced = forced[:topK]
	}
	return forced
}

func orDefault(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}
