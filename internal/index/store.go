// Package index builds, persists, and loads the vector index over the
// document corpus. The index is two artifacts that must stay in lock-step:
// a sqlite database holding one embedding per row, and a line-delimited JSON
// metadata sidecar with one row per line. Row order is identity: sqlite row N
// pairs with sidecar line N. Any mismatch is treated as corruption and
// triggers a full rebuild rather than an error to the caller.
package index

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"briefsmith/internal/corpus"
	"briefsmith/internal/embedding"
	"briefsmith/internal/logging"
)

const (
	vectorsDBName  = "vectors.db"
	metaFileName   = "chunks_meta.jsonl"
	embedBatchSize = 32
	embedWorkers   = 4
)

// Metadata is the per-chunk metadata persisted in the JSONL sidecar.
type Metadata struct {
	SourceID       string `json:"source_id"`
	SourceName     string `json:"source_name"`
	SourcePath     string `json:"source_path"`
	DocID          string `json:"doc_id"`
	ChunkID        int    `json:"chunk_id"`
	LineStart      int    `json:"line_start"`
	LineEnd        int    `json:"line_end"`
	SectionHeading string `json:"section_heading,omitempty"`
	SourceTitle    string `json:"source_title,omitempty"`
	Locator        string `json:"locator"`
}

// metaRow is one line of the JSONL sidecar.
type metaRow struct {
	PageContent string   `json:"page_content"`
	Metadata    Metadata `json:"metadata"`
}

// Entry pairs a chunk's embedding with its metadata row.
type Entry struct {
	Content   string
	Embedding []float32
	Meta      Metadata
}

// Handle is an immutable, loaded index generation. Concurrent reads are safe
// without locking; a rebuild produces a new Handle.
type Handle struct {
	entries []Entry
}

// NewHandle wraps pre-built entries in a handle. Callers injecting a fake
// index (tests, in-memory use) go through here.
func NewHandle(entries []Entry) *Handle {
	return &Handle{entries: entries}
}

// Len returns the number of indexed chunks.
func (h *Handle) Len() int { return len(h.entries) }

// Entry returns the entry at row i.
func (h *Handle) Entry(i int) Entry { return h.entries[i] }

// Vectors returns the embedding matrix in row order.
func (h *Handle) Vectors() [][]float32 {
	out := make([][]float32, len(h.entries))
	for i := range h.entries {
		out[i] = h.entries[i].Embedding
	}
	return out
}

// Build chunks the corpus, embeds every chunk, persists both artifacts, and
// returns the loaded handle. A missing corpus directory propagates.
func Build(ctx context.Context, corpusDir, indexDir string, engine embedding.Engine, chunkSize, chunkOverlap int) (*Handle, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Build")
	defer timer.Stop()

	chunks, err := corpus.LoadAndChunk(corpusDir, chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("corpus %s produced no chunks", corpusDir)
	}

	vectors, err := embedChunks(ctx, engine, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed corpus: %w", err)
	}

	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{
			Content:   c.Text,
			Embedding: vectors[i],
			Meta: Metadata{
				SourceID:       c.SourceID,
				SourceName:     c.SourceName,
				SourcePath:     c.SourcePath,
				DocID:          c.DocID,
				ChunkID:        c.Ordinal,
				LineStart:      c.LineStart,
				LineEnd:        c.LineEnd,
				SectionHeading: c.Heading,
				SourceTitle:    c.Title,
				Locator:        c.Locator,
			},
		}
	}

	if err := persist(indexDir, entries); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryIndex).Info("Built index: %d chunks -> %s", len(entries), indexDir)
	return &Handle{entries: entries}, nil
}

// embedChunks embeds chunk texts in bounded-parallel batches, preserving
// chunk order in the result.
func embedChunks(ctx context.Context, engine embedding.Engine, chunks []corpus.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for start := 0; start < len(chunks); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}
			batch, err := engine.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("batch [%d:%d]: %w", start, end, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// persist writes both artifacts atomically enough for single-writer use:
// fresh files replace the old generation only after both writes succeed.
func persist(indexDir string, entries []Entry) error {
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	dbTmp := filepath.Join(indexDir, vectorsDBName+".tmp")
	metaTmp := filepath.Join(indexDir, metaFileName+".tmp")
	os.Remove(dbTmp)

	if err := writeVectorsDB(dbTmp, entries); err != nil {
		return err
	}
	if err := writeMetaFile(metaTmp, entries); err != nil {
		return err
	}

	if err := os.Rename(dbTmp, filepath.Join(indexDir, vectorsDBName)); err != nil {
		return fmt.Errorf("failed to replace vector artifact: %w", err)
	}
	if err := os.Rename(metaTmp, filepath.Join(indexDir, metaFileName)); err != nil {
		return fmt.Errorf("failed to replace metadata sidecar: %w", err)
	}
	return nil
}

func writeVectorsDB(path string, entries []Entry) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open vector db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		embedding TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create vectors table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO vectors (source_id, embedding) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		embeddingJSON, err := json.Marshal(e.Embedding)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		if _, err := stmt.Exec(e.Meta.SourceID, string(embeddingJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert vector: %w", err)
		}
	}
	return tx.Commit()
}

func writeMetaFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metadata sidecar: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(metaRow{PageContent: e.Content, Metadata: e.Meta}); err != nil {
			return fmt.Errorf("failed to write metadata row: %w", err)
		}
	}
	return w.Flush()
}

// Load reads an existing index generation. It fails when either artifact is
// missing, fails to deserialize, or the row counts disagree; callers treat
// any Load failure as a rebuild trigger.
func Load(indexDir string) (*Handle, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Load")
	defer timer.Stop()

	dbPath := filepath.Join(indexDir, vectorsDBName)
	metaPath := filepath.Join(indexDir, metaFileName)

	vectors, vecSourceIDs, err := readVectorsDB(dbPath)
	if err != nil {
		return nil, err
	}
	rows, err := readMetaFile(metaPath)
	if err != nil {
		return nil, err
	}

	// Lock-step invariant: same row count, same identity, same order.
	if len(vectors) != len(rows) {
		return nil, fmt.Errorf("index artifacts out of sync: %d vectors vs %d metadata rows", len(vectors), len(rows))
	}
	for i := range rows {
		if vecSourceIDs[i] != rows[i].Metadata.SourceID {
			return nil, fmt.Errorf("index artifacts out of sync at row %d: %q vs %q",
				i, vecSourceIDs[i], rows[i].Metadata.SourceID)
		}
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Content:   r.PageContent,
			Embedding: vectors[i],
			Meta:      r.Metadata,
		}
	}

	logging.IndexDebug("Loaded index with %d entries from %s", len(entries), indexDir)
	return &Handle{entries: entries}, nil
}

func readVectorsDB(path string) ([][]float32, []string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("missing vector artifact: %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT source_id, embedding FROM vectors ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read vectors: %w", err)
	}
	defer rows.Close()

	var vectors [][]float32
	var sourceIDs []string
	for rows.Next() {
		var sourceID, embeddingJSON string
		if err := rows.Scan(&sourceID, &embeddingJSON); err != nil {
			return nil, nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			return nil, nil, fmt.Errorf("corrupt embedding at row %d: %w", len(vectors), err)
		}
		vectors = append(vectors, vec)
		sourceIDs = append(sourceIDs, sourceID)
	}
	return vectors, sourceIDs, rows.Err()
}

func readMetaFile(path string) ([]metaRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("missing metadata sidecar: %s: %w", path, err)
	}
	defer f.Close()

	var out []metaRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row metaRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("corrupt metadata row %d: %w", len(out), err)
		}
		out = append(out, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ensure loads the index when valid artifacts exist, otherwise rebuilds from
// the corpus. Rebuild-on-corruption is a required resilience property: a
// broken artifact never surfaces to the caller as an error.
func Ensure(ctx context.Context, corpusDir, indexDir string, engine embedding.Engine, chunkSize, chunkOverlap int, forceRebuild bool) (*Handle, error) {
	if !forceRebuild {
		h, err := Load(indexDir)
		if err == nil {
			return h, nil
		}
		logging.Get(logging.CategoryIndex).Warn("Index load failed, rebuilding: %v", err)
	}
	return Build(ctx, corpusDir, indexDir, engine, chunkSize, chunkOverlap)
}
