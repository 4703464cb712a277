package corpus

import (
	"fmt"
	"strings"

	"briefsmith/internal/logging"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// Chunk is a contiguous slice of a source document with locator metadata.
// Chunks never span document boundaries and are immutable once built;
// SourceID is unique within an index generation.
type Chunk struct {
	Text       string
	DocID      string
	SourceName string
	SourcePath string
	Title      string
	Ordinal    int    // Zero-based index within the document
	LineStart  int    // 1-based
	LineEnd    int    // 1-based, inclusive
	Heading    string // Nearest markdown heading at or before LineStart, may be empty
	Locator    string // Human-readable: chunk ordinal, heading, line range
	SourceID   string // "<DocID>#chunk_<Ordinal>"
}

// ChunkDocuments splits documents into overlapping fixed-size windows and
// attaches chunk-level metadata. Chunking the same corpus with unchanged
// content and parameters yields identical SourceIDs and locators.
func ChunkDocuments(docs []Document, chunkSize, chunkOverlap int) []Chunk {
	timer := logging.StartTimer(logging.CategoryCorpus, "ChunkDocuments")
	defer timer.Stop()

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			// Windows smaller than the default overlap still need
			// overlap < size for the scan to advance.
			chunkOverlap = chunkSize / 4
		}
	}

	var chunks []Chunk
	for _, doc := range docs {
		var headings []heading
		if doc.FileExt == ".md" {
			headings = extractHeadings(doc.Text)
		}

		runes := []rune(doc.Text)
		ordinal := 0
		for start := 0; start < len(runes); {
			end := start + chunkSize
			if end > len(runes) {
				end = len(runes)
			}

			c := Chunk{
				Text:       string(runes[start:end]),
				DocID:      doc.DocID,
				SourceName: doc.SourceName,
				SourcePath: doc.SourcePath,
				Title:      doc.Title,
				Ordinal:    ordinal,
				SourceID:   fmt.Sprintf("%s#chunk_%d", doc.DocID, ordinal),
			}

			// Line range via newline counts up to the window's offsets.
			c.LineStart = countNewlines(runes[:start]) + 1
			c.LineEnd = countNewlines(runes[:end]) + 1

			// Nearest-preceding heading: last heading whose line <= LineStart.
			for _, h := range headings {
				if h.Line <= c.LineStart {
					c.Heading = h.Text
				} else {
					break
				}
			}

			c.Locator = buildLocator(c, doc.FileExt)
			chunks = append(chunks, c)
			ordinal++

			if end == len(runes) {
				break
			}
			start = end - chunkOverlap
		}
	}

	logging.Get(logging.CategoryCorpus).Info("Chunked %d documents into %d chunks", len(docs), len(chunks))
	return chunks
}

// buildLocator combines chunk ordinal, section heading, and line range.
// A document with no headings yields a locator with only ordinal and lines.
func buildLocator(c Chunk, fileExt string) string {
	parts := []string{fmt.Sprintf("chunk %d", c.Ordinal)}
	if fileExt == ".md" && c.Heading != "" {
		parts = append(parts, "## "+c.Heading)
	}
	parts = append(parts, fmt.Sprintf("lines %d–%d", c.LineStart, c.LineEnd))
	return strings.Join(parts, " — ")
}

func countNewlines(runes []rune) int {
	n := 0
	for _, r := range runes {
		if r == '\n' {
			n++
		}
	}
	return n
}

// LoadAndChunk loads every supported document under root and chunks it with
// the given parameters.
func LoadAndChunk(root string, chunkSize, chunkOverlap int) ([]Chunk, error) {
	docs, err := LoadDocuments(root)
	if err != nil {
		return nil, err
	}
	return ChunkDocuments(docs, chunkSize, chunkOverlap), nil
}
