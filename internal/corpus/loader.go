// Package corpus loads raw text documents and splits them into addressable,
// locatable evidence chunks. Chunks are the atomic unit of retrieval: each
// carries a globally unique source id and a human-readable locator.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"briefsmith/internal/logging"
)

// Supported document extensions. Each file becomes one logical document.
var supportedExts = map[string]bool{
	".txt": true,
	".md":  true,
}

// Document is a whole source file prior to chunking.
type Document struct {
	Text       string
	SourcePath string
	SourceName string
	FileExt    string
	Title      string // First "# " heading of .md files, may be empty
	DocID      string // "doc:<filename>"
}

// heading is a markdown heading with its 1-based line number.
type heading struct {
	Line int
	Text string
}

// LoadDocuments recursively discovers supported files under root.
// Empty files are skipped entirely. A missing root is the one configuration
// error that propagates to the caller.
func LoadDocuments(root string) ([]Document, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("docs folder not found: %s: %w", root, err)
	}

	log := logging.Get(logging.CategoryCorpus)

	var docs []Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExts[ext] {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Skipping unreadable file %s: %v", path, err)
			return nil
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			log.Debug("Skipping empty file %s", path)
			return nil
		}

		name := filepath.Base(path)
		doc := Document{
			Text:       text,
			SourcePath: filepath.ToSlash(path),
			SourceName: name,
			FileExt:    ext,
			DocID:      "doc:" + name,
		}
		if ext == ".md" {
			doc.Title = extractTitle(text)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Loaded %d documents from %s", len(docs), root)
	return docs, nil
}

// extractTitle returns the first "# " heading, or "".
func extractTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "# ") {
			return strings.TrimSpace(stripped[2:])
		}
	}
	return ""
}

// extractHeadings returns every markdown heading with its 1-based line.
func extractHeadings(text string) []heading {
	var out []heading
	for i, line := range strings.Split(text, "\n") {
		stripped := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(stripped, "#") {
			continue
		}
		ht := strings.TrimSpace(strings.TrimLeft(stripped, "#"))
		if ht != "" {
			out = append(out, heading{Line: i + 1, Text: ht})
		}
	}
	return out
}
