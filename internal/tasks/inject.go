package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	compareDocName    = "technical_decisions.md"
	compareAnchorID   = "doc:technical_decisions.md#anchor_options"
	optionStartMarker = "### Option A:"
	optionEndMarker   = "## Current Recommendation"
)

// postprocessCompare reads the technical decisions document directly and
// extracts the Option A/Option B section, so the comparison writer always
// has both option blocks even if chunking boundaries shift.
func postprocessCompare(corpusDir string) (*InjectedNote, error) {
	path := filepath.Join(corpusDir, compareDocName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", compareDocName, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, fmt.Errorf("%s is empty", compareDocName)
	}

	block := extractBetween(string(raw), optionStartMarker, optionEndMarker)
	if block == "" {
		return nil, fmt.Errorf("option section markers not found in %s", compareDocName)
	}

	injected := optionStartMarker + "\n" + block

	quote := strings.ReplaceAll(injected, "\n", " ")
	if runes := []rune(quote); len(runes) > 260 {
		quote = string(runes[:260]) + "..."
	}

	return &InjectedNote{
		Claim:    injected,
		SourceID: compareAnchorID,
		Quote:    quote,
		Location: "anchor - Option A/Option B section (between '### Option A:' and '## Current Recommendation')",
	}, nil
}

// extractBetween returns the trimmed text between the first occurrence of
// start and the next occurrence of end, or "" when either marker is absent.
func extractBetween(text, start, end string) string {
	s := strings.Index(text, start)
	if s == -1 {
		return ""
	}
	s += len(start)
	e := strings.Index(text[s:], end)
	if e == -1 {
		return ""
	}
	return strings.TrimSpace(text[s : s+e])
}
