package retrieval

import "strings"

// contentKeyLen is the content-prefix length used as the dedupe key when a
// record has no source id.
const contentKeyLen = 80

// DedupeKeepOrder removes duplicate records while preserving first-seen
// order. The key is the source id when present, otherwise a fixed-length
// content prefix. Records with neither are dropped.
func DedupeKeepOrder(results []Record) []Record {
	merged := make([]Record, 0, len(results))
	seen := make(map[string]bool, len(results))

	for _, r := range results {
		key := strings.TrimSpace(r.SourceID)
		if key == "" {
			content := strings.TrimSpace(r.Content)
			if len(content) > contentKeyLen {
				content = content[:contentKeyLen]
			}
			key = strings.TrimSpace(content)
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, r)
	}

	return merged
}
