// Package tasks maps a task kind to its research plan: the retrieval
// strategy (query augmentation, multiple search passes, forced inclusion)
// and an optional postprocess hook that injects a synthetic evidence note.
package tasks

import "strings"

// Kind enumerates the known task kinds. Unknown task keys resolve to
// KindDefault, which keeps dispatch closed without rejecting free-form
// task requests.
type Kind int

const (
	KindDefault Kind = iota
	KindClientUpdateEmail
	KindTopRisks
	KindTop5RisksStrict
	KindCompareApproaches
	KindExtractDeadlines
	KindDraftConfluencePage
)

// Task keys as they appear in invocations and eval cases.
const (
	keyClientUpdateEmail   = "client_update_email"
	keyTopRisks            = "top_risks_mitigations"
	keyTop5RisksStrict     = "top5_risks_mitigations_strict"
	keyCompareApproaches   = "compare_approaches"
	keyExtractDeadlines    = "extract_deadlines_and_owners"
	keyDraftConfluencePage = "draft_confluence_page"
)

// ParseKind resolves a raw task key to a Kind. Empty or unrecognized keys
// become KindDefault.
func ParseKind(key string) Kind {
	switch strings.TrimSpace(key) {
	case keyClientUpdateEmail:
		return KindClientUpdateEmail
	case keyTopRisks:
		return KindTopRisks
	case keyTop5RisksStrict:
		return KindTop5RisksStrict
	case keyCompareApproaches:
		return KindCompareApproaches
	case keyExtractDeadlines:
		return KindExtractDeadlines
	case keyDraftConfluencePage:
		return KindDraftConfluencePage
	default:
		return KindDefault
	}
}

// String returns the canonical task key for the kind.
func (k Kind) String() string {
	switch k {
	case KindClientUpdateEmail:
		return keyClientUpdateEmail
	case KindTopRisks:
		return keyTopRisks
	case KindTop5RisksStrict:
		return keyTop5RisksStrict
	case KindCompareApproaches:
		return keyCompareApproaches
	case KindExtractDeadlines:
		return keyExtractDeadlines
	case KindDraftConfluencePage:
		return keyDraftConfluencePage
	default:
		return "default"
	}
}

// Deterministic reports whether the kind drafts through a deterministic
// extraction writer instead of the generative writer.
func (k Kind) Deterministic() bool {
	switch k {
	case KindCompareApproaches, KindExtractDeadlines, KindTop5RisksStrict:
		return true
	default:
		return false
	}
}
