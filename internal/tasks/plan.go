package tasks

import (
	"context"

	"briefsmith/internal/retrieval"
)

// Searcher is the slice of the retrieval engine that plans consume.
// Tests substitute a fake.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, mustInclude string, overfetch int) ([]retrieval.Record, error)
}

// InjectedNote is a synthetic evidence note produced by a plan's
// postprocess hook. The researcher prepends it to the note list.
type InjectedNote struct {
	Claim    string
	SourceID string
	Quote    string
	Location string
}

// Plan binds a task kind to its retrieval strategy and optional
// postprocess enrichment.
type Plan struct {
	Kind        Kind
	ActionLabel string
	Retrieve    func(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error)

	// Postprocess, when non-nil, is best-effort enrichment run after note
	// normalization. Failures are reported to the caller, which logs and
	// ignores them; they never fail the pipeline.
	Postprocess func(corpusDir string) (*InjectedNote, error)
}

// PlanFor returns the research plan for a kind. The mapping is exhaustive
// over the closed Kind enumeration.
func PlanFor(kind Kind) Plan {
	switch kind {
	case KindCompareApproaches:
		return Plan{
			Kind:        kind,
			ActionLabel: "Vector retrieval (+forced technical_decisions.md + injected Option A/B anchor)",
			Retrieve:    retrieveCompare,
			Postprocess: postprocessCompare,
		}
	case KindTop5RisksStrict:
		return Plan{
			Kind:        kind,
			ActionLabel: "Vector retrieval (boosted for risks.md)",
			Retrieve:    retrieveTop5RisksStrict,
		}
	case KindClientUpdateEmail:
		return Plan{
			Kind:        kind,
			ActionLabel: "Vector retrieval (client update email)",
			Retrieve:    retrieveClientUpdateEmail,
		}
	case KindTopRisks:
		return Plan{
			Kind:        kind,
			ActionLabel: "Vector retrieval (top risks + mitigations)",
			Retrieve:    retrieveTopRisks,
		}
	case KindExtractDeadlines:
		return Plan{
			Kind:        kind,
			ActionLabel: "Vector retrieval (deadlines + owners)",
			Retrieve:    retrieveDeadlines,
		}
	case KindDraftConfluencePage:
		return Plan{
			Kind:        kind,
			ActionLabel: "Vector retrieval (confluence page)",
			Retrieve:    retrieveConfluence,
		}
	default:
		return Plan{
			Kind:        KindDefault,
			ActionLabel: "Vector retrieval",
			Retrieve:    retrieveDefault,
		}
	}
}

func retrieveDefault(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	return s.Search(ctx, query, 8, "", 40)
}

func retrieveClientUpdateEmail(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	return s.Search(ctx, query, 10, "", 60)
}

func retrieveConfluence(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	return s.Search(ctx, query, 14, "", 100)
}

func retrieveTopRisks(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	var results []retrieval.Record

	primary, err := s.Search(ctx, query, 12, "", 80)
	if err != nil {
		return nil, err
	}
	results = append(results, primary...)

	aux, err := s.Search(ctx, "risk blocker mitigation risks register", 10, "", 80)
	if err != nil {
		return nil, err
	}
	results = append(results, aux...)

	results = retrieval.DedupeKeepOrder(results)
	return capResults(results, 20), nil
}

func retrieveDeadlines(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	queries := []struct {
		q    string
		topK int
	}{
		{query, 12},
		{"Owner Due Date Week action item status", 12},
		{"deadline due by responsible owner", 10},
	}

	var results []retrieval.Record
	for _, pass := range queries {
		recs, err := s.Search(ctx, pass.q, pass.topK, "", 80)
		if err != nil {
			return nil, err
		}
		results = append(results, recs...)
	}

	results = retrieval.DedupeKeepOrder(results)
	return capResults(results, 25), nil
}

// retrieveTop5RisksStrict boosts recall for the risks register with several
// forced-inclusion passes before one broad pass.
func retrieveTop5RisksStrict(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	passes := []struct {
		q           string
		topK        int
		mustInclude string
		overfetch   int
	}{
		{query, 18, "risks.md", 120},
		{"Risks Register Severity Probability Impact Mitigation risks.md", 12, "risks.md", 120},
		{"DB Migration Delay Vendor Credential Delay Security Review risks.md", 12, "risks.md", 120},
		{"Onboarding Documentation Gaps Pricing Sensitivity Churn risks.md", 12, "risks.md", 120},
		{"risk blocked vendor access integration tests security checklist", 10, "", 80},
	}

	var boosted []retrieval.Record
	for _, pass := range passes {
		recs, err := s.Search(ctx, pass.q, pass.topK, pass.mustInclude, pass.overfetch)
		if err != nil {
			return nil, err
		}
		boosted = append(boosted, recs...)
	}

	boosted = retrieval.DedupeKeepOrder(boosted)
	return capResults(boosted, 30), nil
}

func retrieveCompare(ctx context.Context, s Searcher, query string) ([]retrieval.Record, error) {
	results, err := s.Search(ctx, query, 8, "technical_decisions.md", 40)
	if err != nil {
		return nil, err
	}

	forced, err := s.Search(ctx,
		"Current Recommendation Week 12 Option A In-House contingency Week 16 technical_decisions.md",
		3, "technical_decisions.md", 20)
	if err != nil {
		return nil, err
	}

	merged := retrieval.DedupeKeepOrder(append(results, forced...))
	return capResults(merged, 12), nil
}

func capResults(results []retrieval.Record, n int) []retrieval.Record {
	if len(results) > n {
		return results[:n]
	}
	return results
}
