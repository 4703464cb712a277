package agent

import (
	"context"
	"fmt"
	"strings"

	"briefsmith/internal/logging"
	"briefsmith/internal/retrieval"
	"briefsmith/internal/state"
	"briefsmith/internal/tasks"
)

// maxQuoteLen bounds citation quotes; longer quotes are cut and suffixed
// with an ellipsis.
const maxQuoteLen = 260

func (p *Pipeline) research(ctx context.Context, st *state.State) {
	query := resolveQuery(st)

	if query == "" {
		st.ResearchNotes = []state.ResearchNote{state.SentinelNote()}
		st.AddTrace("research", "researcher", "Vector document retrieval", "Failed: empty query")
		return
	}

	plan := tasks.PlanFor(tasks.ParseKind(st.TaskKey))

	results, err := plan.Retrieve(ctx, p.searcher, query)
	if err != nil {
		st.ResearchNotes = []state.ResearchNote{state.SentinelNote()}
		st.AddTrace("research", "researcher", plan.ActionLabel,
			fmt.Sprintf("Retrieval error: %s", truncate(err.Error(), 160)))
		return
	}

	var outcome string
	if len(results) == 0 {
		st.ResearchNotes = []state.ResearchNote{state.SentinelNote()}
		outcome = "No relevant documents retrieved"
	} else if notes := normalizeResults(results); len(notes) > 0 {
		st.ResearchNotes = notes
		outcome = fmt.Sprintf("Retrieved %d chunks", len(notes))
	} else {
		st.ResearchNotes = []state.ResearchNote{state.SentinelNote()}
		outcome = "Retrieved chunks but all were empty after normalization"
	}

	// Best-effort enrichment. A failed injection leaves the notes as
	// retrieval produced them.
	if plan.Postprocess != nil {
		if injected, perr := plan.Postprocess(p.corpusDir); perr != nil {
			logging.Agent("postprocess failed for %s: %v", plan.Kind, perr)
		} else if injected != nil {
			note := state.ResearchNote{
				Claim: injected.Claim,
				Citations: []state.Citation{{
					SourceID: injected.SourceID,
					Quote:    injected.Quote,
					Location: injected.Location,
				}},
			}
			st.ResearchNotes = append([]state.ResearchNote{note}, st.ResearchNotes...)
		}
	}

	st.Meta["retrieval_debug"] = map[string]any{
		"task_key":        st.TaskKey,
		"query":           query,
		"retrieved_count": len(st.ResearchNotes),
		"action_label":    plan.ActionLabel,
		"has_postprocess": plan.Postprocess != nil,
	}

	st.AddTrace("research", "researcher", plan.ActionLabel, outcome)
}

// resolveQuery prefers the explicit task text over the raw task field.
func resolveQuery(st *state.State) string {
	if q := strings.TrimSpace(st.TaskText); q != "" {
		return q
	}
	return strings.TrimSpace(st.Task)
}

// normalizeResults converts retrieval records to research notes: claim =
// full chunk text, one citation with a truncated single-line quote.
func normalizeResults(results []retrieval.Record) []state.ResearchNote {
	var notes []state.ResearchNote

	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}

		quote := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
		if runes := []rune(quote); len(runes) > maxQuoteLen {
			quote = string(runes[:maxQuoteLen]) + "..."
		}

		notes = append(notes, state.ResearchNote{
			Claim: content,
			Citations: []state.Citation{{
				SourceID: orDefault(r.SourceID, "unknown_source"),
				Quote:    quote,
				Location: orDefault(r.Locator, "unknown location"),
			}},
		})
	}

	return notes
}

func orDefault(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
