package agent

import (
	"context"
	"fmt"
	"strings"

	"briefsmith/internal/extract"
	"briefsmith/internal/state"
	"briefsmith/internal/tasks"
)

// noEvidenceDraft is the hard-stop artifact written when no note carries a
// citation. The generation service is never called without evidence.
const noEvidenceDraft = "## Deliverable Package\n\n" +
	"### Executive Summary\n" +
	"- Not found in the sources.\n"

func (p *Pipeline) draft(ctx context.Context, st *state.State) {
	notes := st.ResearchNotes
	kind := tasks.ParseKind(st.TaskKey)

	if !state.HasAnyCitations(notes) {
		st.Draft = noEvidenceDraft
		st.AddTrace("draft", "writer", "Draft generation", "No citations available")
		return
	}

	switch kind {
	case tasks.KindCompareApproaches:
		st.Draft = extract.BuildCompare(notes)
		st.AddTrace("draft", "writer",
			"Deterministic comparison (Option A vs Option B)",
			"Produced 2-4 bullets per option + exactly 3 grounded reasons")
		return
	case tasks.KindExtractDeadlines:
		st.Draft = extract.BuildDeadlines(notes)
		st.AddTrace("draft", "writer",
			"Deterministic extraction (deadlines + owners)",
			"Extracted rows only from explicit evidence (no invented items)")
		return
	case tasks.KindTop5RisksStrict:
		st.Draft = extract.BuildTop5StrictRisks(notes, 0)
		st.AddTrace("draft", "writer",
			"Deterministic extraction (top5 strict risks)",
			"Extracted risks from evidence (+optional pricing support when found)")
		return
	}

	evidenceBlock := buildEvidenceBlock(notes)
	if strings.TrimSpace(evidenceBlock) == "" {
		st.Draft = noEvidenceDraft
		st.AddTrace("draft", "writer", "Draft generation", "Evidence block empty after filtering")
		return
	}

	system, user := promptsFor(kind, st.Task, evidenceBlock)

	text, err := p.llm.CompleteWithSystem(ctx, system, user)
	if err != nil {
		// Degrade rather than abort; the verifier blocks the citation-free
		// draft downstream.
		st.Draft = noEvidenceDraft
		st.AddTrace("draft", "writer", "LLM grounded generation",
			fmt.Sprintf("Generation error: %s", truncate(err.Error(), 160)))
		return
	}

	st.Draft = text
	st.AddTrace("draft", "writer", "LLM grounded generation", "Draft created using evidence")
}

// buildEvidenceBlock pairs each cited note's claim with its first
// citation's source id and location.
func buildEvidenceBlock(notes []state.ResearchNote) string {
	var parts []string

	for i, n := range notes {
		if len(n.Citations) == 0 {
			continue
		}
		evidence := strings.TrimSpace(n.Claim)
		if evidence == "" {
			continue
		}

		first := n.Citations[0]
		sourceID := orDefault(first.SourceID, "unknown_source")
		location := orDefault(first.Location, "unknown location")

		parts = append(parts, fmt.Sprintf("[%d] %s\n(Source: %s | %s)", i+1, evidence, sourceID, location))
	}

	return strings.Join(parts, "\n\n")
}
