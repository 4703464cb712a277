package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefsmith/internal/retrieval"
	"briefsmith/internal/state"
)

type fakeSearcher struct {
	results []retrieval.Record
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, topK int, _ string, _ int) ([]retrieval.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

type fakeLLM struct {
	reply string
	err   error
	calls int

	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeLLM) CompleteWithSystem(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func record(sourceID, content string) retrieval.Record {
	return retrieval.Record{
		Content:    content,
		SourceID:   sourceID,
		SourceName: strings.TrimPrefix(strings.SplitN(sourceID, "#", 2)[0], "doc:"),
		Locator:    "chunk 0 — lines 1–5",
		Score:      0.9,
	}
}

func newPipeline(s *fakeSearcher, llm *fakeLLM) *Pipeline {
	return New(s, llm, "")
}

func TestRunTask_ApprovedGenerativePath(t *testing.T) {
	s := &fakeSearcher{results: []retrieval.Record{
		record("doc:roadmap.md#chunk_0", "Q3 goal: launch onboarding revamp."),
	}}
	llm := &fakeLLM{reply: "## Update\n- Launch on track (doc:roadmap.md#chunk_0)\n\n## Citations\n- (doc:roadmap.md#chunk_0)"}

	st := newPipeline(s, llm).RunTask(context.Background(), "Summarize progress", "")

	require.NotEmpty(t, st.FinalOutput)
	assert.False(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
	assert.Contains(t, st.FinalOutput, "## Verification")
	assert.Contains(t, st.FinalOutput, llm.reply)
	assert.Empty(t, st.VerificationNotes)
	assert.NotEmpty(t, st.Meta["run_id"])

	require.Len(t, st.Trace, 4)
	assert.Equal(t, []string{"plan", "research", "draft", "verify"},
		[]string{st.Trace[0].Step, st.Trace[1].Step, st.Trace[2].Step, st.Trace[3].Step})
	assert.Equal(t, "Final approved", st.Trace[3].Outcome)
}

func TestRunTask_EmptyTaskShortCircuits(t *testing.T) {
	s := &fakeSearcher{}
	llm := &fakeLLM{}

	st := newPipeline(s, llm).RunTask(context.Background(), "   ", "")

	assert.Zero(t, s.calls, "retrieval must not run for an empty task")
	assert.Zero(t, llm.calls, "generation must not run without evidence")
	require.Len(t, st.ResearchNotes, 1)
	assert.Equal(t, state.SentinelClaim, st.ResearchNotes[0].Claim)
	assert.Empty(t, st.ResearchNotes[0].Citations)

	assert.True(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
	require.Len(t, st.VerificationNotes, 1)
	assert.Contains(t, st.Trace[3].Outcome, "Blocked final: 1 issue(s)")
}

func TestRunTask_RetrievalErrorDegrades(t *testing.T) {
	s := &fakeSearcher{err: errors.New("index unavailable: boom")}
	llm := &fakeLLM{}

	st := newPipeline(s, llm).RunTask(context.Background(), "Summarize progress", "")

	require.Len(t, st.ResearchNotes, 1)
	assert.Empty(t, st.ResearchNotes[0].Citations)
	assert.Contains(t, st.Trace[1].Outcome, "Retrieval error:")
	assert.Zero(t, llm.calls)
	assert.True(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
}

func TestRunTask_ZeroResultsDegrades(t *testing.T) {
	s := &fakeSearcher{}
	llm := &fakeLLM{}

	st := newPipeline(s, llm).RunTask(context.Background(), "Summarize progress", "")

	assert.Equal(t, "No relevant documents retrieved", st.Trace[1].Outcome)
	assert.True(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
}

func TestRunTask_GenerationErrorBlocked(t *testing.T) {
	s := &fakeSearcher{results: []retrieval.Record{
		record("doc:roadmap.md#chunk_0", "Q3 goal: launch onboarding revamp."),
	}}
	llm := &fakeLLM{err: errors.New("rate limited")}

	st := newPipeline(s, llm).RunTask(context.Background(), "Summarize progress", "")

	assert.Contains(t, st.Trace[2].Outcome, "Generation error:")
	assert.True(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
}

func TestRunTask_DraftWithoutMarkersBlocked(t *testing.T) {
	s := &fakeSearcher{results: []retrieval.Record{
		record("doc:roadmap.md#chunk_0", "Q3 goal: launch onboarding revamp."),
	}}
	llm := &fakeLLM{reply: "## Update\n- Everything is fine, trust me."}

	st := newPipeline(s, llm).RunTask(context.Background(), "Summarize progress", "")

	assert.Empty(t, st.Draft, "blocked draft must be wiped")
	assert.True(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
	require.Len(t, st.VerificationNotes, 1)
	assert.Contains(t, st.VerificationNotes[0], "citation marker")
}

// Grounding soundness: a final output without the refusal phrase implies
// cited notes and a marker-bearing prior draft.
func TestRunTask_GroundingSoundness(t *testing.T) {
	scenarios := []struct {
		name    string
		s       *fakeSearcher
		llm     *fakeLLM
		task    string
		taskKey string
	}{
		{"approved", &fakeSearcher{results: []retrieval.Record{record("doc:a.md#chunk_0", "alpha")}},
			&fakeLLM{reply: "ok (doc:a.md#chunk_0)"}, "task", ""},
		{"no evidence", &fakeSearcher{}, &fakeLLM{reply: "ok"}, "task", ""},
		{"empty task", &fakeSearcher{}, &fakeLLM{}, "", ""},
		{"uncited draft", &fakeSearcher{results: []retrieval.Record{record("doc:a.md#chunk_0", "alpha")}},
			&fakeLLM{reply: "no markers here"}, "task", ""},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			st := newPipeline(sc.s, sc.llm).RunTask(context.Background(), sc.task, sc.taskKey)

			if !strings.Contains(st.FinalOutput, RefusalPhrase) {
				assert.True(t, state.HasAnyCitations(st.ResearchNotes))
				assert.True(t, hasCitationMarker(st.Draft))
			}
		})
	}
}

func TestResearch_NotesNormalized(t *testing.T) {
	long := strings.Repeat("evidence text ", 30)
	s := &fakeSearcher{results: []retrieval.Record{
		{Content: long, SourceID: "doc:a.md#chunk_0", SourceName: "a.md", Locator: "chunk 0 — lines 1–9"},
		{Content: "   ", SourceID: "doc:b.md#chunk_0"},
	}}

	p := newPipeline(s, &fakeLLM{})
	st := state.New("find evidence", "")
	p.research(context.Background(), st)

	require.Len(t, st.ResearchNotes, 1)
	n := st.ResearchNotes[0]
	assert.Equal(t, strings.TrimSpace(long), n.Claim)
	require.Len(t, n.Citations, 1)
	assert.Equal(t, "doc:a.md#chunk_0", n.Citations[0].SourceID)
	assert.Equal(t, "chunk 0 — lines 1–9", n.Citations[0].Location)
	assert.LessOrEqual(t, len(n.Citations[0].Quote), maxQuoteLen+3)
	assert.True(t, strings.HasSuffix(n.Citations[0].Quote, "..."))
	assert.NotContains(t, n.Citations[0].Quote, "\n")

	debug, ok := st.Meta["retrieval_debug"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "find evidence", debug["query"])
	assert.Equal(t, 1, debug["retrieved_count"])
}

func TestResearch_QuoteTruncationKeepsValidUTF8(t *testing.T) {
	// Typographic dashes are three bytes each, so a byte-indexed cut would
	// split one at the quote boundary.
	long := strings.Repeat("–", maxQuoteLen+40)
	s := &fakeSearcher{results: []retrieval.Record{
		{Content: long, SourceID: "doc:a.md#chunk_0", Locator: "chunk 0"},
	}}

	p := newPipeline(s, &fakeLLM{})
	st := state.New("find evidence", "")
	p.research(context.Background(), st)

	require.Len(t, st.ResearchNotes, 1)
	quote := st.ResearchNotes[0].Citations[0].Quote
	assert.True(t, utf8.ValidString(quote))
	assert.Equal(t, maxQuoteLen+3, utf8.RuneCountInString(quote))
	assert.True(t, strings.HasSuffix(quote, "..."))
}

func TestResearch_CompareInjectsAnchorNote(t *testing.T) {
	corpusDir := t.TempDir()
	doc := "# Technical Decisions\n\n### Option A:\n- Full control\n- Lower costs\n\n### Option B:\n- Faster delivery\n\n## Current Recommendation\nOption A.\n"
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "technical_decisions.md"), []byte(doc), 0644))

	s := &fakeSearcher{results: []retrieval.Record{
		record("doc:technical_decisions.md#chunk_0", "### Option A:\n- Full control"),
	}}
	p := New(s, &fakeLLM{}, corpusDir)

	st := state.New("compare options", "compare_approaches")
	p.research(context.Background(), st)

	require.NotEmpty(t, st.ResearchNotes)
	first := st.ResearchNotes[0]
	require.Len(t, first.Citations, 1)
	assert.Equal(t, "doc:technical_decisions.md#anchor_options", first.Citations[0].SourceID)
	assert.True(t, strings.HasPrefix(first.Claim, "### Option A:"))
}

func TestResearch_PostprocessFailureKeepsNotes(t *testing.T) {
	// Missing corpus document: injection fails, retrieved notes survive.
	s := &fakeSearcher{results: []retrieval.Record{
		record("doc:technical_decisions.md#chunk_0", "### Option A:\n- Full control"),
	}}
	p := New(s, &fakeLLM{}, t.TempDir())

	st := state.New("compare options", "compare_approaches")
	p.research(context.Background(), st)

	require.Len(t, st.ResearchNotes, 1)
	assert.Equal(t, "doc:technical_decisions.md#chunk_0", st.ResearchNotes[0].Citations[0].SourceID)
	assert.Equal(t, "Retrieved 1 chunks", st.Trace[0].Outcome)
}

func TestDraft_DeterministicDispatch(t *testing.T) {
	llm := &fakeLLM{}
	p := newPipeline(&fakeSearcher{}, llm)

	cases := []struct {
		taskKey string
		claim   string
		source  string
		marker  string
	}{
		{"top5_risks_mitigations_strict",
			"R-001: Vendor delay\nSeverity: High\nImpact: Slip\nMitigation: Buffer.",
			"doc:risks.md#chunk_0", "Top 5 Risks"},
		{"extract_deadlines_and_owners",
			"| Priority | Item | Owner | Due Date | Status |\n|---|---|---|---|---|\n| P1 | Ship | Dana | Week 6 | Open |",
			"doc:action_items.md#chunk_0", "Action Items"},
		{"compare_approaches",
			"### Option A:\n- Full control\n- Lower costs\n\n### Option B:\n- Faster delivery\n- Scaling costs",
			"doc:technical_decisions.md#anchor_options", "Option A vs Option B"},
	}

	for _, tc := range cases {
		t.Run(tc.taskKey, func(t *testing.T) {
			st := state.New("task", tc.taskKey)
			st.ResearchNotes = []state.ResearchNote{{
				Claim:     tc.claim,
				Citations: []state.Citation{{SourceID: tc.source, Quote: "q", Location: "l"}},
			}}

			p.draft(context.Background(), st)

			assert.Contains(t, st.Draft, tc.marker)
			assert.Zero(t, llm.calls, "deterministic tasks must not call the LLM")
		})
	}
}

func TestDraft_EvidenceBlockShape(t *testing.T) {
	llm := &fakeLLM{reply: "ok (doc:a.md#chunk_0)"}
	p := newPipeline(&fakeSearcher{}, llm)

	st := state.New("summarize", "")
	st.ResearchNotes = []state.ResearchNote{
		{Claim: "first claim", Citations: []state.Citation{{SourceID: "doc:a.md#chunk_0", Location: "chunk 0 — lines 1–3"}}},
		{Claim: "uncited", Citations: nil},
		{Claim: "second claim", Citations: []state.Citation{{SourceID: "doc:b.md#chunk_1", Location: "chunk 1 — lines 4–8"}}},
	}

	p.draft(context.Background(), st)

	require.Equal(t, 1, llm.calls)
	assert.Contains(t, llm.lastUser, "[1] first claim\n(Source: doc:a.md#chunk_0 | chunk 0 — lines 1–3)")
	assert.Contains(t, llm.lastUser, "[3] second claim\n(Source: doc:b.md#chunk_1 | chunk 1 — lines 4–8)")
	assert.NotContains(t, llm.lastUser, "uncited")
	assert.Contains(t, llm.lastSystem, "grounded business analyst")
}

func TestDraft_LockedTemplates(t *testing.T) {
	note := state.ResearchNote{
		Claim:     "evidence",
		Citations: []state.Citation{{SourceID: "doc:a.md#chunk_0", Location: "chunk 0"}},
	}

	cases := []struct {
		taskKey string
		want    string
	}{
		{"client_update_email", "Progress, Risks, Next Steps"},
		{"draft_confluence_page", "Goals, What's Done, Open Risks, Next Steps, Key Decisions"},
		{"", "Use clear headings"},
	}

	for _, tc := range cases {
		name := tc.taskKey
		if name == "" {
			name = "default"
		}
		t.Run(name, func(t *testing.T) {
			llm := &fakeLLM{reply: "ok (doc:a.md#chunk_0)"}
			p := newPipeline(&fakeSearcher{}, llm)

			st := state.New("task", tc.taskKey)
			st.ResearchNotes = []state.ResearchNote{note}

			p.draft(context.Background(), st)

			assert.Contains(t, llm.lastUser, tc.want)
			assert.Contains(t, llm.lastUser, "Do NOT use numeric citation style")
		})
	}
}

// Scenario from the design review: a single uncited note must block with
// exactly one problem, regardless of task key.
func TestVerify_SingleUncitedNote(t *testing.T) {
	for _, taskKey := range []string{"", "compare_approaches", "client_update_email"} {
		t.Run(fmt.Sprintf("key=%q", taskKey), func(t *testing.T) {
			p := newPipeline(&fakeSearcher{}, &fakeLLM{})
			st := state.New("task", taskKey)
			st.ResearchNotes = []state.ResearchNote{{Claim: "x", Citations: []state.Citation{}}}
			st.Draft = "some draft"

			p.verify(st)

			assert.True(t, strings.HasPrefix(st.FinalOutput, RefusalPhrase))
			assert.Len(t, st.VerificationNotes, 1)
			assert.Empty(t, st.Draft)
		})
	}
}

func TestVerify_ApprovedAppendsFooter(t *testing.T) {
	p := newPipeline(&fakeSearcher{}, &fakeLLM{})
	st := state.New("task", "")
	st.ResearchNotes = []state.ResearchNote{{
		Claim:     "x",
		Citations: []state.Citation{{SourceID: "doc:a.md#chunk_0"}},
	}}
	st.Draft = "All good (doc:a.md#chunk_0)"

	p.verify(st)

	assert.Empty(t, st.VerificationNotes)
	assert.True(t, strings.HasPrefix(st.FinalOutput, st.Draft))
	assert.Contains(t, st.FinalOutput, "## Verification")
	assert.Equal(t, "Final approved", st.Trace[0].Outcome)
}

func TestHasCitationMarker(t *testing.T) {
	assert.True(t, hasCitationMarker("see (doc:a.md#chunk_0)"))
	assert.True(t, hasCitationMarker("see doc:a.md"))
	assert.True(t, hasCitationMarker("anchored at #chunk_3"))
	assert.False(t, hasCitationMarker("no references at all"))
	assert.False(t, hasCitationMarker(""))
}
