// Package state defines the shared task state threaded through the four
// pipeline stages. Each stage writes only its own fields and may read any
// earlier field; the verifier alone may wipe the draft.
package state

// SentinelClaim is the claim text of the "no evidence" sentinel note.
const SentinelClaim = "Not found in the sources."

// Citation attaches a claim to its evidence.
type Citation struct {
	SourceID string `json:"source_id"`
	Quote    string `json:"quote"`
	Location string `json:"location"`
}

// ResearchNote is the unit passed from retrieval to drafting: a claim plus
// zero or more citations. A note with no citations is the "no evidence"
// sentinel and must never be treated as usable evidence.
type ResearchNote struct {
	Claim     string     `json:"claim"`
	Citations []Citation `json:"citations"`
}

// TraceRow is one append-only trace log entry. The shape is stable and
// consumed by callers.
type TraceRow struct {
	Step    string `json:"step"`
	Agent   string `json:"agent"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

// State is the single mutable record threaded through plan, research,
// draft, and verify. Constructed once per task invocation.
type State struct {
	Task     string `json:"task"`
	TaskKey  string `json:"task_key"`
	TaskText string `json:"task_text"`

	Plan []string `json:"plan"`

	ResearchNotes []ResearchNote `json:"research_notes"`

	Draft string `json:"draft"`

	VerificationNotes []string `json:"verification_notes"`

	FinalOutput string `json:"final_output"`

	Trace []TraceRow `json:"trace"`

	Meta map[string]any `json:"meta"`
}

// New constructs a fresh state for one task invocation.
func New(task, taskKey string) *State {
	return &State{
		Task:     task,
		TaskKey:  taskKey,
		TaskText: task,
		Meta:     make(map[string]any),
	}
}

// SentinelNote returns the "no evidence" sentinel note.
func SentinelNote() ResearchNote {
	return ResearchNote{Claim: SentinelClaim}
}

// HasAnyCitations reports whether at least one note carries a non-empty
// citation list.
func HasAnyCitations(notes []ResearchNote) bool {
	for _, n := range notes {
		if len(n.Citations) > 0 {
			return true
		}
	}
	return false
}

// AddTrace appends one trace row.
func (s *State) AddTrace(step, agent, action, outcome string) {
	s.Trace = append(s.Trace, TraceRow{Step: step, Agent: agent, Action: action, Outcome: outcome})
}
