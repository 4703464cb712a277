package agent

import (
	"fmt"
	"strings"

	"briefsmith/internal/state"
)

// RefusalPhrase opens every blocked final output.
const RefusalPhrase = "Not found in sources."

// citationMarkers is the loose marker set the verifier accepts as visible
// proof of grounding in the draft text.
var citationMarkers = []string{"doc:", "#chunk_", "(doc:"}

const approvedFooter = "\n\n---\n" +
	"## Verification\n" +
	"- Checked that at least one citation exists in retrieved evidence.\n" +
	"- Checked that the draft contains at least one citation marker.\n"

// verify enforces the two-part grounding invariant: at least one research
// note carries citations, and the draft shows at least one citation marker.
// Violations wipe the draft and substitute the refusal deliverable.
func (p *Pipeline) verify(st *state.State) {
	var problems []string

	if !state.HasAnyCitations(st.ResearchNotes) {
		problems = append(problems,
			"No citations found in research_notes. Output must be 'Not found in sources'.")
	} else if !hasCitationMarker(st.Draft) {
		problems = append(problems,
			"Draft contains no recognizable citation marker. Output must be 'Not found in sources'.")
	}

	st.VerificationNotes = problems

	var outcome string
	if len(problems) > 0 {
		st.Draft = ""
		st.FinalOutput = refusalDeliverable(problems)
		outcome = fmt.Sprintf("Blocked final: %d issue(s)", len(problems))
	} else {
		st.FinalOutput = st.Draft + approvedFooter
		outcome = "Final approved"
	}

	st.AddTrace("verify", "verifier",
		"Checked minimum grounding (citations present) and enforced no-evidence rule",
		outcome)
}

func hasCitationMarker(draft string) bool {
	for _, marker := range citationMarkers {
		if strings.Contains(draft, marker) {
			return true
		}
	}
	return false
}

func refusalDeliverable(problems []string) string {
	var b strings.Builder
	b.WriteString(RefusalPhrase)
	b.WriteString("\n\n## Deliverable Package\n\n")
	b.WriteString("### Executive Summary\n")
	b.WriteString("- Not found in sources.\n\n")
	b.WriteString("---\n## Verification\n")
	for _, p := range problems {
		b.WriteString("- " + p + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
