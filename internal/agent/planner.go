// Package agent runs the four-stage pipeline over one shared task state:
// plan, research, draft, verify. Stages are strictly linear; a stage that
// hits an internal error degrades its own output to a safe sentinel and
// still advances.
package agent

import (
	"fmt"

	"briefsmith/internal/logging"
	"briefsmith/internal/state"
)

// executionPlan is the fixed, task-independent plan written by the planner.
var executionPlan = []string{
	"Clarify the user goal + required outputs (deliverable package).",
	"Retrieve relevant evidence from provided documents.",
	"Draft deliverables strictly from evidence.",
	"Verify: check citations, missing evidence, contradictions. Enforce 'Not found in sources'.",
}

func (p *Pipeline) plan(st *state.State) {
	st.Plan = append([]string(nil), executionPlan...)

	st.AddTrace("plan", "planner",
		"Created execution plan for multi-agent workflow",
		fmt.Sprintf("Plan created with %d steps", len(st.Plan)))

	logging.AgentDebug("plan: %d steps", len(st.Plan))
}
