package agent

import (
	"fmt"

	"briefsmith/internal/tasks"
)

// Locked prompt templates for the generative tasks. Hard formatting rules
// live here; the verifier remains the actual enforcement point.

const groundedSystemPrompt = "You are a grounded business analyst.\n" +
	"You MUST use ONLY the provided evidence.\n" +
	"If evidence is missing, write: 'Not found in sources'.\n" +
	"Do NOT invent facts.\n" +
	"Every claim must be supported by the evidence.\n"

const defaultOutputRules = "Output rules:\n" +
	"- Use clear headings\n" +
	"- Keep it concise and client-ready\n" +
	"- Include inline citations like (doc:file.md#chunk_0)\n" +
	"- Do NOT use numeric citation style like [1]\n" +
	"- End with a Citations list of the source_ids you used\n"

const clientUpdateRules = "Output rules:\n" +
	"- Write a client-ready weekly update email\n" +
	"- Use exactly these sections: Progress, Risks, Next Steps\n" +
	"- Every bullet must carry an inline citation like (doc:file.md#chunk_0)\n" +
	"- Do NOT use numeric citation style like [1]\n" +
	"- If a section has no supporting evidence, write: 'Not found in sources'\n" +
	"- End with a Citations list of the source_ids you used\n"

const confluenceRules = "Output rules:\n" +
	"- Write an internal Confluence-style page\n" +
	"- Use exactly these sections: Goals, What's Done, Open Risks, Next Steps, Key Decisions\n" +
	"- Cite each section inline like (doc:file.md#chunk_0)\n" +
	"- Do NOT use numeric citation style like [1]\n" +
	"- If a section has no supporting evidence, write: 'Not found in sources'\n" +
	"- End with a Citations list of the source_ids you used\n"

// promptsFor returns the locked system and user prompts for a generative
// task kind.
func promptsFor(kind tasks.Kind, task, evidenceBlock string) (system, user string) {
	rules := defaultOutputRules
	switch kind {
	case tasks.KindClientUpdateEmail:
		rules = clientUpdateRules
	case tasks.KindDraftConfluencePage:
		rules = confluenceRules
	}

	user = fmt.Sprintf("Task:\n%s\n\nEvidence:\n%s\n\n%s", task, evidenceBlock, rules)
	return groundedSystemPrompt, user
}
