package extract

import (
	"fmt"
	"strings"

	"briefsmith/internal/state"
)

const deadlinesDocID = "doc:action_items.md"

type actionRow struct {
	priority string
	item     string
	owner    string
	dueDate  string
	status   string
	cite     string
}

// BuildDeadlines extracts action items from action_items.md evidence.
// Only markdown-table rows that explicitly carry both an Owner and a Due
// Date are included; rows are never synthesized from prose.
func BuildDeadlines(notes []state.ResearchNote) string {
	rows := parseActionRows(notes)

	if len(rows) == 0 {
		return strings.Join([]string{
			"## Deliverable Package",
			"",
			"### Executive Summary",
			"- Not found in sources.",
		}, "\n") + "\n"
	}

	var lines []string
	lines = append(lines, "## Deliverable Package\n")
	lines = append(lines, "### Executive Summary")
	lines = append(lines, "- Action items extracted that explicitly include Owner and Due Date.\n")
	lines = append(lines, "### Action Items")
	lines = append(lines, "| Priority | Item | Owner | Due Date | Status |")
	lines = append(lines, "|---|---|---|---|---|")

	for _, r := range rows {
		lines = append(lines, fmt.Sprintf(
			"| %s | %s | %s | %s | %s (%s) |",
			r.priority, r.item, r.owner, r.dueDate, r.status, r.cite))
	}

	lines = append(lines, "\n### Citations")
	lines = append(lines, fmt.Sprintf("- %s", rows[0].cite))

	return strings.Join(lines, "\n")
}

func parseActionRows(notes []state.ResearchNote) []actionRow {
	var rows []actionRow

	for _, n := range notes {
		sid := firstSourceID(n)
		if !strings.Contains(strings.ToLower(sid), deadlinesDocID) {
			continue
		}

		text := strings.TrimSpace(n.Claim)
		if text == "" {
			continue
		}

		var tableLines []string
		for _, raw := range strings.Split(text, "\n") {
			line := strings.TrimSpace(raw)
			if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
				tableLines = append(tableLines, line)
			}
		}

		// Header, separator, then data rows.
		if len(tableLines) < 3 {
			continue
		}

		cite := sid
		if cite == "" {
			cite = deadlinesDocID
		}

		for _, line := range tableLines[2:] {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			if len(cols) < 5 {
				continue
			}
			for i := range cols {
				cols[i] = strings.TrimSpace(cols[i])
			}

			owner, due := cols[2], cols[3]
			if owner == "" || due == "" {
				continue
			}

			rows = append(rows, actionRow{
				priority: cols[0],
				item:     cols[1],
				owner:    owner,
				dueDate:  due,
				status:   cols[4],
				cite:     cite,
			})
		}
	}

	// Dedupe by (priority, item, owner, due date).
	seen := make(map[[4]string]bool)
	out := rows[:0]
	for _, r := range rows {
		key := [4]string{r.priority, r.item, r.owner, r.dueDate}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
