// Package extract holds the deterministic extraction writers: pure
// functions from research notes to one locked markdown artifact shape.
// No external calls; every emitted value must trace to evidence.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"briefsmith/internal/state"
)

// FieldNotFound is the per-field sentinel emitted when a risk field could
// not be located in the evidence window.
const FieldNotFound = "Not found in sources"

// DefaultRiskWindow bounds how far past a risk identifier the field
// scraper looks for Severity/Impact/Mitigation.
const DefaultRiskWindow = 600

var (
	riskIDRe = regexp.MustCompile(`\bR-(\d{3})\s*:\s*([^\n\r]+)`)

	severityRe   = regexp.MustCompile(`(?i)Severity\s*[:\-]\s*(.+)`)
	impactRe     = regexp.MustCompile(`(?i)Impact\s*[:\-]\s*(.+)`)
	mitigationRe = regexp.MustCompile(`(?i)Mitigation\s*[:\-]\s*(.+)`)

	boldSeverityRe   = regexp.MustCompile(`(?i)\*\*Severity\*\*\s*[:\-]\s*(.+)`)
	boldImpactRe     = regexp.MustCompile(`(?i)\*\*Impact\*\*\s*[:\-]\s*(.+)`)
	boldMitigationRe = regexp.MustCompile(`(?i)\*\*Mitigation\*\*\s*[:\-]\s*(.+)`)

	leadingBulletRe = regexp.MustCompile(`^\s*[-•]\s*`)
)

// pricingKeywords gate the optional secondary citation for the pricing
// sensitivity risk.
var pricingKeywords = []string{"pricing", "discount", "churn", "sensitivity"}

const pricingRiskID = "R-004"

type riskEntry struct {
	title      string
	severity   string
	impact     string
	mitigation string
	citations  []string
}

// BuildTop5StrictRisks extracts risk identifiers matching R-###: <title>
// from risks.md evidence, scrapes Severity/Impact/Mitigation from a bounded
// window after each match, merges duplicates first-value-wins, and emits the
// five numerically-lowest risks. window <= 0 uses DefaultRiskWindow.
func BuildTop5StrictRisks(notes []state.ResearchNote, window int) string {
	if window <= 0 {
		window = DefaultRiskWindow
	}

	var risksNotes, pricingNotes []state.ResearchNote
	for _, n := range notes {
		sid := strings.ToLower(firstSourceID(n))
		switch {
		case strings.Contains(sid, "risks.md"):
			risksNotes = append(risksNotes, n)
		case strings.Contains(sid, "pricing_and_packaging.md"):
			pricingNotes = append(pricingNotes, n)
		}
	}

	if len(risksNotes) == 0 {
		return strings.Join([]string{
			"## Deliverable Package: Top 5 Risks",
			"",
			"### Executive Summary",
			"- Not found in sources.",
			"",
			"### Top 5 Risks",
			"- Not found in sources.",
			"",
			"## Citations",
			"- Not found in sources",
		}, "\n")
	}

	extracted := make(map[string]*riskEntry)

	for _, n := range risksNotes {
		sourceID := firstSourceID(n)
		text := strings.TrimSpace(n.Claim)
		if text == "" {
			continue
		}

		for _, loc := range riskIDRe.FindAllStringSubmatchIndex(text, -1) {
			rid := "R-" + text[loc[2]:loc[3]]
			title := cleanFieldValue(text[loc[4]:loc[5]])

			end := loc[0] + window
			if end > len(text) {
				end = len(text)
			}
			severity, impact, mitigation := scrapeFields(text[loc[0]:end])

			entry, ok := extracted[rid]
			if !ok {
				entry = &riskEntry{
					title:      title,
					severity:   orSentinel(severity),
					impact:     orSentinel(impact),
					mitigation: orSentinel(mitigation),
				}
				if sourceID != "" {
					entry.citations = []string{sourceID}
				}
				extracted[rid] = entry
				continue
			}

			// First non-empty value wins; later occurrences only fill gaps.
			if (entry.title == "" || entry.title == FieldNotFound) && title != "" {
				entry.title = title
			}
			if entry.severity == FieldNotFound && severity != "" {
				entry.severity = severity
			}
			if entry.impact == FieldNotFound && impact != "" {
				entry.impact = impact
			}
			if entry.mitigation == FieldNotFound && mitigation != "" {
				entry.mitigation = mitigation
			}
			if sourceID != "" && !containsString(entry.citations, sourceID) {
				entry.citations = append(entry.citations, sourceID)
			}
		}
	}

	riskIDs := make([]string, 0, len(extracted))
	for rid := range extracted {
		riskIDs = append(riskIDs, rid)
	}
	sort.Slice(riskIDs, func(i, j int) bool {
		return riskNumber(riskIDs[i]) < riskNumber(riskIDs[j])
	})
	if len(riskIDs) > 5 {
		riskIDs = riskIDs[:5]
	}

	attachPricingSupport(extracted, riskIDs, pricingNotes)

	var lines []string
	lines = append(lines, "# Deliverable Package: Top 5 Risks\n")
	lines = append(lines, "## Executive Summary")
	lines = append(lines, "This document outlines the top five risks identified in the project documents, including severity, impact, mitigation, and citations.\n")
	lines = append(lines, "## Top 5 Risks\n")

	var allCitations []string
	fallbackCite := firstSourceID(risksNotes[0])

	for i, rid := range riskIDs {
		entry := extracted[rid]

		cits := entry.citations
		if len(cits) == 0 {
			cits = []string{fallbackCite}
		}
		for _, c := range cits {
			if !containsString(allCitations, c) {
				allCitations = append(allCitations, c)
			}
		}

		lines = append(lines, fmt.Sprintf("### %d. %s: %s", i+1, rid, orSentinel(entry.title)))
		lines = append(lines, fmt.Sprintf("- **Severity:** %s", orSentinel(entry.severity)))
		lines = append(lines, fmt.Sprintf("- **Impact:** %s", orSentinel(entry.impact)))
		lines = append(lines, fmt.Sprintf("- **Mitigation:** %s", orSentinel(entry.mitigation)))
		lines = append(lines, fmt.Sprintf("- **Citation:** (%s)\n", strings.Join(cits, "; ")))
	}

	lines = append(lines, "## Citations")
	for _, c := range allCitations {
		lines = append(lines, fmt.Sprintf("- (%s)", c))
	}

	return strings.Join(lines, "\n") + "\n"
}

// attachPricingSupport adds one pricing-document citation to the pricing
// sensitivity risk when the pricing evidence actually discusses pricing.
func attachPricingSupport(extracted map[string]*riskEntry, riskIDs []string, pricingNotes []state.ResearchNote) {
	entry, ok := extracted[pricingRiskID]
	if !ok || !containsString(riskIDs, pricingRiskID) || len(pricingNotes) == 0 {
		return
	}

	for _, n := range pricingNotes {
		sid := firstSourceID(n)
		if sid == "" {
			continue
		}
		text := strings.ToLower(n.Claim)
		for _, kw := range pricingKeywords {
			if strings.Contains(text, kw) {
				if !containsString(entry.citations, sid) {
					entry.citations = append(entry.citations, sid)
				}
				return
			}
		}
	}
}

func scrapeFields(window string) (severity, impact, mitigation string) {
	severity = firstGroup(severityRe, window)
	impact = firstGroup(impactRe, window)
	mitigation = firstGroup(mitigationRe, window)

	if severity == "" {
		severity = firstGroup(boldSeverityRe, window)
	}
	if impact == "" {
		impact = firstGroup(boldImpactRe, window)
	}
	if mitigation == "" {
		mitigation = firstGroup(boldMitigationRe, window)
	}
	return severity, impact, mitigation
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return cleanFieldValue(m[1])
}

func cleanFieldValue(s string) string {
	s = strings.TrimSpace(s)
	s = leadingBulletRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

func orSentinel(s string) string {
	if strings.TrimSpace(s) == "" {
		return FieldNotFound
	}
	return s
}

func riskNumber(rid string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(rid, "R-"))
	if err != nil {
		return 9999
	}
	return n
}

func firstSourceID(n state.ResearchNote) string {
	if len(n.Citations) == 0 {
		return ""
	}
	return strings.TrimSpace(n.Citations[0].SourceID)
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
