package quality

import (
	"fmt"
	"strings"
)

// RenderText formats a report as the plain-text document written by the
// scheduled quality job and served by trialctl.
func RenderText(r *Report) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "CLINICAL TRIALS DATABASE QUALITY REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Report ID: %s\n", r.ReportID)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "OVERALL QUALITY ASSESSMENT")
	fmt.Fprintln(&b, strings.Repeat("-", 30))
	fmt.Fprintf(&b, "Overall Score: %g/100\n", r.OverallScore)
	fmt.Fprintf(&b, "Quality Level: %s\n", r.QualityLevel)
	fmt.Fprintf(&b, "Total Trials: %d\n", r.TotalTrials)
	fmt.Fprintf(&b, "Total Issues: %d\n", r.TotalIssues)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "DETAILED SCORES")
	fmt.Fprintln(&b, strings.Repeat("-", 20))
	writeScore(&b, "Completeness", r.Completeness)
	writeScore(&b, "Consistency", r.Consistency)
	writeScore(&b, "Format", r.Format)
	writeScore(&b, "Relationships", r.Relationships)
	fmt.Fprintln(&b)

	if len(r.Issues) > 0 {
		fmt.Fprintln(&b, "ISSUES FOUND")
		fmt.Fprintln(&b, strings.Repeat("-", 15))
		for i, issue := range r.Issues {
			fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
		}
	} else {
		fmt.Fprintln(&b, "No issues found!")
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	return b.String()
}

func writeScore(b *strings.Builder, label string, s CategoryScore) {
	if !s.Available {
		fmt.Fprintf(b, "%s: unavailable\n", label)
		return
	}
	fmt.Fprintf(b, "%s: %g/100\n", label, s.Score)
}
