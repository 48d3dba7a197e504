package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Category weights are fixed design constants.
const (
	weightCompleteness = 0.30
	weightConsistency  = 0.30
	weightFormat       = 0.20
	weightRelationship = 0.20
)

// CategoryScore is one category's contribution to the report. Available is
// false when the category's checks could not run; its Score is then 0 but
// must never be read as "no issues".
type CategoryScore struct {
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
}

// Report is the scored assessment served to callers and cached between runs.
type Report struct {
	ReportID      string        `json:"report_id"`
	GeneratedAt   time.Time     `json:"generated_at"`
	OverallScore  float64       `json:"overall_score"`
	QualityLevel  string        `json:"quality_level"`
	Completeness  CategoryScore `json:"completeness"`
	Consistency   CategoryScore `json:"consistency"`
	Format        CategoryScore `json:"format"`
	Relationships CategoryScore `json:"relationships"`
	TotalTrials   int           `json:"total_trials"`
	TotalIssues   int           `json:"total_issues"`
	Issues        []string      `json:"issues,omitempty"`
}

// Score turns an assessment into a weighted report.
//
// An empty corpus scores 0 across the board with level "No Data": the
// division by the trial count is never attempted. An unavailable category
// contributes zero weighted points and is called out in the issue list, so
// the overall score degrades conservatively instead of silently treating a
// failed category as clean.
func Score(a *Assessment) *Report {
	r := &Report{
		ReportID:    uuid.NewString(),
		GeneratedAt: a.GeneratedAt,
		TotalTrials: a.TotalTrials,
	}

	if a.TotalTrials == 0 {
		r.QualityLevel = "No Data"
		r.Completeness = CategoryScore{Available: !a.Completeness.Unavailable()}
		r.Consistency = CategoryScore{Available: !a.Consistency.Unavailable()}
		r.Format = CategoryScore{Available: !a.Format.Unavailable()}
		r.Relationships = CategoryScore{Available: !a.Relationships.Unavailable()}
		return r
	}

	r.Completeness = scoreCategory(a.Completeness, a.TotalTrials)
	r.Consistency = scoreCategory(a.Consistency, a.TotalTrials)
	r.Format = scoreCategory(a.Format, a.TotalTrials)
	r.Relationships = scoreCategory(a.Relationships, a.TotalTrials)

	overall := r.Completeness.Score*weightCompleteness +
		r.Consistency.Score*weightConsistency +
		r.Format.Score*weightFormat +
		r.Relationships.Score*weightRelationship
	r.OverallScore = round2(overall)
	r.QualityLevel = levelFor(overall)

	for _, cat := range a.Categories() {
		r.Issues = append(r.Issues, issueLines(cat)...)
	}
	r.TotalIssues = len(r.Issues)
	return r
}

func scoreCategory(cat CategoryResult, total int) CategoryScore {
	if cat.Unavailable() {
		return CategoryScore{Available: false}
	}
	score := math.Max(0, 100-float64(cat.IssueCount())/float64(total)*100)
	return CategoryScore{Score: round2(score), Available: true}
}

func levelFor(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Good"
	case score >= 70:
		return "Fair"
	case score >= 60:
		return "Poor"
	default:
		return "Critical"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func issueLines(cat CategoryResult) []string {
	if cat.Unavailable() {
		return []string{fmt.Sprintf("%s: checks unavailable (%v)", cat.Category, cat.Err)}
	}

	var lines []string
	for _, c := range cat.Checks {
		if c.Count == 0 {
			continue
		}
		switch {
		case c.Name == "duplicate_nct_ids":
			lines = append(lines, fmt.Sprintf("%s: %d duplicate NCT IDs found", c.Name, c.Count))
			for _, s := range c.Samples {
				lines = append(lines, fmt.Sprintf("  - NCT ID %s", s))
			}
		case cat.Category == CategoryCompleteness:
			lines = append(lines, fmt.Sprintf("%s: %d records missing", c.Name, c.Count))
		case cat.Category == CategoryFormat:
			lines = append(lines, fmt.Sprintf("%s: %d records with format issues", c.Name, c.Count))
			for _, s := range c.Samples {
				lines = append(lines, fmt.Sprintf("  - Example: %s", s))
			}
		case cat.Category == CategoryRelationship:
			lines = append(lines, fmt.Sprintf("%s: %d trials missing related data", c.Name, c.Count))
		default:
			lines = append(lines, fmt.Sprintf("%s: %d records with issues", c.Name, c.Count))
		}
	}
	return lines
}
