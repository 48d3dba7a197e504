package quality

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assessment(total int, completenessIssues, consistencyIssues, formatIssues, relationshipIssues int) *Assessment {
	cat := func(c Category, name string, count int) CategoryResult {
		return CategoryResult{
			Category: c,
			Checks:   []CheckResult{{Name: name, Count: count}},
		}
	}
	return &Assessment{
		GeneratedAt:   time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		TotalTrials:   total,
		Completeness:  cat(CategoryCompleteness, "missing_brief_title", completenessIssues),
		Consistency:   cat(CategoryConsistency, "invalid_dates", consistencyIssues),
		Format:        cat(CategoryFormat, "invalid_nct_format", formatIssues),
		Relationships: cat(CategoryRelationship, "missing_conditions", relationshipIssues),
	}
}

func TestScoreEmptyCorpus(t *testing.T) {
	r := Score(assessment(0, 0, 0, 0, 0))

	assert.Zero(t, r.OverallScore)
	assert.Equal(t, "No Data", r.QualityLevel)
	assert.Zero(t, r.TotalTrials)
	assert.Zero(t, r.Completeness.Score)
	assert.Zero(t, r.Consistency.Score)
	assert.Zero(t, r.Format.Score)
	assert.Zero(t, r.Relationships.Score)
	assert.True(t, r.Completeness.Available)
}

func TestScoreWeightedExample(t *testing.T) {
	// 10 trials with 3 completeness issues and nothing else.
	r := Score(assessment(10, 3, 0, 0, 0))

	assert.Equal(t, 70.0, r.Completeness.Score)
	assert.Equal(t, 100.0, r.Consistency.Score)
	assert.Equal(t, 100.0, r.Format.Score)
	assert.Equal(t, 100.0, r.Relationships.Score)
	// 0.30*70 + 0.30*100 + 0.20*100 + 0.20*100
	assert.Equal(t, 91.0, r.OverallScore)
	assert.Equal(t, "Excellent", r.QualityLevel)
}

func TestScoreSingleWeightedTerm(t *testing.T) {
	// With every other category unavailable only the completeness term
	// contributes: 0.30 * 70 = 21.
	a := assessment(10, 3, 0, 0, 0)
	boom := errors.New("connection refused")
	a.Consistency = CategoryResult{Category: CategoryConsistency, Err: boom}
	a.Format = CategoryResult{Category: CategoryFormat, Err: boom}
	a.Relationships = CategoryResult{Category: CategoryRelationship, Err: boom}

	r := Score(a)

	assert.Equal(t, 70.0, r.Completeness.Score)
	assert.Equal(t, 21.0, r.OverallScore)
	assert.Equal(t, "Critical", r.QualityLevel)
}

func TestScoreClampsAtZero(t *testing.T) {
	// More issues than trials would go negative without the clamp.
	r := Score(assessment(2, 9, 0, 0, 0))
	assert.Zero(t, r.Completeness.Score)
}

func TestScoreRoundsToTwoDecimals(t *testing.T) {
	// 1 issue over 3 trials: 100 - 33.333... = 66.67 after rounding.
	r := Score(assessment(3, 1, 0, 0, 0))
	assert.Equal(t, 66.67, r.Completeness.Score)
}

func TestQualityLevels(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "Excellent"},
		{90, "Excellent"},
		{89.99, "Good"},
		{80, "Good"},
		{79.5, "Fair"},
		{70, "Fair"},
		{69, "Poor"},
		{60, "Poor"},
		{59.99, "Critical"},
		{0, "Critical"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, levelFor(tc.score), "score %v", tc.score)
	}
}

func TestUnavailableCategoryIsNotZeroIssues(t *testing.T) {
	a := assessment(10, 0, 0, 0, 0)
	a.Consistency = CategoryResult{Category: CategoryConsistency, Err: errors.New("connection refused")}

	r := Score(a)

	assert.False(t, r.Consistency.Available)
	assert.True(t, r.Completeness.Available)
	require.NotEmpty(t, r.Issues)
	assert.Contains(t, r.Issues[0], "consistency: checks unavailable")
}

func TestIssueLines(t *testing.T) {
	a := assessment(10, 2, 0, 0, 1)
	a.Consistency.Checks = []CheckResult{
		{Name: "duplicate_nct_ids", Count: 1, Samples: []string{"NCT00000001 appears 3 times"}},
	}
	a.Format.Checks = []CheckResult{
		{Name: "invalid_nct_format", Count: 1, Samples: []string{"NCT123"}},
	}

	r := Score(a)

	assert.Equal(t, []string{
		"missing_brief_title: 2 records missing",
		"duplicate_nct_ids: 1 duplicate NCT IDs found",
		"  - NCT ID NCT00000001 appears 3 times",
		"invalid_nct_format: 1 records with format issues",
		"  - Example: NCT123",
		"missing_conditions: 1 trials missing related data",
	}, r.Issues)
	assert.Equal(t, 6, r.TotalIssues)
}

func TestRenderText(t *testing.T) {
	r := Score(assessment(10, 3, 0, 0, 0))
	text := RenderText(r)

	assert.Contains(t, text, "CLINICAL TRIALS DATABASE QUALITY REPORT")
	assert.Contains(t, text, "Overall Score: 91/100")
	assert.Contains(t, text, "Quality Level: Excellent")
	assert.Contains(t, text, "Completeness: 70/100")
	assert.Contains(t, text, "ISSUES FOUND")
	assert.Contains(t, text, "1. missing_brief_title: 3 records missing")
}
