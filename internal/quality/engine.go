// Package quality analyzes the stored trial corpus: a rule engine producing
// per-category check results and a scorer turning them into a weighted
// 0-100 assessment.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trialstore/internal/trial/store"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
)

// Category names one of the four fixed check groups.
type Category string

const (
	CategoryCompleteness Category = "completeness"
	CategoryConsistency  Category = "consistency"
	CategoryFormat       Category = "format"
	CategoryRelationship Category = "relationships"
)

// sampleCap bounds the offending examples kept per check.
const sampleCap = 5

// CheckResult is the outcome of one named check: how many rows it flagged
// and up to sampleCap example instances.
type CheckResult struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Samples []string `json:"samples,omitempty"`
}

// CategoryResult holds every check of one category. When the corpus reads
// backing a category fail, Err is set and Checks is empty: an unavailable
// category is a distinct state, never a clean zero.
type CategoryResult struct {
	Category Category      `json:"category"`
	Checks   []CheckResult `json:"checks,omitempty"`
	Err      error         `json:"-"`
}

// Unavailable reports whether the category could not be evaluated.
func (r CategoryResult) Unavailable() bool { return r.Err != nil }

// IssueCount sums the check counts of the category.
func (r CategoryResult) IssueCount() int {
	total := 0
	for _, c := range r.Checks {
		total += c.Count
	}
	return total
}

// Assessment is one engine run over the corpus.
type Assessment struct {
	GeneratedAt   time.Time
	TotalTrials   int
	Completeness  CategoryResult
	Consistency   CategoryResult
	Format        CategoryResult
	Relationships CategoryResult
}

// Categories returns the results in reporting order.
func (a *Assessment) Categories() []CategoryResult {
	return []CategoryResult{a.Completeness, a.Consistency, a.Format, a.Relationships}
}

// Engine runs the four check categories against a corpus snapshot. It is
// stateless and read-only; categories fail independently.
type Engine struct {
	corpus store.CorpusReader
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewEngine constructs an Engine over the given corpus reader.
func NewEngine(corpus store.CorpusReader, log *slog.Logger) *Engine {
	return &Engine{
		corpus: corpus,
		log:    log,
		tracer: otel.Tracer("trialstore/quality"),
		now:    time.Now,
	}
}

// Run evaluates every category. It fails outright only when the corpus size
// itself cannot be read, since nothing can be scored without it; a category
// whose reads fail comes back unavailable instead.
func (e *Engine) Run(ctx context.Context) (*Assessment, error) {
	ctx, span := e.tracer.Start(ctx, "quality.Run")
	defer span.End()

	total, err := e.corpus.TotalTrials(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "count trials")
	}

	a := &Assessment{
		GeneratedAt:   e.now(),
		TotalTrials:   total,
		Completeness:  e.completeness(ctx),
		Consistency:   e.consistency(ctx),
		Format:        e.format(ctx),
		Relationships: e.relationships(ctx),
	}
	for _, cat := range a.Categories() {
		if cat.Unavailable() {
			e.log.Warn("quality category unavailable",
				"category", string(cat.Category), "error", cat.Err)
		}
	}
	return a, nil
}

// check accumulates one named check during a category pass.
type check struct {
	name    string
	count   int
	samples []string
}

func (c *check) flag(sample string) {
	c.count++
	if sample != "" && len(c.samples) < sampleCap {
		c.samples = append(c.samples, sample)
	}
}

func results(checks ...*check) []CheckResult {
	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		out = append(out, CheckResult{Name: c.name, Count: c.count, Samples: c.samples})
	}
	return out
}

func unavailable(cat Category, err error) CategoryResult {
	return CategoryResult{Category: cat, Err: err}
}

func (e *Engine) completeness(ctx context.Context) CategoryResult {
	rows, err := e.corpus.BasicInfoRows(ctx)
	if err != nil {
		return unavailable(CategoryCompleteness, fmt.Errorf("read basic info: %w", err))
	}
	withDesc, err := keySet(ctx, e.corpus, store.ChildDescriptions)
	if err != nil {
		return unavailable(CategoryCompleteness, err)
	}
	withElig, err := keySet(ctx, e.corpus, store.ChildEligibility)
	if err != nil {
		return unavailable(CategoryCompleteness, err)
	}

	missingNCTID := &check{name: "missing_nct_id"}
	missingBriefTitle := &check{name: "missing_brief_title"}
	missingOfficialTitle := &check{name: "missing_official_title"}
	missingStatus := &check{name: "missing_status"}
	missingStudyType := &check{name: "missing_study_type"}
	missingOrganization := &check{name: "missing_organization"}
	missingDescriptions := &check{name: "missing_descriptions"}
	missingEligibility := &check{name: "missing_eligibility"}

	for _, row := range rows {
		id := string(row.NCTID)
		if strings.TrimSpace(id) == "" {
			missingNCTID.flag("")
		}
		if absent(row.BriefTitle) {
			missingBriefTitle.flag(id)
		}
		if absent(row.OfficialTitle) {
			missingOfficialTitle.flag(id)
		}
		if absent(row.Status) {
			missingStatus.flag(id)
		}
		if absent(row.StudyType) {
			missingStudyType.flag(id)
		}
		if absent(row.OrganizationName) {
			missingOrganization.flag(id)
		}
		if _, ok := withDesc[row.NCTID]; !ok {
			missingDescriptions.flag(id)
		}
		if _, ok := withElig[row.NCTID]; !ok {
			missingEligibility.flag(id)
		}
	}

	return CategoryResult{
		Category: CategoryCompleteness,
		Checks: results(missingNCTID, missingBriefTitle, missingOfficialTitle,
			missingStatus, missingStudyType, missingOrganization,
			missingDescriptions, missingEligibility),
	}
}

func (e *Engine) consistency(ctx context.Context) CategoryResult {
	rows, err := e.corpus.BasicInfoRows(ctx)
	if err != nil {
		return unavailable(CategoryConsistency, fmt.Errorf("read basic info: %w", err))
	}

	invalidDates := &check{name: "invalid_dates"}
	invalidEnrollment := &check{name: "invalid_enrollment"}
	duplicates := &check{name: "duplicate_nct_ids"}
	orphans := &check{name: "orphaned_records"}

	parents := make(map[domain.NCTID]int, len(rows))
	for _, row := range rows {
		parents[row.NCTID]++

		startAfter := func(other *time.Time) bool {
			return row.StartDate != nil && other != nil && row.StartDate.After(*other)
		}
		if startAfter(row.CompletionDate) || startAfter(row.PrimaryCompletionDate) {
			invalidDates.flag(string(row.NCTID))
		}
		if row.EnrollmentCount != nil && (*row.EnrollmentCount < 0 || *row.EnrollmentCount > 1_000_000) {
			invalidEnrollment.flag(fmt.Sprintf("%s: enrollment %d", row.NCTID, *row.EnrollmentCount))
		}
	}

	// One issue per distinct duplicated identifier, carrying its repetition
	// count, not one per extra row.
	ids := make([]domain.NCTID, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if n := parents[id]; n > 1 {
			duplicates.flag(fmt.Sprintf("%s appears %d times", id, n))
		}
	}

	for _, table := range []store.ChildTable{
		store.ChildDescriptions, store.ChildEligibility, store.ChildArms,
		store.ChildOutcomes, store.ChildLocations, store.ChildConditions,
		store.ChildKeywords,
	} {
		keys, err := e.corpus.ChildKeys(ctx, table)
		if err != nil {
			return unavailable(CategoryConsistency, fmt.Errorf("read %s keys: %w", table, err))
		}
		for _, key := range keys {
			if _, ok := parents[key]; !ok {
				orphans.flag(fmt.Sprintf("%s: %s", table, key))
			}
		}
	}

	return CategoryResult{
		Category: CategoryConsistency,
		Checks:   results(invalidDates, invalidEnrollment, duplicates, orphans),
	}
}

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{10,}$`)
)

func (e *Engine) format(ctx context.Context) CategoryResult {
	rows, err := e.corpus.BasicInfoRows(ctx)
	if err != nil {
		return unavailable(CategoryFormat, fmt.Errorf("read basic info: %w", err))
	}
	locations, err := e.corpus.LocationRows(ctx)
	if err != nil {
		return unavailable(CategoryFormat, fmt.Errorf("read locations: %w", err))
	}

	invalidNCT := &check{name: "invalid_nct_format"}
	invalidEmail := &check{name: "invalid_email_format"}
	invalidPhone := &check{name: "invalid_phone_format"}
	invalidDate := &check{name: "invalid_date_format"}

	minDate := time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxDate := e.now().AddDate(10, 0, 0)
	outOfRange := func(t *time.Time) bool {
		return t != nil && (t.Before(minDate) || t.After(maxDate))
	}

	for _, row := range rows {
		if !row.NCTID.IsValid() {
			invalidNCT.flag(string(row.NCTID))
		}
		if outOfRange(row.StartDate) || outOfRange(row.CompletionDate) || outOfRange(row.PrimaryCompletionDate) {
			invalidDate.flag(string(row.NCTID))
		}
	}
	for _, loc := range locations {
		if loc.ContactEmail != nil && !emailPattern.MatchString(*loc.ContactEmail) {
			invalidEmail.flag(fmt.Sprintf("%s: %s", loc.NCTID, *loc.ContactEmail))
		}
		if loc.ContactPhone != nil && !phonePattern.MatchString(*loc.ContactPhone) {
			invalidPhone.flag(fmt.Sprintf("%s: %s", loc.NCTID, *loc.ContactPhone))
		}
	}

	return CategoryResult{
		Category: CategoryFormat,
		Checks:   results(invalidNCT, invalidEmail, invalidPhone, invalidDate),
	}
}

func (e *Engine) relationships(ctx context.Context) CategoryResult {
	rows, err := e.corpus.BasicInfoRows(ctx)
	if err != nil {
		return unavailable(CategoryRelationship, fmt.Errorf("read basic info: %w", err))
	}

	checks := []struct {
		table  store.ChildTable
		result *check
	}{
		{store.ChildConditions, &check{name: "missing_conditions"}},
		{store.ChildKeywords, &check{name: "missing_keywords"}},
		{store.ChildOutcomes, &check{name: "missing_outcomes"}},
		{store.ChildLocations, &check{name: "missing_locations"}},
	}

	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		present, err := keySet(ctx, e.corpus, c.table)
		if err != nil {
			return unavailable(CategoryRelationship, err)
		}
		for _, row := range rows {
			if _, ok := present[row.NCTID]; !ok {
				c.result.flag(string(row.NCTID))
			}
		}
		out = append(out, CheckResult{Name: c.result.name, Count: c.result.count, Samples: c.result.samples})
	}

	return CategoryResult{Category: CategoryRelationship, Checks: out}
}

func keySet(ctx context.Context, corpus store.CorpusReader, table store.ChildTable) (map[domain.NCTID]struct{}, error) {
	keys, err := corpus.ChildKeys(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read %s keys: %w", table, err)
	}
	set := make(map[domain.NCTID]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

func absent(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
