package quality

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trialstore/internal/trial/models"
	"trialstore/internal/trial/store"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
	store  *store.InMemoryStore
	engine *Engine
	ctx    context.Context
}

func (s *EngineSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.engine = NewEngine(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.ctx = context.Background()
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func strPtr(v string) *string { return &v }
func intPtr(n int) *int       { return &n }

// completeTrial persists one defect-free trial through the writer.
func (s *EngineSuite) completeTrial(id string) {
	nct := domain.NCTID(id)
	rec := &models.TrialRecord{
		BasicInfo: models.BasicInfo{
			NCTID:            nct,
			BriefTitle:       strPtr("Brief"),
			OfficialTitle:    strPtr("Official"),
			Status:           strPtr("RECRUITING"),
			StudyType:        strPtr("INTERVENTIONAL"),
			OrganizationName: strPtr("Acme Research"),
		},
		Description: &models.Description{NCTID: nct, BriefSummary: strPtr("summary")},
		Eligibility: &models.Eligibility{NCTID: nct, InclusionCriteria: strPtr("adults")},
		Outcomes:    []models.Outcome{{NCTID: nct, Type: models.OutcomePrimary, Measure: strPtr("OS")}},
		Locations:   []models.Location{{NCTID: nct, FacilityName: strPtr("Site A")}},
		Conditions:  []string{"Asthma"},
		Keywords:    []string{"respiratory"},
	}
	s.Require().NoError(s.store.SaveTrial(s.ctx, rec))
}

func checkByName(s *suite.Suite, cat CategoryResult, name string) CheckResult {
	for _, c := range cat.Checks {
		if c.Name == name {
			return c
		}
	}
	s.Require().FailNowf("check not found", "no check named %s in %s", name, cat.Category)
	return CheckResult{}
}

func (s *EngineSuite) TestCleanCorpusHasNoIssues() {
	s.completeTrial("NCT00000001")

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	s.Equal(1, a.TotalTrials)
	for _, cat := range a.Categories() {
		s.False(cat.Unavailable())
		s.Zero(cat.IssueCount(), "category %s should be clean", cat.Category)
	}
}

func (s *EngineSuite) TestCompletenessCountsEachCheckIndependently() {
	// One row missing several fields at once is counted by every check it
	// fails.
	s.store.SeedBasicInfo(models.BasicInfo{
		NCTID:  "NCT00000002",
		Status: strPtr("   "),
	})

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	cat := a.Completeness
	s.Equal(1, checkByName(&s.Suite, cat, "missing_brief_title").Count)
	s.Equal(1, checkByName(&s.Suite, cat, "missing_official_title").Count)
	s.Equal(1, checkByName(&s.Suite, cat, "missing_status").Count, "whitespace status counts as missing")
	s.Equal(1, checkByName(&s.Suite, cat, "missing_study_type").Count)
	s.Equal(1, checkByName(&s.Suite, cat, "missing_organization").Count)
	s.Equal(1, checkByName(&s.Suite, cat, "missing_descriptions").Count)
	s.Equal(1, checkByName(&s.Suite, cat, "missing_eligibility").Count)
	s.Equal(7, cat.IssueCount())
}

func (s *EngineSuite) TestDuplicateIdentifiersReportDistinctEntries() {
	for i := 0; i < 3; i++ {
		s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT00000001"})
	}

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	dup := checkByName(&s.Suite, a.Consistency, "duplicate_nct_ids")
	s.Equal(1, dup.Count, "three occurrences are one duplicate entry")
	s.Require().Len(dup.Samples, 1)
	s.Equal("NCT00000001 appears 3 times", dup.Samples[0])
}

func (s *EngineSuite) TestConsistencyDateAndEnrollmentChecks() {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	completed := start.AddDate(-1, 0, 0)
	s.store.SeedBasicInfo(models.BasicInfo{
		NCTID:          "NCT00000003",
		StartDate:      &start,
		CompletionDate: &completed,
	})
	s.store.SeedBasicInfo(models.BasicInfo{
		NCTID:           "NCT00000004",
		EnrollmentCount: intPtr(-5),
	})
	s.store.SeedBasicInfo(models.BasicInfo{
		NCTID:           "NCT00000005",
		EnrollmentCount: intPtr(2_000_000),
	})
	// Dates present but ordered correctly must not be flagged.
	okStart := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	okEnd := okStart.AddDate(2, 0, 0)
	s.store.SeedBasicInfo(models.BasicInfo{
		NCTID:          "NCT00000006",
		StartDate:      &okStart,
		CompletionDate: &okEnd,
	})

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	s.Equal(1, checkByName(&s.Suite, a.Consistency, "invalid_dates").Count)
	s.Equal(2, checkByName(&s.Suite, a.Consistency, "invalid_enrollment").Count)
}

func (s *EngineSuite) TestOrphanedChildRows() {
	s.completeTrial("NCT00000001")
	s.store.SeedDescription(models.Description{NCTID: "NCT77777777", BriefSummary: strPtr("orphan")})
	s.store.SeedCondition("NCT88888888", "Orphan Condition")

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	orphans := checkByName(&s.Suite, a.Consistency, "orphaned_records")
	s.Equal(2, orphans.Count)
}

func (s *EngineSuite) TestFormatChecks() {
	fixed := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	s.engine.now = func() time.Time { return fixed }

	s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT123"})
	s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT00000001"})

	ancient := time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	farFuture := fixed.AddDate(11, 0, 0)
	s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT00000002", StartDate: &ancient})
	s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT00000003", CompletionDate: &farFuture})
	// Exactly ten years out is still in range.
	edge := fixed.AddDate(10, 0, 0)
	s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT00000004", StartDate: &edge})

	s.store.SeedLocation(models.Location{NCTID: "NCT00000001", ContactEmail: strPtr("not-an-email")})
	s.store.SeedLocation(models.Location{NCTID: "NCT00000001", ContactEmail: strPtr("ada@example.org")})
	s.store.SeedLocation(models.Location{NCTID: "NCT00000001", ContactPhone: strPtr("555-01")})
	s.store.SeedLocation(models.Location{NCTID: "NCT00000001", ContactPhone: strPtr("+1 (617) 555-0100")})

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	nct := checkByName(&s.Suite, a.Format, "invalid_nct_format")
	s.Equal(1, nct.Count)
	s.Equal([]string{"NCT123"}, nct.Samples)

	s.Equal(1, checkByName(&s.Suite, a.Format, "invalid_email_format").Count)
	s.Equal(1, checkByName(&s.Suite, a.Format, "invalid_phone_format").Count)
	s.Equal(2, checkByName(&s.Suite, a.Format, "invalid_date_format").Count)
}

func (s *EngineSuite) TestRelationshipChecks() {
	s.completeTrial("NCT00000001")
	s.store.SeedBasicInfo(models.BasicInfo{NCTID: "NCT00000002"})

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	for _, name := range []string{"missing_conditions", "missing_keywords", "missing_outcomes", "missing_locations"} {
		c := checkByName(&s.Suite, a.Relationships, name)
		s.Equal(1, c.Count, name)
		s.Equal([]string{"NCT00000002"}, c.Samples, name)
	}
}

func (s *EngineSuite) TestSampleCap() {
	for i := 0; i < 8; i++ {
		s.store.SeedBasicInfo(models.BasicInfo{
			NCTID: domain.NCTID("NCT0000001" + string(rune('0'+i))),
		})
	}

	a, err := s.engine.Run(s.ctx)
	s.Require().NoError(err)

	c := checkByName(&s.Suite, a.Completeness, "missing_brief_title")
	s.Equal(8, c.Count)
	s.Len(c.Samples, 5, "samples are capped while counts keep going")
}

// failingCorpus serves the trial count but fails every other read, so each
// category must come back unavailable rather than zero.
type failingCorpus struct {
	total int
	err   error
}

func (f *failingCorpus) TotalTrials(context.Context) (int, error) { return f.total, nil }
func (f *failingCorpus) BasicInfoRows(context.Context) ([]models.BasicInfo, error) {
	return nil, f.err
}
func (f *failingCorpus) ChildKeys(context.Context, store.ChildTable) ([]domain.NCTID, error) {
	return nil, f.err
}
func (f *failingCorpus) LocationRows(context.Context) ([]models.Location, error) {
	return nil, f.err
}

func (s *EngineSuite) TestStoreFailureMarksCategoriesUnavailable() {
	boom := errors.New("connection refused")
	engine := NewEngine(&failingCorpus{total: 12, err: boom}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	a, err := engine.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(12, a.TotalTrials)

	for _, cat := range a.Categories() {
		s.True(cat.Unavailable(), "category %s must be unavailable, not zero", cat.Category)
		s.ErrorIs(cat.Err, boom)
		s.Empty(cat.Checks)
	}
}

// countFailingCorpus fails the one read the engine cannot work without.
type countFailingCorpus struct{ failingCorpus }

func (c *countFailingCorpus) TotalTrials(context.Context) (int, error) {
	return 0, errors.New("connection refused")
}

func (s *EngineSuite) TestCountFailureAbortsRun() {
	engine := NewEngine(&countFailingCorpus{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := engine.Run(s.ctx)
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeQuery))
}
