package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trialstore/internal/trial/models"
	"trialstore/pkg/domain"
	"trialstore/pkg/platform/sentinel"
)

type childValue struct {
	nctID domain.NCTID
	value string
}

// InMemoryStore implements Writer, Reader, CorpusReader and TxRunner in
// process memory. It exists for unit tests and mirrors the postgres
// semantics, including the upsert/append asymmetry. The parent table is a
// slice, not a map, so quality tests can seed the duplicate identifiers a
// restored corpus might contain.
type InMemoryStore struct {
	mu           sync.RWMutex
	basicInfo    []models.BasicInfo
	descriptions map[domain.NCTID]models.Description
	eligibility  map[domain.NCTID]models.Eligibility
	arms         []models.ArmIntervention
	outcomes     []models.Outcome
	locations    []models.Location
	conditions   []childValue
	keywords     []childValue

	now func() time.Time

	// failSave simulates a mid-transaction statement failure: SaveTrial
	// returns it after staging, applying nothing. Set from tests only.
	failSave error
}

// NewInMemory constructs an empty in-memory trial store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		descriptions: make(map[domain.NCTID]models.Description),
		eligibility:  make(map[domain.NCTID]models.Eligibility),
		now:          time.Now,
	}
}

// RunInTx satisfies TxRunner. SaveTrial is already all-or-nothing in memory,
// so the boundary is the function call itself.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SaveTrial applies the aggregate atomically: every mutation is staged and
// the store is only touched once nothing can fail anymore.
func (s *InMemoryStore) SaveTrial(_ context.Context, rec *models.TrialRecord) error {
	if rec == nil {
		return fmt.Errorf("trial record is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave != nil {
		return s.failSave
	}

	now := s.now()
	id := rec.BasicInfo.NCTID

	if idx := s.indexOf(id); idx >= 0 {
		updated := rec.BasicInfo
		updated.CreatedAt = s.basicInfo[idx].CreatedAt
		updated.UpdatedAt = now
		s.basicInfo[idx] = updated
	} else {
		created := rec.BasicInfo
		created.CreatedAt = now
		created.UpdatedAt = now
		s.basicInfo = append(s.basicInfo, created)
	}

	if rec.HasDescription() {
		s.descriptions[id] = *rec.Description
	}
	if rec.HasEligibility() {
		s.eligibility[id] = *rec.Eligibility
	}
	s.arms = append(s.arms, rec.Arms...)
	s.outcomes = append(s.outcomes, rec.Outcomes...)
	s.locations = append(s.locations, rec.Locations...)
	for _, c := range rec.Conditions {
		s.conditions = append(s.conditions, childValue{nctID: id, value: c})
	}
	for _, k := range rec.Keywords {
		s.keywords = append(s.keywords, childValue{nctID: id, value: k})
	}
	return nil
}

func (s *InMemoryStore) indexOf(id domain.NCTID) int {
	for i := range s.basicInfo {
		if s.basicInfo[i].NCTID == id {
			return i
		}
	}
	return -1
}

func (s *InMemoryStore) GetTrial(_ context.Context, nctID domain.NCTID) (*models.TrialSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(nctID)
	if idx < 0 {
		return nil, sentinel.ErrNotFound
	}
	summary := s.summarize(s.basicInfo[idx])
	return &summary, nil
}

func (s *InMemoryStore) ListTrials(_ context.Context, filter ListFilter) ([]models.TrialSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.BasicInfo, 0, len(s.basicInfo))
	for _, info := range s.basicInfo {
		if filter.Status != "" && strValue(info.Status) != filter.Status {
			continue
		}
		if filter.Phase != "" && strValue(info.Phase) != filter.Phase {
			continue
		}
		matched = append(matched, info)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]models.TrialSummary, 0, len(matched))
	for _, info := range matched {
		out = append(out, s.summarize(info))
	}
	return out, nil
}

func (s *InMemoryStore) SearchTrials(_ context.Context, query string, limit int) ([]models.TrialSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 20
	}
	needle := strings.ToLower(query)
	var out []models.TrialSummary
	for _, info := range s.basicInfo {
		desc := s.descriptions[info.NCTID]
		if containsFold(info.BriefTitle, needle) || containsFold(info.OfficialTitle, needle) ||
			containsFold(desc.BriefSummary, needle) || containsFold(desc.DetailedDescription, needle) {
			out = append(out, s.summarize(info))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (*models.CorpusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.CorpusStats{TotalTrials: len(s.basicInfo)}
	stats.StatusDistribution = bucketize(s.basicInfo, func(i models.BasicInfo) (string, bool) {
		return strValue(i.Status), true
	})
	stats.PhaseDistribution = bucketize(s.basicInfo, func(i models.BasicInfo) (string, bool) {
		if i.Phase == nil {
			return "", false
		}
		return *i.Phase, true
	})
	stats.StudyTypeDistribution = bucketize(s.basicInfo, func(i models.BasicInfo) (string, bool) {
		return strValue(i.StudyType), true
	})
	return stats, nil
}

// TotalTrials implements CorpusReader.
func (s *InMemoryStore) TotalTrials(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.basicInfo), nil
}

// BasicInfoRows implements CorpusReader.
func (s *InMemoryStore) BasicInfoRows(context.Context) ([]models.BasicInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.BasicInfo{}, s.basicInfo...), nil
}

// ChildKeys implements CorpusReader.
func (s *InMemoryStore) ChildKeys(_ context.Context, table ChildTable) ([]domain.NCTID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []domain.NCTID
	switch table {
	case ChildDescriptions:
		for id := range s.descriptions {
			keys = append(keys, id)
		}
	case ChildEligibility:
		for id := range s.eligibility {
			keys = append(keys, id)
		}
	case ChildArms:
		for _, row := range s.arms {
			keys = append(keys, row.NCTID)
		}
	case ChildOutcomes:
		for _, row := range s.outcomes {
			keys = append(keys, row.NCTID)
		}
	case ChildLocations:
		for _, row := range s.locations {
			keys = append(keys, row.NCTID)
		}
	case ChildConditions:
		for _, row := range s.conditions {
			keys = append(keys, row.nctID)
		}
	case ChildKeywords:
		for _, row := range s.keywords {
			keys = append(keys, row.nctID)
		}
	default:
		return nil, fmt.Errorf("unknown child table %q", table)
	}
	return keys, nil
}

// LocationRows implements CorpusReader.
func (s *InMemoryStore) LocationRows(context.Context) ([]models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Location{}, s.locations...), nil
}

// Seeding helpers for tests that need a corpus the writer cannot produce
// (duplicates, orphans). Production code never calls these.

func (s *InMemoryStore) SeedBasicInfo(info models.BasicInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = s.now()
		info.UpdatedAt = info.CreatedAt
	}
	s.basicInfo = append(s.basicInfo, info)
}

func (s *InMemoryStore) SeedDescription(d models.Description) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions[d.NCTID] = d
}

func (s *InMemoryStore) SeedEligibility(e models.Eligibility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligibility[e.NCTID] = e
}

func (s *InMemoryStore) SeedOutcome(o models.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

func (s *InMemoryStore) SeedLocation(l models.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = append(s.locations, l)
}

func (s *InMemoryStore) SeedCondition(nctID domain.NCTID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditions = append(s.conditions, childValue{nctID: nctID, value: name})
}

func (s *InMemoryStore) SeedKeyword(nctID domain.NCTID, keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = append(s.keywords, childValue{nctID: nctID, value: keyword})
}

// CountChildren reports rows per child table for one identifier; tests use
// it to assert the append semantics.
func (s *InMemoryStore) CountChildren(nctID domain.NCTID, table ChildTable) int {
	keys, _ := s.ChildKeys(context.Background(), table)
	count := 0
	for _, k := range keys {
		if k == nctID {
			count++
		}
	}
	return count
}

func (s *InMemoryStore) summarize(info models.BasicInfo) models.TrialSummary {
	summary := models.TrialSummary{
		NCTID:           info.NCTID,
		BriefTitle:      strValue(info.BriefTitle),
		OfficialTitle:   strValue(info.OfficialTitle),
		Status:          strValue(info.Status),
		Phase:           info.Phase,
		StudyType:       strValue(info.StudyType),
		EnrollmentCount: info.EnrollmentCount,
		Organization:    info.OrganizationName,
		StartDate:       dateString(info.StartDate),
		CompletionDate:  dateString(info.CompletionDate),
	}
	if desc, ok := s.descriptions[info.NCTID]; ok {
		summary.BriefSummary = desc.BriefSummary
		summary.DetailedDescription = desc.DetailedDescription
	}
	if elig, ok := s.eligibility[info.NCTID]; ok {
		summary.InclusionCriteria = elig.InclusionCriteria
		summary.ExclusionCriteria = elig.ExclusionCriteria
	}
	return summary
}

func bucketize(infos []models.BasicInfo, key func(models.BasicInfo) (string, bool)) []models.CountBucket {
	counts := map[string]int{}
	for _, info := range infos {
		if k, ok := key(info); ok {
			counts[k]++
		}
	}
	buckets := make([]models.CountBucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, models.CountBucket{Value: value, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})
	return buckets
}

func containsFold(s *string, needle string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), needle)
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.DateOnly)
	return &formatted
}
