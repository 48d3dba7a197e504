package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"trialstore/internal/registry"
	"trialstore/internal/trial/store"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
	"trialstore/pkg/platform/sentinel"
)

// fakeSource serves canned studies keyed by NCT ID.
type fakeSource struct {
	studies   []*registry.Study
	searchErr error
	getErr    error
}

func (f *fakeSource) Search(_ context.Context, _ string, max int) ([]*registry.Study, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.studies) > max {
		return f.studies[:max], nil
	}
	return f.studies, nil
}

func (f *fakeSource) GetStudy(_ context.Context, nctID string) (*registry.Study, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, s := range f.studies {
		if s.Identification != nil && s.Identification.NCTID == nctID {
			return s, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

type ServiceSuite struct {
	suite.Suite
	store  *store.InMemoryStore
	source *fakeSource
	svc    *Service
	ctx    context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.source = &fakeSource{}
	s.svc = New(s.source, s.store, s.store, s.store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
	s.ctx = context.Background()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func study(id, title string) *registry.Study {
	return &registry.Study{
		Identification: &registry.IdentificationModule{
			NCTID:      id,
			BriefTitle: title,
		},
		Status: &registry.StatusModule{OverallStatus: "RECRUITING"},
		Conditions: &registry.ConditionsModule{
			Conditions: []string{"Asthma"},
		},
	}
}

func (s *ServiceSuite) TestSearchAndIngestPersistsEachRecord() {
	s.source.studies = []*registry.Study{
		study("NCT00000001", "First"),
		study("NCT00000002", "Second"),
	}

	result, err := s.svc.SearchAndIngest(s.ctx, "asthma", 10)
	s.Require().NoError(err)
	s.Len(result.Trials, 2)
	s.Empty(result.Failures)

	total, err := s.store.TotalTrials(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, total)
}

func (s *ServiceSuite) TestSearchAndIngestValidation() {
	s.Run("empty query", func() {
		_, err := s.svc.SearchAndIngest(s.ctx, "", 10)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
	})

	s.Run("max above registry page size", func() {
		_, err := s.svc.SearchAndIngest(s.ctx, "asthma", 101)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
	})

	s.Run("max below one", func() {
		_, err := s.svc.SearchAndIngest(s.ctx, "asthma", 0)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestSearchAndIngestIsolatesRecordFailures() {
	bad := &registry.Study{} // no identification group: mapping failure
	s.source.studies = []*registry.Study{
		study("NCT00000001", "Good"),
		bad,
	}

	result, err := s.svc.SearchAndIngest(s.ctx, "asthma", 10)
	s.Require().NoError(err, "one bad record must not abort the batch")
	s.Len(result.Trials, 1)
	s.Require().Len(result.Failures, 1)
	s.Contains(result.Failures[0].Error, "mapping_error")

	total, err := s.store.TotalTrials(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, total, "the good record is committed regardless")
}

func (s *ServiceSuite) TestSearchRegistryFailure() {
	s.source.searchErr = fmt.Errorf("fetch studies: %w", sentinel.ErrUnavailable)

	_, err := s.svc.SearchAndIngest(s.ctx, "asthma", 10)
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeQuery))
}

func (s *ServiceSuite) TestGetTrialFromStore() {
	s.source.studies = []*registry.Study{study("NCT00000001", "Stored")}
	_, err := s.svc.SearchAndIngest(s.ctx, "asthma", 10)
	s.Require().NoError(err)

	got, err := s.svc.GetTrial(s.ctx, "NCT00000001")
	s.Require().NoError(err)
	s.Equal(domain.NCTID("NCT00000001"), got.NCTID)
	s.Equal("Stored", got.BriefTitle)
}

func (s *ServiceSuite) TestGetTrialRegistryFallbackIngests() {
	s.source.studies = []*registry.Study{study("NCT00000001", "Fresh")}

	got, err := s.svc.GetTrial(s.ctx, "NCT00000001")
	s.Require().NoError(err)
	s.Equal("Fresh", got.BriefTitle)

	total, err := s.store.TotalTrials(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, total, "registry fallback persists the record")
}

func (s *ServiceSuite) TestGetTrialUnknownEverywhere() {
	_, err := s.svc.GetTrial(s.ctx, "NCT00000009")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetTrialRejectsBadIdentifier() {
	_, err := s.svc.GetTrial(s.ctx, "NCT123")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestSearchStoredRequiresQuery() {
	_, err := s.svc.SearchStored(s.ctx, "", 10)
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestWriteErrorTranslation() {
	tests := []struct {
		name   string
		err    error
		reason domainerrors.Reason
	}{
		{"conflict", fmt.Errorf("save basic info: %w", sentinel.ErrConflict), domainerrors.ReasonConflict},
		{"constraint", fmt.Errorf("save outcome: %w", sentinel.ErrConstraint), domainerrors.ReasonConstraint},
		{"connectivity", fmt.Errorf("begin tx: %w", sentinel.ErrUnavailable), domainerrors.ReasonConnectivity},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			err := translateWriteErr(tc.err, "save trial")
			s.True(domainerrors.HasCode(err, domainerrors.CodePersistence))
			s.Equal(tc.reason, domainerrors.ReasonOf(err))
		})
	}

	s.Run("unknown errors stay persistence without reason", func() {
		err := translateWriteErr(fmt.Errorf("weird"), "save trial")
		s.True(domainerrors.HasCode(err, domainerrors.CodePersistence))
		s.Empty(domainerrors.ReasonOf(err))
	})
}

func (s *ServiceSuite) TestIngestParallelismStillOneTxPerRecord() {
	parallel := New(s.source, s.store, s.store, s.store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), 4)
	s.source.studies = []*registry.Study{
		study("NCT00000001", "A"),
		study("NCT00000002", "B"),
		study("NCT00000003", "C"),
		study("NCT00000004", "D"),
	}

	result, err := parallel.SearchAndIngest(s.ctx, "asthma", 10)
	s.Require().NoError(err)
	s.Len(result.Trials, 4)

	// Results come back sorted by identifier regardless of goroutine order.
	for i, want := range []string{"NCT00000001", "NCT00000002", "NCT00000003", "NCT00000004"} {
		s.Equal(domain.NCTID(want), result.Trials[i].NCTID)
	}
}
