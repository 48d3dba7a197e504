package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"trialstore/internal/registry"
	"trialstore/internal/trial/mapper"
	"trialstore/internal/trial/models"
	domainerrors "trialstore/pkg/domain-errors"
	"trialstore/pkg/platform/sentinel"
)

// MaxSearchResults caps how many studies one ingest request may pull from
// the registry; it mirrors the registry page size limit.
const MaxSearchResults = 100

// IngestFailure reports one record that could not be persisted. The store
// is unchanged for that identifier; other records are unaffected.
type IngestFailure struct {
	NCTID string `json:"nct_id"`
	Error string `json:"error"`
}

// IngestResult is the outcome of one search-and-ingest call.
type IngestResult struct {
	Trials   []models.TrialSummary `json:"trials"`
	Failures []IngestFailure       `json:"failures,omitempty"`
}

// SearchAndIngest searches the registry and persists every returned study,
// each in its own transaction. A record failure never aborts the batch.
func (s *Service) SearchAndIngest(ctx context.Context, query string, max int) (*IngestResult, error) {
	if query == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "search query is required")
	}
	if max < 1 || max > MaxSearchResults {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "max results must be between 1 and 100")
	}

	ctx, span := s.tracer.Start(ctx, "trial.SearchAndIngest")
	defer span.End()
	span.SetAttributes(attribute.String("query", query), attribute.Int("max", max))

	studies, err := s.source.Search(ctx, query, max)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "search registry")
	}

	result := &IngestResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, study := range studies {
		study := study
		g.Go(func() error {
			rec, err := s.ingestOne(gctx, study)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, IngestFailure{
					NCTID: studyID(study),
					Error: err.Error(),
				})
				return nil
			}
			result.Trials = append(result.Trials, *summarize(rec))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Trials, func(i, j int) bool {
		return result.Trials[i].NCTID < result.Trials[j].NCTID
	})
	s.log.Info("ingest batch finished",
		"query", query,
		"ingested", len(result.Trials),
		"failed", len(result.Failures))
	return result, nil
}

// ingestOne maps a study and persists the aggregate in one transaction.
func (s *Service) ingestOne(ctx context.Context, study *registry.Study) (*models.TrialRecord, error) {
	rec, err := mapper.Map(study)
	if err != nil {
		s.metrics.RecordIngestFailure()
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.writer.SaveTrial(ctx, rec)
	})
	if err != nil {
		s.metrics.RecordIngestFailure()
		s.log.Error("trial ingest failed", "nct_id", string(rec.BasicInfo.NCTID), "error", err)
		return nil, translateWriteErr(err, "save trial")
	}

	s.metrics.RecordIngested()
	return rec, nil
}

// translateWriteErr maps store sentinels onto the persistence taxonomy.
func translateWriteErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return domainerrors.Persistence(err, domainerrors.ReasonConflict, msg)
	case errors.Is(err, sentinel.ErrConstraint):
		return domainerrors.Persistence(err, domainerrors.ReasonConstraint, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return domainerrors.Persistence(err, domainerrors.ReasonConnectivity, msg)
	default:
		return domainerrors.Wrap(err, domainerrors.CodePersistence, msg)
	}
}

func studyID(study *registry.Study) string {
	if study == nil || study.Identification == nil {
		return ""
	}
	return study.Identification.NCTID
}
