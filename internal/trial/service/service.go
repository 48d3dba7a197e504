// Package service orchestrates the trial pipeline: registry lookups, the
// map-then-save ingest path (one transaction per record), and the read-side
// query surface.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trialstore/internal/platform/metrics"
	"trialstore/internal/registry"
	"trialstore/internal/trial/models"
	"trialstore/internal/trial/store"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
	"trialstore/pkg/platform/sentinel"
)

// Source is the narrow registry contract the service depends on; the real
// implementation is internal/registry.Client.
type Source interface {
	Search(ctx context.Context, query string, max int) ([]*registry.Study, error)
	GetStudy(ctx context.Context, nctID string) (*registry.Study, error)
}

// Service wires the registry source, the store contracts and the transaction
// boundary together.
type Service struct {
	source   Source
	writer   store.Writer
	reader   store.Reader
	tx       store.TxRunner
	metrics  *metrics.Metrics
	log      *slog.Logger
	tracer   trace.Tracer
	parallel int
}

// New constructs the trial service. parallel bounds concurrent record
// ingestion; values below 1 mean strictly sequential.
func New(source Source, writer store.Writer, reader store.Reader, tx store.TxRunner,
	m *metrics.Metrics, log *slog.Logger, parallel int) *Service {
	if parallel < 1 {
		parallel = 1
	}
	return &Service{
		source:   source,
		writer:   writer,
		reader:   reader,
		tx:       tx,
		metrics:  m,
		log:      log,
		tracer:   otel.Tracer("trialstore/trial"),
		parallel: parallel,
	}
}

// GetTrial returns one stored trial. When the identifier is unknown locally
// the registry is consulted; a hit there is ingested and then served, so a
// repeat request is a store read.
func (s *Service) GetTrial(ctx context.Context, rawID string) (*models.TrialSummary, error) {
	id, err := domain.ParseNCTID(rawID)
	if err != nil {
		return nil, err
	}

	summary, err := s.reader.GetTrial(ctx, id)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "get trial")
	}

	study, err := s.source.GetStudy(ctx, string(id))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "trial not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "fetch trial from registry")
	}

	rec, err := s.ingestOne(ctx, study)
	if err != nil {
		return nil, err
	}
	return summarize(rec), nil
}

// ListTrials returns stored trials matching the filter.
func (s *Service) ListTrials(ctx context.Context, filter store.ListFilter) ([]models.TrialSummary, error) {
	out, err := s.reader.ListTrials(ctx, filter)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "list trials")
	}
	return out, nil
}

// SearchStored searches titles and summaries of already persisted trials.
func (s *Service) SearchStored(ctx context.Context, query string, limit int) ([]models.TrialSummary, error) {
	if query == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "search query is required")
	}
	out, err := s.reader.SearchTrials(ctx, query, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "search trials")
	}
	return out, nil
}

// Stats returns corpus-level counts and distributions.
func (s *Service) Stats(ctx context.Context) (*models.CorpusStats, error) {
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "read trial stats")
	}
	return stats, nil
}

// summarize flattens a freshly mapped aggregate into the read model, for
// responses that should not wait on a second store round trip.
func summarize(rec *models.TrialRecord) *models.TrialSummary {
	summary := &models.TrialSummary{
		NCTID:           rec.BasicInfo.NCTID,
		BriefTitle:      deref(rec.BasicInfo.BriefTitle),
		OfficialTitle:   deref(rec.BasicInfo.OfficialTitle),
		Status:          deref(rec.BasicInfo.Status),
		Phase:           rec.BasicInfo.Phase,
		StudyType:       deref(rec.BasicInfo.StudyType),
		EnrollmentCount: rec.BasicInfo.EnrollmentCount,
		Organization:    rec.BasicInfo.OrganizationName,
	}
	if d := rec.BasicInfo.StartDate; d != nil {
		formatted := d.Format("2006-01-02")
		summary.StartDate = &formatted
	}
	if d := rec.BasicInfo.CompletionDate; d != nil {
		formatted := d.Format("2006-01-02")
		summary.CompletionDate = &formatted
	}
	if rec.Description != nil {
		summary.BriefSummary = rec.Description.BriefSummary
		summary.DetailedDescription = rec.Description.DetailedDescription
	}
	if rec.Eligibility != nil {
		summary.InclusionCriteria = rec.Eligibility.InclusionCriteria
		summary.ExclusionCriteria = rec.Eligibility.ExclusionCriteria
	}
	return summary
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
