package quality

import (
	"context"
	"log/slog"
	"time"

	"trialstore/internal/platform/metrics"
)

// ReportCache is the storage contract for the latest report. The Redis
// implementation lives in internal/quality/cache; a nil cache means every
// request runs the engine.
type ReportCache interface {
	Get(ctx context.Context) (*Report, error)
	Put(ctx context.Context, report *Report) error
}

// Service runs the engine and scorer and keeps the latest report cached.
type Service struct {
	engine  *Engine
	cache   ReportCache
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewService wires the quality run pipeline. cache may be nil.
func NewService(engine *Engine, cache ReportCache, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{engine: engine, cache: cache, metrics: m, log: log}
}

// Report returns a scored quality report. Unless refresh is set, a cached
// report is served when present; cache failures degrade to a fresh run.
func (s *Service) Report(ctx context.Context, refresh bool) (*Report, error) {
	if !refresh && s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("report cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	start := time.Now()
	assessment, err := s.engine.Run(ctx)
	if err != nil {
		return nil, err
	}
	report := Score(assessment)
	s.metrics.ObserveQualityRun(time.Since(start).Seconds(), report.TotalIssues)

	if s.cache != nil {
		if err := s.cache.Put(ctx, report); err != nil {
			s.log.Warn("report cache write failed", "error", err)
		}
	}
	s.log.Info("quality run finished",
		"overall_score", report.OverallScore,
		"quality_level", report.QualityLevel,
		"total_trials", report.TotalTrials,
		"total_issues", report.TotalIssues)
	return report, nil
}
