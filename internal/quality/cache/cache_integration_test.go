//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trialstore/internal/platform/redis"
	"trialstore/internal/quality"
	"trialstore/internal/quality/cache"
	"trialstore/pkg/testutil/containers"
)

type ReportCacheSuite struct {
	suite.Suite

	ctx       context.Context
	container *containers.RedisContainer
	cache     *cache.ReportCache
}

func TestReportCacheSuite(t *testing.T) {
	suite.Run(t, new(ReportCacheSuite))
}

func (s *ReportCacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewRedisContainer(s.T())
	s.cache = cache.New(&redis.Client{Client: s.container.Client}, time.Hour)
	s.Require().NotNil(s.cache)
}

func (s *ReportCacheSuite) TearDownSuite() {
	s.container.Terminate(s.ctx)
}

func (s *ReportCacheSuite) SetupTest() {
	s.Require().NoError(s.container.FlushAll(s.ctx))
}

func (s *ReportCacheSuite) TestMissBeforeFirstPut() {
	got, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *ReportCacheSuite) TestRoundTrip() {
	report := &quality.Report{
		ReportID:      "0d4cbb02-1a43-4b5c-9af1-223344556677",
		GeneratedAt:   time.Now().UTC(),
		OverallScore:  87.5,
		QualityLevel:  "Good",
		Completeness:  quality.CategoryScore{Score: 90, Available: true},
		Consistency:   quality.CategoryScore{Score: 85, Available: true},
		Format:        quality.CategoryScore{Score: 88, Available: true},
		Relationships: quality.CategoryScore{Score: 86, Available: true},
		TotalTrials:   42,
		TotalIssues:   2,
		Issues:        []string{"missing_status: 3 records missing", "invalid_dates: 1 records with issues"},
	}
	s.Require().NoError(s.cache.Put(s.ctx, report))

	got, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(report.ReportID, got.ReportID)
	s.Equal(report.OverallScore, got.OverallScore)
	s.Equal(report.QualityLevel, got.QualityLevel)
	s.Equal(report.Issues, got.Issues)
	s.True(report.GeneratedAt.Equal(got.GeneratedAt))
}

func (s *ReportCacheSuite) TestPutReplacesPreviousReport() {
	first := &quality.Report{ReportID: "first", QualityLevel: "Poor"}
	second := &quality.Report{ReportID: "second", QualityLevel: "Excellent"}

	s.Require().NoError(s.cache.Put(s.ctx, first))
	s.Require().NoError(s.cache.Put(s.ctx, second))

	got, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("second", got.ReportID)
}

func (s *ReportCacheSuite) TestCorruptPayloadIsAMiss() {
	s.Require().NoError(s.container.Client.Set(s.ctx, "trialstore:quality:latest", "not json", time.Hour).Err())

	got, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *ReportCacheSuite) TestNilCacheIsAlwaysAMiss() {
	var nilCache *cache.ReportCache
	got, err := nilCache.Get(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)
	s.NoError(nilCache.Put(s.ctx, &quality.Report{}))
}
