// Package cache keeps the latest quality report in Redis so repeated report
// requests between engine runs do not re-scan the corpus.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"trialstore/internal/platform/redis"
	"trialstore/internal/quality"
)

const reportKey = "trialstore:quality:latest"

// ReportCache stores one serialized report under a fixed key with a TTL.
// A nil *ReportCache (Redis unconfigured) is valid and behaves as a miss.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a cache over the given client, or nil when the client is nil.
func New(client *redis.Client, ttl time.Duration) *ReportCache {
	if client == nil {
		return nil
	}
	return &ReportCache{client: client, ttl: ttl}
}

// Get returns the cached report, or (nil, nil) on a miss. A corrupt payload
// is treated as a miss so a bad write can never wedge the endpoint.
func (c *ReportCache) Get(ctx context.Context) (*quality.Report, error) {
	if c == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, reportKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached report: %w", err)
	}
	var report quality.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, nil
	}
	return &report, nil
}

// Put stores the report for the cache TTL.
func (c *ReportCache) Put(ctx context.Context, report *quality.Report) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}
