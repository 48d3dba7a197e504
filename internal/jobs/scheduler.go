// Package jobs runs the scheduled background work: the nightly quality run
// and the weekly database optimize.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 10 * time.Minute

// Scheduler owns the cron instance. Every job gets a bounded context so a
// hung database never pins a goroutine forever.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New builds a scheduler with standard 5-field cron specs.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// Add schedules a named job.
func (s *Scheduler) Add(name, spec string, run func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			s.log.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.log.Info("scheduled job completed", "job", name, "duration", time.Since(start))
	})
	return err
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
