// Package scheduler runs the bot's periodic jobs on KST wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"watchers/internal/kst"
	"watchers/internal/logging"
)

// Schedules used by the bot.
const (
	// DailyNoon fires at 12:00 KST.
	DailyNoon = "0 12 * * *"
	// Weekly fires every seven days counted from start-up.
	Weekly = "@every 168h"
)

// Job is a unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner whose jobs share one context, cancelled
// on Stop.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New creates a stopped Scheduler evaluating specs in KST.
func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(kst.Location)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job under name. A job still running when its next tick
// arrives makes that tick skip.
func (s *Scheduler) Add(name, spec string, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(name, job)
	}))
	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	logger := s.logger.With("job", name, "log_id", logging.NewLogID())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled job panicked", "panic", r)
		}
	}()
	logger.Debug("scheduled job started")
	if err := job(s.ctx); err != nil {
		logger.Error("scheduled job failed", "err", err)
		return
	}
	logger.Debug("scheduled job finished")
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
