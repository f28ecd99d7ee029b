// Package scheduler runs periodic housekeeping jobs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single run of a housekeeping job.
const jobTimeout = 30 * time.Second

// SessionPurger deletes expired and revoked admin sessions.
type SessionPurger interface {
	PurgeSessions(ctx context.Context) (int64, error)
}

// Scheduler handles scheduled tasks like purging stale admin sessions.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a new scheduler instance.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddSessionPurge registers the session purge on a cron spec such as
// "@hourly" or "*/15 * * * *".
func (s *Scheduler) AddSessionPurge(spec string, p SessionPurger) error {
	_, err := s.cron.AddFunc(spec, func() { s.purgeSessions(p) })
	return err
}

func (s *Scheduler) purgeSessions(p SessionPurger) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := p.PurgeSessions(ctx)
	if err != nil {
		s.logger.Error("failed to purge admin sessions", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("purged admin sessions", "count", n)
	}
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
