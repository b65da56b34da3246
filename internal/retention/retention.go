// Package retention periodically purges prediction runs older than a retention window.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the purge daily at 03:00.
const DefaultSchedule = "0 3 * * *"

const stopTimeout = 30 * time.Second

// Purger deletes runs created before cutoff and reports how many were removed.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// Status describes the scheduler for status endpoints.
type Status struct {
	Schedule      string    `json:"schedule"`
	RetentionDays int       `json:"retention_days"`
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastPurged    int       `json:"last_purged"`
	LastError     string    `json:"last_error,omitempty"`
	NextRun       time.Time `json:"next_run,omitempty"`
}

// Scheduler runs a Purger on a cron schedule.
type Scheduler struct {
	purger   Purger
	days     int
	schedule string
	cron     *cron.Cron
	entry    cron.EntryID
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	status  Status
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler keeping days of runs. An empty schedule uses DefaultSchedule.
func New(purger Purger, days int, schedule string, opts ...Option) (*Scheduler, error) {
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", days)
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	s := &Scheduler{
		purger:   purger,
		days:     days,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status = Status{Schedule: schedule, RetentionDays: days}
	return s, nil
}

// Start schedules the purge.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("retention scheduler is already running")
	}
	id, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.RunNow(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", zap.String("schedule", s.schedule), zap.Int("days", s.days))
	return nil
}

// Stop stops the schedule and waits for a purge in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("retention scheduler stop timed out")
	}
}

// Cutoff returns the creation time before which runs are purged.
func (s *Scheduler) Cutoff() time.Time {
	return s.now().AddDate(0, 0, -s.days)
}

// RunNow purges immediately and records the outcome.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	start := s.now()
	cutoff := s.Cutoff()
	n, err := s.purger.Purge(ctx, cutoff)

	s.mu.Lock()
	s.status.LastRun = start
	s.status.LastPurged = n
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("retention purge failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return n, err
	}
	s.logger.Info("retention purge complete", zap.Time("cutoff", cutoff), zap.Int("purged", n))
	return n, nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	st := s.status
	st.Running = s.running
	s.mu.RUnlock()
	if st.Running {
		st.NextRun = s.cron.Entry(s.entry).Next
	}
	return st
}
