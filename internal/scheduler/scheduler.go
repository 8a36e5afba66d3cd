// Package scheduler runs periodic maintenance for the server.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger drops expired entries from an in-memory store.
type Purger interface {
	PurgeExpired()
}

// OverdueCounter counts open tasks whose due date has passed.
type OverdueCounter interface {
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger: logger,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *Scheduler) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a periodic job every given duration.
func (s *Scheduler) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

// Entries returns how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Jobs configures the maintenance jobs of the server.
type Jobs struct {
	PurgeInterval time.Duration
	Purgers       []Purger
	// DigestAt is HH:MM; empty disables the overdue digest.
	DigestAt string
	Overdue  OverdueCounter
}

// Register adds the maintenance jobs described by j.
func (s *Scheduler) Register(j Jobs) error {
	if len(j.Purgers) > 0 {
		if _, err := s.ScheduleInterval(j.PurgeInterval, PurgeAll(j.Purgers...)); err != nil {
			return fmt.Errorf("schedule purge: %w", err)
		}
	}
	if j.DigestAt != "" && j.Overdue != nil {
		if _, err := s.ScheduleDaily(j.DigestAt, OverdueDigest(j.Overdue, s.logger, time.Now)); err != nil {
			return fmt.Errorf("schedule overdue digest: %w", err)
		}
	}
	return nil
}

// PurgeAll returns a job that purges every store.
func PurgeAll(purgers ...Purger) func() {
	return func() {
		for _, p := range purgers {
			p.PurgeExpired()
		}
	}
}

// OverdueDigest returns a job that logs how many tasks are overdue.
func OverdueDigest(counter OverdueCounter, logger *zap.Logger, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := counter.CountOverdue(ctx, now())
		if err != nil {
			logger.Error("overdue digest", zap.Error(err))
			return
		}
		logger.Info("overdue digest", zap.Int64("overdue_tasks", n))
	}
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
