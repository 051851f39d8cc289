package scheduler

import (
	"context"
	"fmt"
	"time"

	"threadspire/internal/logger"

	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	jobs    map[string]cron.EntryID
	timeout time.Duration
}

func New(timezone string, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		log:     log.With("component", "Scheduler"),
		jobs:    make(map[string]cron.EntryID),
		timeout: 30 * time.Minute,
	}, nil
}

// AddJob registers job under name with a standard five field schedule,
// e.g. "0 3 * * *" for 03:00 daily.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("job failed", "job", name, "error", err)
			return
		}
		s.log.Info("job completed", "job", name, "elapsed", time.Since(start).String())
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.jobs[name] = id
	s.log.Info("job added", "job", name, "schedule", schedule)
	return nil
}

// Next reports the next run time of a job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
