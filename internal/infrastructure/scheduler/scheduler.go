package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Logger is the narrow slice of the app logger the scheduler needs.
type Logger interface {
	Errorf(template string, args ...interface{})
}

// Scheduler runs recurring jobs on 6-field cron specs (seconds included).
// Job errors are logged, never propagated; a failing job runs again at
// its next tick.
type Scheduler struct {
	cron   *cron.Cron
	logger Logger
}

func New(logger Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			s.logger.Errorf("Scheduled job failed: %v", err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
