package app

import (
	"fmt"

	"github.com/alem-hub/event-networking/config"
	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/internal/infrastructure/scheduler"
	"github.com/alem-hub/event-networking/internal/infrastructure/scheduler/jobs"
)

// NewScheduler registers the appointment sweep and the dirty suggestion
// refresh. Feature flags are read on every run.
func (i *Infrastructure) NewScheduler(queue command.RegenerationQueue) (*scheduler.Scheduler, error) {
	cfg := i.Config
	flag := func(name string) jobs.Toggle {
		return func() bool { return cfg.Features.IsEnabled(name) }
	}

	s := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:            i.Log,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
	})

	sweeper := command.NewCompleteAppointmentsHandler(i.Appointments, i.Registry, i.Bus, i.Clock, i.Log)
	sweep := jobs.NewCompleteAppointmentsJob(sweeper, jobs.CompleteAppointmentsConfig{
		ExpirePending: flag(config.FeatureExpirePendingRequests),
	}, i.Log)
	if err := s.Register(sweep, scheduler.Every(cfg.Scheduler.SweepInterval)); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweep.Name(), err)
	}

	refresh := jobs.NewRefreshSuggestionsJob(i.Cache, queue, flag(config.FeatureRegenerateOnSchedule), i.Log)
	if err := s.Register(refresh, scheduler.Every(cfg.Scheduler.RefreshInterval)); err != nil {
		return nil, fmt.Errorf("register %s: %w", refresh.Name(), err)
	}

	return s, nil
}
