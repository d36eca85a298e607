// Package jobs contains the scheduled jobs of the networking service.
package jobs

import (
	"context"
	"sync/atomic"

	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// Toggle reports whether optional behaviour is on. It is read on every run
// so feature flags can change at runtime.
type Toggle func() bool

func on(t Toggle) bool { return t != nil && t() }

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE APPOINTMENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// AppointmentSweeper runs one appointment sweep.
type AppointmentSweeper interface {
	Handle(ctx context.Context, cmd command.CompleteAppointmentsCommand) (*command.CompleteAppointmentsResult, error)
}

// CompleteAppointmentsConfig contains configuration for the sweep job.
type CompleteAppointmentsConfig struct {
	// ExpirePending also cancels undecided requests whose slot has ended.
	ExpirePending Toggle

	// BatchSize bounds the number of requests per status per run.
	BatchSize int
}

// CompleteAppointmentsJob marks ended appointments COMPLETED.
type CompleteAppointmentsJob struct {
	sweeper AppointmentSweeper
	config  CompleteAppointmentsConfig
	log     *logger.Logger

	last atomic.Pointer[command.CompleteAppointmentsResult]
}

// NewCompleteAppointmentsJob creates the sweep job.
func NewCompleteAppointmentsJob(sweeper AppointmentSweeper, config CompleteAppointmentsConfig, log *logger.Logger) *CompleteAppointmentsJob {
	if config.BatchSize <= 0 {
		config.BatchSize = command.DefaultSweepBatchSize
	}
	if log == nil {
		log = logger.Default()
	}
	return &CompleteAppointmentsJob{
		sweeper: sweeper,
		config:  config,
		log:     log.With(logger.Component("job.complete_appointments")),
	}
}

// Name returns the job name.
func (j *CompleteAppointmentsJob) Name() string {
	return "complete_appointments"
}

// Description returns a human-readable description.
func (j *CompleteAppointmentsJob) Description() string {
	return "Marks accepted appointments of ended slots as completed and expires undecided requests"
}

// Run executes one sweep.
func (j *CompleteAppointmentsJob) Run(ctx context.Context) error {
	res, err := j.sweeper.Handle(ctx, command.CompleteAppointmentsCommand{
		ExpirePending: on(j.config.ExpirePending),
		BatchSize:     j.config.BatchSize,
	})
	if res != nil {
		j.last.Store(res)
	}
	if err != nil {
		return err
	}
	if res.Completed == j.config.BatchSize || res.Expired == j.config.BatchSize {
		j.log.Warn("sweep hit batch size, backlog continues next run", logger.Int("batch_size", j.config.BatchSize))
	}
	return nil
}

// LastResult returns the result of the most recent run.
func (j *CompleteAppointmentsJob) LastResult() *command.CompleteAppointmentsResult {
	return j.last.Load()
}
