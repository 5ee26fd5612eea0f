// File: internal/jobs/appointment_expiry.go
package jobs

import (
	"context"
	"time"

	"medibook_backend/internal/appointment"
	"medibook_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AppointmentExpiryJob cancels pending appointments whose date has passed.
type AppointmentExpiryJob struct {
	appointmentService appointment.Service
	logger             *zap.Logger
	cfg                *config.Config
	cronScheduler      *cron.Cron
}

// NewAppointmentExpiryJob creates a new AppointmentExpiryJob.
func NewAppointmentExpiryJob(
	appointmentService appointment.Service,
	logger *zap.Logger,
	cfg *config.Config,
) *AppointmentExpiryJob {
	cronLog := NewCronLogger(logger.Named("cron"))
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
	)

	return &AppointmentExpiryJob{
		appointmentService: appointmentService,
		logger:             logger.Named("AppointmentExpiryJob"),
		cfg:                cfg,
		cronScheduler:      scheduler,
	}
}

// SetupAndStart schedules and starts the cron job. An empty schedule
// disables the job.
func (j *AppointmentExpiryJob) SetupAndStart() error {
	jobSpec := j.cfg.AppointmentExpiryJobSchedule
	if jobSpec == "" {
		j.logger.Warn("Appointment expiry job schedule not defined (APPOINTMENT_EXPIRY_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.RunOnce)
	if err != nil {
		j.logger.Error("Failed to schedule appointment expiry job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Appointment expiry job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

// RunOnce performs a single expiry pass.
func (j *AppointmentExpiryJob) RunOnce() {
	j.logger.Info("Starting appointment expiry job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expiredCount, err := j.appointmentService.ExpireStalePending(ctx)
	if err != nil {
		j.logger.Error("Appointment expiry job run failed", zap.Error(err))
		return
	}
	j.logger.Info("Appointment expiry job run completed", zap.Int("appointments_expired", expiredCount))
}

// Stop gracefully stops the cron scheduler.
func (j *AppointmentExpiryJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping appointment expiry job scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Appointment expiry job scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Appointment expiry job scheduler stop timed out.")
	}
}
