package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// auditCleanupSchedule runs the audit purge at 4:00 AM every Sunday
// (second minute hour day month weekday)
const auditCleanupSchedule = "0 0 4 * * 0"

// ExpirySweeper is the part of the booking service the scheduler drives
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, trigger string) (int64, error)
}

// AuditCleaner purges old audit rows
type AuditCleaner interface {
	CleanupOldAuditLogs(olderThan time.Duration) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron           *cron.Cron
	sweeper        ExpirySweeper
	auditor        AuditCleaner
	sweepSchedule  string
	auditRetention time.Duration
	jobTimeout     time.Duration
	logger         *logrus.Logger
}

// NewCronService creates a new CronService. An empty sweepSchedule leaves
// expiry to the read-triggered sweeps.
func NewCronService(sweeper ExpirySweeper, auditor AuditCleaner, sweepSchedule string, auditRetention time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:           cron.New(cron.WithSeconds()),
		sweeper:        sweeper,
		auditor:        auditor,
		sweepSchedule:  sweepSchedule,
		auditRetention: auditRetention,
		jobTimeout:     time.Minute,
		logger:         logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if s.sweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.sweepSchedule, s.expireBookingsJob); err != nil {
			return fmt.Errorf("failed to schedule booking expiry job: %w", err)
		}
		s.logger.WithField("schedule", s.sweepSchedule).Info("Scheduled: Expire stale amenity bookings")
	}

	if s.auditor != nil && s.auditRetention > 0 {
		if _, err := s.cron.AddFunc(auditCleanupSchedule, s.cleanupAuditLogsJob); err != nil {
			return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
		}
		s.logger.WithField("schedule", auditCleanupSchedule).Info("Scheduled: Cleanup old audit logs")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// expireBookingsJob runs the same sweep as the read paths
func (s *CronService) expireBookingsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	startTime := time.Now()
	expired, err := s.sweeper.SweepExpired(ctx, SweepTriggerCron)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to expire stale bookings")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"expired":  expired,
		"duration": time.Since(startTime).String(),
	}).Debug("[CRON] Booking expiry sweep finished")
}

// cleanupAuditLogsJob removes audit rows past the retention window
func (s *CronService) cleanupAuditLogsJob() {
	startTime := time.Now()
	removed, err := s.auditor.CleanupOldAuditLogs(s.auditRetention)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup audit logs")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"removed":  removed,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Cleaned up old audit logs")
}

// RunExpireBookingsNow runs the expiry job immediately
func (s *CronService) RunExpireBookingsNow() {
	s.logger.Info("[MANUAL] Running booking expiry sweep now...")
	s.expireBookingsJob()
}
