package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TierReconciler re-evaluates every user's cached tier
type TierReconciler interface {
	ReconcileTiers(ctx context.Context) (int, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	reconciler TierReconciler
	schedule   string
	jobTimeout time.Duration
	logger     *logrus.Logger
}

// NewCronService creates a new CronService. schedule uses the six-field
// format: second minute hour day month weekday.
func NewCronService(reconciler TierReconciler, schedule string, jobTimeout time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:       cron.New(cron.WithSeconds()),
		reconciler: reconciler,
		schedule:   schedule,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if _, err := s.cron.AddFunc(s.schedule, s.reconcileTiersJob); err != nil {
		return fmt.Errorf("failed to schedule tier reconciliation job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: tier reconciliation")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// RunReconcileTiersNow runs the reconciliation job immediately
func (s *CronService) RunReconcileTiersNow() {
	s.logger.Info("[MANUAL] Running tier reconciliation now...")
	s.reconcileTiersJob()
}

func (s *CronService) reconcileTiersJob() {
	startTime := time.Now()
	ctx := context.Background()
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	changed, err := s.reconciler.ReconcileTiers(ctx)
	log := s.logger.WithFields(logrus.Fields{
		"changed":  changed,
		"duration": time.Since(startTime).String(),
	})
	if err != nil {
		log.WithError(err).Error("[CRON] Tier reconciliation finished with errors")
		return
	}
	log.Info("[CRON] Tier reconciliation finished")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
