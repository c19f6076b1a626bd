package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services/storage"
)

// DocumentHousekeeping is the document persistence the jobs need
type DocumentHousekeeping interface {
	FailStuck(ctx context.Context, cutoff time.Time, message string) (int64, error)
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.Document, error)
	ClearStorageKey(ctx context.Context, id string) error
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron    *cron.Cron
	docs    DocumentHousekeeping
	objects storage.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(docs DocumentHousekeeping, objects storage.Store, logger *zap.Logger) *CronManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))

	// seconds precision; a run still in progress makes the next tick skip
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &CronManager{
		cron:    c,
		docs:    docs,
		objects: objects,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	if err := m.registerJobs(); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("cron jobs started", zap.Int("jobs", len(m.cron.Entries())))
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// every 5 minutes: fail documents stuck in processing
	_, err := m.cron.AddFunc("0 */5 * * * *", func() {
		m.run("fail_stuck_documents", 2*time.Minute, func(ctx context.Context) (int, error) {
			n, err := m.FailStuckDocuments(ctx)
			return int(n), err
		})
	})
	if err != nil {
		return err
	}

	// hourly: delete stored bytes of finished documents
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.run("purge_stored_uploads", 10*time.Minute, m.PurgeStoredUploads)
	})
	return err
}

func (m *CronManager) run(jobName string, timeout time.Duration, job func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := m.now()
	n, err := job(ctx)
	if err != nil {
		m.logger.Error("cron job failed", zap.String("job", jobName), zap.Int("affected", n), zap.Error(err))
		return
	}
	m.logger.Info("cron job completed",
		zap.String("job", jobName),
		zap.Int("affected", n),
		zap.Duration("elapsed", m.now().Sub(start)),
	)
}
