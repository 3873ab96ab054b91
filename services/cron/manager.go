package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services"
)

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron      *cron.Cron
	db        *gorm.DB
	paths     *services.Paths
	sweep     *services.QualitySweep
	galleries *services.GalleryService
	batches   *services.BatchService
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, paths *services.Paths, sweep *services.QualitySweep,
	galleries *services.GalleryService, batches *services.BatchService) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:      c,
		db:        db,
		paths:     paths,
		sweep:     sweep,
		galleries: galleries,
		batches:   batches,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every 6 hours: reconcile gallery registrations with disk
	_, err := m.cron.AddFunc("0 0 */6 * * *", func() {
		m.logJobStart("sync_galleries")
		m.SyncGalleries()
	})
	if err != nil {
		return err
	}

	// 2. Daily at 1 AM: quality-check batches with untested uploads
	_, err = m.cron.AddFunc("0 0 1 * * *", func() {
		m.logJobStart("quality_sweep")
		m.QualitySweepUntested()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: remove stale temp files and old job logs
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("cleanup_old_data")
		m.CleanupOldData()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": time.Now(),
			"message":      message,
		})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
