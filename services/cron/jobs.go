package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sahilchouksey/face-gallery-api/model"
)

// SyncGalleries reconciles the gallery registration table with the
// artifacts on disk. Runs every 6 hours.
func (m *CronManager) SyncGalleries() {
	jobName := "sync_galleries"

	added, removed, err := m.galleries.SyncGalleries()
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Registered %d artifacts, removed %d stale rows", added, removed))
}

// QualitySweepUntested runs the quality gate over every batch that has
// uploaded but untested videos. Runs daily; batches with a sweep
// already in flight are skipped.
func (m *CronManager) QualitySweepUntested() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	jobName := "quality_sweep"

	batches, err := m.batches.ListDataBatches()
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	swept := 0
	skipped := 0
	for _, batch := range batches {
		if m.sweep.Running(batch) {
			log.Printf("[CRON] Sweep already running for %s, skipping", batch)
			skipped++
			continue
		}

		report, err := m.sweep.RunBatch(ctx, batch, false)
		if err != nil {
			// Batches without uploads are routine, not failures.
			log.Printf("[CRON] Sweep skipped for %s: %v", batch, err)
			skipped++
			continue
		}
		log.Printf("[CRON] Sweep for %s: %d checked", batch, report.TotalChecked)
		swept++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Swept %d batches, skipped %d", swept, skipped))
}

// CleanupOldData removes leftover temp files from interrupted uploads
// and prunes old cron job logs. Runs daily at 3 AM.
func (m *CronManager) CleanupOldData() {
	jobName := "cleanup_old_data"

	totalCleaned := 0

	// 1. Remove temp uploads and half-written files older than a day.
	cutoff := time.Now().Add(-24 * time.Hour)
	cleaned := 0
	filepath.Walk(m.paths.StudentDataRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		stale := strings.HasSuffix(path, ".tmp") || strings.HasSuffix(path, "_temp.webm")
		if stale && info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr != nil {
				log.Printf("[CRON] Failed to remove stale file %s: %v", path, rmErr)
				return nil
			}
			cleaned++
		}
		return nil
	})
	log.Printf("[CRON] Cleaned %d stale temp files", cleaned)
	totalCleaned += cleaned

	// 2. Keep only the last 90 days of job logs.
	cutoffLogs := time.Now().Add(-90 * 24 * time.Hour)
	result := m.db.Where("created_at < ?", cutoffLogs).Delete(&model.CronJobLog{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean cron logs: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old cron logs", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cleaned up %d total records", totalCleaned))
}
