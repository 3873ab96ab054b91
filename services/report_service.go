package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/utils/cache"
)

const reportSummaryTTL = 10 * time.Minute

// StudentQualityResult is one student's outcome inside a sweep.
type StudentQualityResult struct {
	RegNo  string
	Status model.QualityStatus
	Issues []string
}

// ReportSummary is the cached batch-level view of the current report.
type ReportSummary struct {
	Department      string    `json:"department"`
	Year            string    `json:"year"`
	TotalChecked    int       `json:"total_checked"`
	PassedCount     int       `json:"passed_count"`
	FailedCount     int       `json:"failed_count"`
	BorderlineCount int       `json:"borderline_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReportService persists quality sweep outcomes. Only the newest report
// per batch is kept.
type ReportService struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

// NewReportService creates a new report service. The cache may be nil;
// summaries are then always read from the database.
func NewReportService(db *gorm.DB, redisCache *cache.RedisCache) *ReportService {
	return &ReportService{db: db, cache: redisCache}
}

// SaveReport replaces the batch's report with a fresh one. The old
// report and its rows are deleted in the same transaction as the
// insert, so a reader never observes zero or two reports for a batch.
func (r *ReportService) SaveReport(ctx context.Context, batch model.Batch, results []StudentQualityResult) (*model.QualityCheckReport, error) {
	report := &model.QualityCheckReport{
		ReportUID:    uuid.NewString(),
		Department:   batch.DeptCode,
		Year:         batch.Year,
		TotalChecked: len(results),
	}

	rows := make([]model.QualityCheckResult, 0, len(results))
	for _, res := range results {
		switch res.Status {
		case model.QualityStatusPass:
			report.PassedCount++
		case model.QualityStatusFail:
			report.FailedCount++
		case model.QualityStatusBorderline:
			report.BorderlineCount++
		default:
			return nil, fmt.Errorf("unknown quality status %q for %s", res.Status, res.RegNo)
		}

		row := model.QualityCheckResult{
			StudentID: res.RegNo,
			Status:    res.Status,
		}
		if len(res.Issues) > 0 {
			issuesJSON, err := json.Marshal(res.Issues)
			if err != nil {
				return nil, fmt.Errorf("failed to encode issues for %s: %w", res.RegNo, err)
			}
			row.Issues = datatypes.JSON(issuesJSON)
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []model.QualityCheckReport
		if err := tx.Where("department = ? AND year = ?", batch.DeptCode, batch.Year).Find(&stale).Error; err != nil {
			return err
		}
		for _, old := range stale {
			if err := tx.Where("report_id = ?", old.ID).Delete(&model.QualityCheckResult{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&old).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(report).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].ReportID = report.ID
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save quality report: %w", err)
	}
	report.Results = rows

	if r.cache != nil {
		summary := r.summaryOf(report)
		if err := r.cache.SetJSON(ctx, r.summaryKey(batch), summary, reportSummaryTTL); err != nil {
			log.Printf("Failed to cache report summary for %s: %v", batch, err)
		}
	}

	log.Printf("Quality report saved for %s: %d checked (%d pass / %d fail / %d borderline)",
		batch, report.TotalChecked, report.PassedCount, report.FailedCount, report.BorderlineCount)
	return report, nil
}

// GetReport returns the current report for a batch with its rows.
func (r *ReportService) GetReport(ctx context.Context, batch model.Batch) (*model.QualityCheckReport, error) {
	var report model.QualityCheckReport
	err := r.db.WithContext(ctx).
		Preload("Results").
		Where("department = ? AND year = ?", batch.DeptCode, batch.Year).
		Order("created_at DESC").
		First(&report).Error
	if err != nil {
		return nil, fmt.Errorf("no quality report for %s: %w", batch, err)
	}
	return &report, nil
}

// GetSummary returns the batch summary, served from cache when warm.
func (r *ReportService) GetSummary(ctx context.Context, batch model.Batch) (*ReportSummary, error) {
	if r.cache != nil {
		var cached ReportSummary
		if err := r.cache.GetJSON(ctx, r.summaryKey(batch), &cached); err == nil {
			return &cached, nil
		}
	}

	report, err := r.GetReport(ctx, batch)
	if err != nil {
		return nil, err
	}
	summary := r.summaryOf(report)

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, r.summaryKey(batch), summary, reportSummaryTTL); err != nil {
			log.Printf("Failed to cache report summary for %s: %v", batch, err)
		}
	}
	return summary, nil
}

// StudentResults returns the per-student rows of the current report
// filtered by status; an empty status returns them all.
func (r *ReportService) StudentResults(ctx context.Context, batch model.Batch, status model.QualityStatus) ([]model.QualityCheckResult, error) {
	report, err := r.GetReport(ctx, batch)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return report.Results, nil
	}

	filtered := make([]model.QualityCheckResult, 0, len(report.Results))
	for _, row := range report.Results {
		if row.Status == status {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

func (r *ReportService) summaryOf(report *model.QualityCheckReport) *ReportSummary {
	return &ReportSummary{
		Department:      report.Department,
		Year:            report.Year,
		TotalChecked:    report.TotalChecked,
		PassedCount:     report.PassedCount,
		FailedCount:     report.FailedCount,
		BorderlineCount: report.BorderlineCount,
		CreatedAt:       report.CreatedAt,
	}
}

func (r *ReportService) summaryKey(batch model.Batch) string {
	return "quality_report:" + batch.Dir()
}
