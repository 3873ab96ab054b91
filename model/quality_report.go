package model

import (
	"time"

	"gorm.io/datatypes"
)

// QualityStatus is the per-student outcome recorded in a report.
type QualityStatus string

const (
	QualityStatusPass       QualityStatus = "pass"
	QualityStatusFail       QualityStatus = "fail"
	QualityStatusBorderline QualityStatus = "borderline"
)

// QualityCheckReport is the batch-level summary of one quality sweep.
// Only one report per (department, year) is current: saving a new one
// deletes the previous report and its results in the same transaction.
type QualityCheckReport struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ReportUID       string    `gorm:"type:varchar(36);uniqueIndex" json:"report_uid"`
	Department      string    `gorm:"type:varchar(10);index:idx_report_batch;not null" json:"department"`
	Year            string    `gorm:"type:varchar(4);index:idx_report_batch;not null" json:"year"`
	TotalChecked    int       `gorm:"not null" json:"total_checked"`
	PassedCount     int       `gorm:"not null" json:"passed_count"`
	FailedCount     int       `gorm:"not null" json:"failed_count"`
	BorderlineCount int       `gorm:"not null" json:"borderline_count"`
	CreatedAt       time.Time `json:"created_at"`

	// Relationships
	Results []QualityCheckResult `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}

// QualityCheckResult is one student's row inside a report. Issues holds
// a JSON array of human-readable strings for borderline students.
type QualityCheckResult struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ReportID  uint           `gorm:"index;not null" json:"report_id"`
	StudentID string         `gorm:"type:varchar(20);not null" json:"student_id"`
	Status    QualityStatus  `gorm:"type:varchar(15);not null" json:"status"`
	Issues    datatypes.JSON `gorm:"type:jsonb" json:"issues,omitempty"`
}
