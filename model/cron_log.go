package model

import "time"

// CronJobLog records one run of a scheduled job.
type CronJobLog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobName     string     `gorm:"type:varchar(100);index;not null" json:"job_name"`
	Status      string     `gorm:"type:varchar(20);not null" json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Message     string     `gorm:"type:text" json:"message,omitempty"`
	ErrorMsg    string     `gorm:"type:text" json:"error_msg,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
