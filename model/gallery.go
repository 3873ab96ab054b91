package model

import "time"

// Gallery tracks a gallery artifact registered for a department-year
// batch. The registration key is (YearID, DepartmentID); re-registering
// the same key is an upsert.
type Gallery struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	YearID        uint      `gorm:"index;not null" json:"year_id"`
	DepartmentID  uint      `gorm:"index;not null" json:"department_id"`
	FilePath      string    `gorm:"type:text;uniqueIndex;not null" json:"file_path"`
	IdentityCount int       `gorm:"default:0" json:"identity_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	Year       BatchYear  `gorm:"foreignKey:YearID" json:"year,omitempty"`
	Department Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}
