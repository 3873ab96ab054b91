package model

import (
	"fmt"
	"strings"
	"time"
)

// BatchYear is a graduation year for which student data is collected.
type BatchYear struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Year      string    `gorm:"type:varchar(4);uniqueIndex;not null" json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// Department holds a teaching department. DepartmentID is the custom
// three-character code embedded in registration numbers, distinct from
// the surrogate row id.
type Department struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DepartmentID string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"department_id"`
	Name         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Batch identifies one department-year cohort. All on-disk artifacts for
// a batch live under a directory named DeptCode_GradYear.
type Batch struct {
	DeptCode string `json:"dept_code"`
	Year     string `json:"year"`
}

// Dir returns the directory name for this batch.
func (b Batch) Dir() string {
	return fmt.Sprintf("%s_%s", b.DeptCode, b.Year)
}

func (b Batch) String() string {
	return b.Dir()
}

// ParseBatchDir recovers a Batch from a DeptCode_GradYear directory or
// artifact name.
func ParseBatchDir(name string) (Batch, error) {
	name = strings.TrimSuffix(name, ".pth")
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Batch{}, fmt.Errorf("invalid batch name %q", name)
	}
	return Batch{DeptCode: parts[0], Year: parts[1]}, nil
}
