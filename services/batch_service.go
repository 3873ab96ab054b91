package services

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/sahilchouksey/face-gallery-api/model"
)

// BatchService manages the batch year and department tables and lists
// the batches that actually have data on disk.
type BatchService struct {
	db    *gorm.DB
	paths *Paths
}

// NewBatchService creates a new batch service
func NewBatchService(db *gorm.DB, paths *Paths) *BatchService {
	return &BatchService{db: db, paths: paths}
}

// ListYears returns all batch years, newest first.
func (b *BatchService) ListYears() ([]model.BatchYear, error) {
	var years []model.BatchYear
	if err := b.db.Order("year DESC").Find(&years).Error; err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	return years, nil
}

// AddYear inserts a batch year if it does not exist.
func (b *BatchService) AddYear(year string) (*model.BatchYear, error) {
	row := model.BatchYear{Year: year}
	err := b.db.Where("year = ?", year).FirstOrCreate(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add year: %w", err)
	}
	return &row, nil
}

// ListDepartments returns all departments ordered by code.
func (b *BatchService) ListDepartments() ([]model.Department, error) {
	var depts []model.Department
	if err := b.db.Order("department_id").Find(&depts).Error; err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, nil
}

// AddDepartment inserts a department if the code is not taken.
func (b *BatchService) AddDepartment(code, name string) (*model.Department, error) {
	row := model.Department{DepartmentID: code, Name: name}
	err := b.db.Where("department_id = ?", code).FirstOrCreate(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add department: %w", err)
	}
	return &row, nil
}

// ListDataBatches lists the batches present in the student data
// directory.
func (b *BatchService) ListDataBatches() ([]model.Batch, error) {
	entries, err := os.ReadDir(b.paths.StudentDataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read student data directory: %w", err)
	}

	batches := make([]model.Batch, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		batch, parseErr := model.ParseBatchDir(entry.Name())
		if parseErr != nil {
			continue
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
