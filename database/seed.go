package database

import (
	"fmt"
	"log"

	"github.com/sahilchouksey/face-gallery-api/model"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions. Seeding is idempotent: default rows
// are only inserted when the respective table is empty.
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := s.SeedBatchYears(); err != nil {
		return fmt.Errorf("failed to seed batch years: %w", err)
	}

	if err := s.SeedDepartments(); err != nil {
		return fmt.Errorf("failed to seed departments: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedBatchYears inserts the default graduation years
func (s *Seeder) SeedBatchYears() error {
	var count int64
	if err := s.db.Model(&model.BatchYear{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Batch years already seeded, skipping")
		return nil
	}

	defaultYears := []string{"2029", "2028", "2027", "2026"}
	for _, year := range defaultYears {
		if err := s.db.Create(&model.BatchYear{Year: year}).Error; err != nil {
			return err
		}
	}

	log.Printf("Seeded %d default batch years", len(defaultYears))
	return nil
}

// SeedDepartments inserts the default departments with their custom codes
func (s *Seeder) SeedDepartments() error {
	var count int64
	if err := s.db.Model(&model.Department{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Departments already seeded, skipping")
		return nil
	}

	defaultDepartments := []model.Department{
		{DepartmentID: "DPT001", Name: "CS"},
		{DepartmentID: "DPT002", Name: "IT"},
		{DepartmentID: "DPT003", Name: "ECE"},
		{DepartmentID: "DPT004", Name: "EEE"},
		{DepartmentID: "DPT005", Name: "CIVIL"},
	}
	for i := range defaultDepartments {
		if err := s.db.Create(&defaultDepartments[i]).Error; err != nil {
			return err
		}
	}

	log.Printf("Seeded %d default departments", len(defaultDepartments))
	return nil
}
