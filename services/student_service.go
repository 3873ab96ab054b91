package services

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/utils/regno"
)

// StudentStatus is the combined database and on-disk view of one
// student's progress.
type StudentStatus struct {
	RegNo          string   `json:"reg_no"`
	Name           string   `json:"name"`
	Batch          string   `json:"batch"`
	VideoUploaded  bool     `json:"video_uploaded"`
	FacesExtracted bool     `json:"faces_extracted"`
	FacesCount     int      `json:"faces_count"`
	QualityCheck   string   `json:"quality_check"`
	QualityIssues  []string `json:"quality_issues,omitempty"`
}

// BatchSummary aggregates session state across one batch directory.
type BatchSummary struct {
	Batch         string `json:"batch"`
	TotalStudents int    `json:"total_students"`
	Uploaded      int    `json:"uploaded"`
	Extracted     int    `json:"extracted"`
	QualityPass   int    `json:"quality_pass"`
	QualityFail   int    `json:"quality_fail"`
	NotTested     int    `json:"not_tested"`
}

// StudentService manages student records and their session state.
type StudentService struct {
	db       *gorm.DB
	paths    *Paths
	sessions *SessionStore
}

// NewStudentService creates a new student service
func NewStudentService(db *gorm.DB, paths *Paths, sessions *SessionStore) *StudentService {
	return &StudentService{db: db, paths: paths, sessions: sessions}
}

// ResolveBatch derives a student's batch from the registration number
// and the department table. Unknown department digits fall back to the
// raw code so on-disk layout stays deterministic.
func (s *StudentService) ResolveBatch(reg string) (model.Batch, error) {
	info, err := regno.Parse(reg)
	if err != nil {
		return model.Batch{}, err
	}

	deptCode := info.DeptCode
	var student model.Student
	if err := s.db.Where("register_no = ?", reg).First(&student).Error; err == nil && student.DepartmentID != "" {
		deptCode = student.DepartmentID
	}

	return model.Batch{DeptCode: deptCode, Year: strconv.Itoa(info.GraduationYear)}, nil
}

// Upsert creates or refreshes a student row. An existing row is only
// widened: empty columns are filled, and a section value always wins
// over a blank one.
func (s *StudentService) Upsert(in model.Student) (*model.Student, error) {
	var existing model.Student
	err := s.db.Where("register_no = ?", in.RegisterNo).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := s.db.Create(&in).Error; err != nil {
			return nil, fmt.Errorf("failed to create student: %w", err)
		}
		return &in, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}

	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&existing.Name, in.Name)
	fill(&existing.DOB, in.DOB)
	fill(&existing.DepartmentID, in.DepartmentID)
	fill(&existing.Department, in.Department)
	fill(&existing.Batch, in.Batch)
	fill(&existing.Regulation, in.Regulation)
	fill(&existing.Semester, in.Semester)
	fill(&existing.Section, in.Section)

	if changed {
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update student: %w", err)
		}
	}
	return &existing, nil
}

// Status combines the database row with the session document.
func (s *StudentService) Status(batch model.Batch, reg string) (*StudentStatus, error) {
	doc, err := s.sessions.Read(s.paths.SessionPath(batch, reg))
	if err != nil {
		return nil, err
	}
	doc.ApplyDefaults(reg, batch.DeptCode, batch.Year)

	status := &StudentStatus{
		RegNo:          reg,
		Name:           doc.Name,
		Batch:          batch.Dir(),
		VideoUploaded:  doc.VideoUploaded,
		FacesExtracted: doc.FacesExtracted,
		FacesCount:     doc.FacesCount,
		QualityCheck:   doc.QualityCheck,
		QualityIssues:  doc.QualityIssues,
	}

	var student model.Student
	if err := s.db.Where("register_no = ?", reg).First(&student).Error; err == nil && student.Name != "" {
		status.Name = student.Name
	}
	return status, nil
}

// ListBatchStudents walks the batch directory and returns the status of
// every student found there.
func (s *StudentService) ListBatchStudents(batch model.Batch) ([]StudentStatus, error) {
	entries, err := os.ReadDir(s.paths.BatchDir(batch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	statuses := make([]StudentStatus, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		status, err := s.Status(batch, entry.Name())
		if err != nil {
			log.Printf("Skipping student %s: %v", entry.Name(), err)
			continue
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// Summary aggregates a batch's session state.
func (s *StudentService) Summary(batch model.Batch) (*BatchSummary, error) {
	statuses, err := s.ListBatchStudents(batch)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Batch: batch.Dir(), TotalStudents: len(statuses)}
	for _, st := range statuses {
		if st.VideoUploaded {
			summary.Uploaded++
		}
		if st.FacesExtracted {
			summary.Extracted++
		}
		switch st.QualityCheck {
		case model.QualityPass:
			summary.QualityPass++
		case model.QualityFail:
			summary.QualityFail++
		default:
			summary.NotTested++
		}
	}
	return summary, nil
}

// DeleteByQuality removes the whole directory of every student in the
// batch whose quality check landed on the given value. Returns the
// register numbers that were deleted.
func (s *StudentService) DeleteByQuality(batch model.Batch, quality string) ([]string, error) {
	statuses, err := s.ListBatchStudents(batch)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0)
	for _, st := range statuses {
		if st.QualityCheck != quality {
			continue
		}
		if err := os.RemoveAll(s.paths.StudentDir(batch, st.RegNo)); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", st.RegNo, err)
		}
		deleted = append(deleted, st.RegNo)
	}
	log.Printf("Deleted %d students with quality=%s from %s", len(deleted), quality, batch)
	return deleted, nil
}

// PromoteBorderline marks a borderline student's recording as accepted.
// Only borderline sessions are eligible.
func (s *StudentService) PromoteBorderline(batch model.Batch, reg string) error {
	sessionPath := s.paths.SessionPath(batch, reg)
	doc, err := s.sessions.Read(sessionPath)
	if err != nil {
		return err
	}
	if doc.QualityCategory != model.QualityBorderline {
		return fmt.Errorf("student %s is %q, not borderline", reg, doc.QualityCategory)
	}

	_, err = s.sessions.Update(sessionPath, func(d *model.SessionDocument) {
		d.QualityCheck = model.QualityPass
		d.QualityCategory = model.QualityPass
	})
	if err == nil {
		log.Printf("Promoted borderline student %s (%s)", reg, batch)
	}
	return err
}

// DatabaseStats reports row counts for the dashboard.
func (s *StudentService) DatabaseStats() (map[string]int64, error) {
	stats := map[string]int64{}
	counts := []struct {
		name  string
		model interface{}
	}{
		{"students", &model.Student{}},
		{"departments", &model.Department{}},
		{"batch_years", &model.BatchYear{}},
		{"galleries", &model.Gallery{}},
		{"quality_reports", &model.QualityCheckReport{}},
	}
	for _, c := range counts {
		var n int64
		if err := s.db.Model(c.model).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
		stats[c.name] = n
	}
	return stats, nil
}
