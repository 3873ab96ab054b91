package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sahilchouksey/face-gallery-api/model"
)

// QualitySweep runs the quality gate across every student of a batch
// and persists the resulting report. At most one sweep per batch runs
// at a time; a second request while one is in flight is rejected.
type QualitySweep struct {
	quality  *QualityService
	students *StudentService
	reports  *ReportService

	mu      sync.Mutex
	running map[string]bool
}

// NewQualitySweep creates a new sweep orchestrator
func NewQualitySweep(quality *QualityService, students *StudentService, reports *ReportService) *QualitySweep {
	return &QualitySweep{
		quality:  quality,
		students: students,
		reports:  reports,
		running:  make(map[string]bool),
	}
}

// Running reports whether a sweep for the batch is in flight.
func (s *QualitySweep) Running(batch model.Batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[batch.Dir()]
}

func (s *QualitySweep) tryAcquire(batch model.Batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[batch.Dir()] {
		return false
	}
	s.running[batch.Dir()] = true
	return true
}

func (s *QualitySweep) release(batch model.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, batch.Dir())
}

// RunBatch checks every uploaded video in the batch. Students whose
// session already carries a tested result are reused unless force is
// set. The batch's report row is replaced on completion.
func (s *QualitySweep) RunBatch(ctx context.Context, batch model.Batch, force bool) (*model.QualityCheckReport, error) {
	if !s.tryAcquire(batch) {
		return nil, fmt.Errorf("quality sweep already running for %s", batch)
	}
	defer s.release(batch)

	statuses, err := s.students.ListBatchStudents(batch)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("no students found for batch %s", batch)
	}

	results := make([]StudentQualityResult, 0, len(statuses))
	for _, st := range statuses {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !st.VideoUploaded {
			continue
		}

		if !force && st.QualityCheck != model.QualityNotTested && st.QualityCheck != "" {
			// Reuse the stored outcome instead of re-decoding the video.
			results = append(results, s.resultFromSession(batch, st.RegNo))
			continue
		}

		checked, err := s.quality.CheckStudent(ctx, batch, st.RegNo)
		if err != nil {
			log.Printf("Sweep: quality check failed for %s: %v", st.RegNo, err)
			results = append(results, StudentQualityResult{
				RegNo:  st.RegNo,
				Status: model.QualityStatusFail,
				Issues: []string{"Quality check could not be completed"},
			})
			continue
		}

		results = append(results, StudentQualityResult{
			RegNo:  st.RegNo,
			Status: categoryToStatus(checked.Category),
			Issues: checked.Issues(),
		})
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no uploaded videos to check for %s", batch)
	}
	return s.reports.SaveReport(ctx, batch, results)
}

func (s *QualitySweep) resultFromSession(batch model.Batch, regNo string) StudentQualityResult {
	doc, err := s.quality.sessions.Read(s.quality.paths.SessionPath(batch, regNo))
	if err != nil {
		return StudentQualityResult{RegNo: regNo, Status: model.QualityStatusFail}
	}
	return StudentQualityResult{
		RegNo:  regNo,
		Status: categoryToStatus(doc.QualityCategory),
		Issues: doc.QualityIssues,
	}
}

func categoryToStatus(category string) model.QualityStatus {
	switch category {
	case model.QualityPass:
		return model.QualityStatusPass
	case model.QualityBorderline:
		return model.QualityStatusBorderline
	default:
		return model.QualityStatusFail
	}
}
