package services

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// extractFrameSource writes synthetic JPEG frames into the requested
// directory, mimicking the ffmpeg dump.
type extractFrameSource struct {
	frameCount int
}

func (s *extractFrameSource) CountFrames(context.Context, string) (int, error) {
	return s.frameCount, nil
}

func (s *extractFrameSource) Frame(context.Context, string, int) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 256, 256)), nil
}

func (s *extractFrameSource) ExtractFrames(_ context.Context, _ string, outDir string, _, max int) ([]string, error) {
	n := s.frameCount
	if max > 0 && n > max {
		n = max
	}
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(outDir, "frame_"+string(rune('a'+i))+".jpg")
		f, err := os.Create(p)
		if err != nil {
			return nil, err
		}
		if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 256, 256)), nil); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
		paths = append(paths, p)
	}
	return paths, nil
}

type boxDetector struct {
	boxes []vision.Detection
}

func (d *boxDetector) Detect(image.Image, float64) ([]vision.Detection, error) {
	return d.boxes, nil
}

func extractionFixture(t *testing.T, detector vision.Detector) (*ExtractionService, *Paths, *SessionStore, model.Batch) {
	t.Helper()
	root := t.TempDir()
	paths := &Paths{StudentDataRoot: root, GalleryDataRoot: filepath.Join(root, "gallery"), GalleryRoot: root}
	sessions := NewSessionStore()
	batch := model.Batch{DeptCode: "DPT001", Year: "2025"}

	if _, err := paths.EnsureStudentDir(batch, "110121104001"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.VideoPath(batch, "110121104001"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Write(paths.SessionPath(batch, "110121104001"), &model.SessionDocument{
		RegNo:         "110121104001",
		VideoUploaded: true,
	}); err != nil {
		t.Fatal(err)
	}

	svc := NewExtractionService(testQualityConfig(), paths, sessions, &extractFrameSource{frameCount: 3}, detector)
	return svc, paths, sessions, batch
}

func TestExtractFacesWritesCropsAndSession(t *testing.T) {
	detector := &boxDetector{boxes: []vision.Detection{
		{Box: image.Rect(50, 50, 150, 150), Score: 0.9},
	}}
	svc, paths, sessions, batch := extractionFixture(t, detector)

	count, err := svc.ExtractFaces(context.Background(), batch, "110121104001")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected one crop per frame, got %d", count)
	}

	entries, err := os.ReadDir(paths.FacesDir(batch, "110121104001"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != count {
		t.Fatalf("facesCount %d does not match %d files on disk", count, len(entries))
	}

	doc, err := sessions.Read(paths.SessionPath(batch, "110121104001"))
	if err != nil {
		t.Fatal(err)
	}
	if !doc.FacesExtracted || !doc.FacesOrganized {
		t.Fatal("extraction flags not set")
	}
	if doc.FacesCount != count {
		t.Fatalf("session facesCount %d, want %d", doc.FacesCount, count)
	}
}

func TestExtractFacesRejectsTinyBoxes(t *testing.T) {
	detector := &boxDetector{boxes: []vision.Detection{
		{Box: image.Rect(0, 0, 10, 10), Score: 0.9},
	}}
	svc, _, _, batch := extractionFixture(t, detector)

	count, err := svc.ExtractFaces(context.Background(), batch, "110121104001")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("tiny boxes should be rejected, got %d crops", count)
	}
}

func TestExtractFacesRefusesFailedQuality(t *testing.T) {
	svc, paths, sessions, batch := extractionFixture(t, &boxDetector{})
	if _, err := sessions.Update(paths.SessionPath(batch, "110121104001"), func(d *model.SessionDocument) {
		d.QualityCheck = model.QualityFail
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ExtractFaces(context.Background(), batch, "110121104001"); err == nil {
		t.Fatal("expected refusal for failed quality check")
	}
}

func TestExtractFacesRequiresUpload(t *testing.T) {
	svc, paths, sessions, batch := extractionFixture(t, &boxDetector{})
	if _, err := sessions.Update(paths.SessionPath(batch, "110121104001"), func(d *model.SessionDocument) {
		d.VideoUploaded = false
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ExtractFaces(context.Background(), batch, "110121104001"); err == nil {
		t.Fatal("expected error without uploaded video")
	}
}

func TestExtractBatchRecordsPerStudentOutcomes(t *testing.T) {
	detector := &boxDetector{boxes: []vision.Detection{
		{Box: image.Rect(50, 50, 150, 150), Score: 0.9},
	}}
	svc, paths, sessions, batch := extractionFixture(t, detector)

	// Second student has a session but never uploaded a video.
	if _, err := paths.EnsureStudentDir(batch, "110121104002"); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Write(paths.SessionPath(batch, "110121104002"), &model.SessionDocument{
		RegNo: "110121104002",
	}); err != nil {
		t.Fatal(err)
	}
	// Stray files in the batch directory are not students.
	if err := os.WriteFile(filepath.Join(paths.BatchDir(batch), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := svc.ExtractBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("batch extraction failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].RegNo != "110121104001" || results[0].Error != "" || results[0].FaceCount != 3 {
		t.Fatalf("unexpected outcome for first student: %+v", results[0])
	}
	if results[1].RegNo != "110121104002" || results[1].Error == "" {
		t.Fatalf("expected recorded error for second student, got %+v", results[1])
	}
}

func TestExtractBatchRequiresBatchDirectory(t *testing.T) {
	svc, _, _, _ := extractionFixture(t, &boxDetector{})
	missing := model.Batch{DeptCode: "DPT999", Year: "2030"}
	if _, err := svc.ExtractBatch(context.Background(), missing); err == nil {
		t.Fatal("expected error for missing batch directory")
	}
}

func TestResetFacesClearsState(t *testing.T) {
	detector := &boxDetector{boxes: []vision.Detection{
		{Box: image.Rect(50, 50, 150, 150), Score: 0.9},
	}}
	svc, paths, sessions, batch := extractionFixture(t, detector)

	if _, err := svc.ExtractFaces(context.Background(), batch, "110121104001"); err != nil {
		t.Fatal(err)
	}
	if err := svc.ResetFaces(batch, "110121104001"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	if _, err := os.Stat(paths.FacesDir(batch, "110121104001")); !os.IsNotExist(err) {
		t.Fatal("faces directory not removed")
	}
	doc, err := sessions.Read(paths.SessionPath(batch, "110121104001"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.FacesExtracted || doc.FacesCount != 0 {
		t.Fatal("extraction flags not cleared")
	}
}
