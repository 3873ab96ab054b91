package services

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"testing"

	"github.com/sahilchouksey/face-gallery-api/config"
	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

func testQualityConfig() config.QualityConfig {
	return config.QualityConfig{
		SampleCount:   50,
		DetectorConf:  0.65,
		MinTotalFaces: 3,
		MinBlurScore:  50,
		MinContrast:   20,
		MinFaceSize:   60,
		MaxMotionBlur: 80,
		PoseCheck:     false,
	}
}

func goodFrame(index int) FrameStats {
	return FrameStats{
		Index:      index,
		FaceCount:  1,
		FaceSize:   120,
		Blur:       90,
		Contrast:   45,
		MotionBlur: 30,
		Pose:       vision.PoseUnknown,
	}
}

func TestClassifyQualityPass(t *testing.T) {
	stats := make([]FrameStats, 50)
	for i := range stats {
		stats[i] = goodFrame(i)
	}

	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityPass {
		t.Fatalf("expected pass, got %s with issues %v", result.Category, result.Issues())
	}
	if len(result.Issues()) != 0 {
		t.Fatalf("expected no issues, got %v", result.Issues())
	}
	if result.Details["total_faces"] != 50 {
		t.Errorf("expected 50 total faces, got %f", result.Details["total_faces"])
	}
}

func TestClassifyQualityNoFacesIsCritical(t *testing.T) {
	stats := make([]FrameStats, 10)
	for i := range stats {
		stats[i] = FrameStats{Index: i, Blur: 90, Contrast: 45, MotionBlur: 30}
	}

	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityFail {
		t.Fatalf("expected fail, got %s", result.Category)
	}
	if len(result.CriticalIssues) == 0 {
		t.Fatal("expected a critical issue for zero faces")
	}
}

func TestClassifyQualityTooFewFacesIsCritical(t *testing.T) {
	stats := []FrameStats{goodFrame(0), goodFrame(1)}
	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityFail {
		t.Fatalf("expected fail for 2 total faces, got %s", result.Category)
	}
}

func TestClassifyQualityMultiFaceIsCritical(t *testing.T) {
	stats := make([]FrameStats, 5)
	for i := range stats {
		stats[i] = goodFrame(i)
	}
	stats[4].FaceCount = 2

	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityFail {
		t.Fatalf("expected fail, got %s", result.Category)
	}
	found := false
	for _, issue := range result.CriticalIssues {
		if issue == "Multiple faces detected in frame 4" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected multi-face critical issue, got %v", result.CriticalIssues)
	}
}

func TestClassifyQualityBlurIsBorderline(t *testing.T) {
	stats := make([]FrameStats, 20)
	for i := range stats {
		stats[i] = goodFrame(i)
		stats[i].Blur = 10
	}

	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityBorderline {
		t.Fatalf("expected borderline, got %s", result.Category)
	}
	found := false
	for _, issue := range result.MajorIssues {
		if issue == "Video too blurry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected blur major issue, got %v", result.MajorIssues)
	}
}

func TestClassifyQualityMidBandBlurIsBorderline(t *testing.T) {
	stats := make([]FrameStats, 20)
	for i := range stats {
		stats[i] = goodFrame(i)
		stats[i].Blur = 30
	}

	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityBorderline {
		t.Fatalf("expected borderline for blur between 15 and 50, got %s", result.Category)
	}
	found := false
	for _, issue := range result.MajorIssues {
		if issue == "Video too blurry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected blur major issue, got %v", result.MajorIssues)
	}
}

func TestClassifyQualityMotionBlurIsMinor(t *testing.T) {
	stats := make([]FrameStats, 20)
	for i := range stats {
		stats[i] = goodFrame(i)
		stats[i].MotionBlur = 95
	}

	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityBorderline {
		t.Fatalf("expected borderline, got %s", result.Category)
	}
	if len(result.MinorIssues) == 0 {
		t.Fatal("expected motion blur minor issue")
	}
	if len(result.MajorIssues) != 0 {
		t.Fatalf("unexpected major issues %v", result.MajorIssues)
	}
}

func TestClassifyQualityMissingPoseIsMinor(t *testing.T) {
	cfg := testQualityConfig()
	cfg.PoseCheck = true

	stats := make([]FrameStats, 20)
	for i := range stats {
		stats[i] = goodFrame(i)
		stats[i].Pose = vision.PoseFront
	}

	result := ClassifyQuality(stats, cfg)
	if result.Category != model.QualityBorderline {
		t.Fatalf("expected borderline for missing side pose, got %s", result.Category)
	}
	found := false
	for _, issue := range result.MinorIssues {
		if issue == "Missing required pose: side" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing pose issue, got %v", result.MinorIssues)
	}
}

func TestCheckVideoSkipsPoseWithoutEstimator(t *testing.T) {
	cfg := testQualityConfig()
	cfg.PoseCheck = true

	frames := &fakeFrameSource{total: 200}
	detector := &fakeDetector{facesAt: func(int) int { return 1 }}
	svc := NewQualityService(cfg, nil, nil, frames, detector, nil)

	result, err := svc.CheckVideo(context.Background(), "video.mp4")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	for _, issue := range result.Issues() {
		if strings.Contains(issue, "Missing required pose") {
			t.Fatalf("pose issues must not be raised without an estimator: %v", result.Issues())
		}
	}
}

func TestClassifyQualityCriticalBeatsMajor(t *testing.T) {
	stats := []FrameStats{{Index: 0, Blur: 5, Contrast: 5}}
	result := ClassifyQuality(stats, testQualityConfig())
	if result.Category != model.QualityFail {
		t.Fatalf("critical should win, got %s", result.Category)
	}
}

// fakeFrameSource serves synthetic frames and a fixed frame count.
type fakeFrameSource struct {
	total   int
	decoded []int
}

func (f *fakeFrameSource) CountFrames(context.Context, string) (int, error) {
	return f.total, nil
}

func (f *fakeFrameSource) Frame(_ context.Context, _ string, index int) (image.Image, error) {
	f.decoded = append(f.decoded, index)
	return image.NewGray(image.Rect(0, 0, 64, 64)), nil
}

func (f *fakeFrameSource) ExtractFrames(context.Context, string, string, int, int) ([]string, error) {
	return nil, nil
}

// fakeDetector returns a fixed number of faces per frame index.
type fakeDetector struct {
	facesAt func(index int) int
	calls   int
}

func (d *fakeDetector) Detect(image.Image, float64) ([]vision.Detection, error) {
	// Detect is invoked once per decoded frame in order, so the call
	// counter stands in for the frame index.
	n := d.facesAt(d.calls)
	d.calls++
	dets := make([]vision.Detection, n)
	for i := range dets {
		dets[i] = vision.Detection{Box: image.Rect(0, 0, 100, 100), Score: 0.9}
	}
	return dets, nil
}

func TestCheckVideoShortCircuitsOnMultiFace(t *testing.T) {
	frames := &fakeFrameSource{total: 200}
	detector := &fakeDetector{facesAt: func(i int) int {
		if i == 10 {
			return 2
		}
		return 1
	}}

	svc := NewQualityService(testQualityConfig(), nil, nil, frames, detector, nil)
	result, err := svc.CheckVideo(context.Background(), "video.mp4")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if result.Category != model.QualityFail {
		t.Fatalf("expected fail, got %s", result.Category)
	}
	if len(frames.decoded) != 11 {
		t.Fatalf("expected sampling to stop after frame 11 of 50, decoded %d", len(frames.decoded))
	}
}

func TestCheckVideoSamplesEvenly(t *testing.T) {
	frames := &fakeFrameSource{total: 200}
	detector := &fakeDetector{facesAt: func(int) int { return 1 }}

	svc := NewQualityService(testQualityConfig(), nil, nil, frames, detector, nil)
	if _, err := svc.CheckVideo(context.Background(), "video.mp4"); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if len(frames.decoded) != 50 {
		t.Fatalf("expected 50 sampled frames, got %d", len(frames.decoded))
	}
	if frames.decoded[0] != 0 || frames.decoded[len(frames.decoded)-1] != 199 {
		t.Fatalf("sampling should span the whole clip: %v", frames.decoded)
	}
}

func TestCheckStudentUpdatesSession(t *testing.T) {
	root := t.TempDir()
	paths := &Paths{StudentDataRoot: root, GalleryDataRoot: root, GalleryRoot: root}
	sessions := NewSessionStore()
	batch := model.Batch{DeptCode: "DPT001", Year: "2025"}

	if _, err := paths.EnsureStudentDir(batch, "110121104001"); err != nil {
		t.Fatal(err)
	}
	// A flat gray video scores zero blur and contrast, so the session
	// should land on borderline-or-fail, never pass.
	if err := os.WriteFile(paths.VideoPath(batch, "110121104001"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	frames := &fakeFrameSource{total: 50}
	detector := &fakeDetector{facesAt: func(int) int { return 1 }}
	svc := NewQualityService(testQualityConfig(), paths, sessions, frames, detector, nil)

	result, err := svc.CheckStudent(context.Background(), batch, "110121104001")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if result.Category == model.QualityPass {
		t.Fatal("flat frames should not pass")
	}

	doc, err := sessions.Read(paths.SessionPath(batch, "110121104001"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.QualityCategory != result.Category {
		t.Fatalf("session category %q does not match result %q", doc.QualityCategory, result.Category)
	}
	if doc.QualityCheck != model.QualityFail {
		t.Fatalf("non-pass categories must store qualityCheck=fail, got %q", doc.QualityCheck)
	}
	if fmt.Sprintf("%v", doc.QualityIssues) != fmt.Sprintf("%v", result.Issues()) {
		t.Fatalf("session issues %v do not match result %v", doc.QualityIssues, result.Issues())
	}
}
