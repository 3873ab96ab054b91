package services

import (
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"

	"github.com/sahilchouksey/face-gallery-api/config"
	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// Extraction defaults. Stride 1 decodes every frame up to the cap.
const (
	defaultFrameStride  = 1
	defaultMaxFrames    = 1000
	faceCropJPEGQuality = 95
)

// ExtractionService cuts face crops out of an accepted video and files
// them under the batch's face-data directory.
type ExtractionService struct {
	paths    *Paths
	sessions *SessionStore
	frames   vision.FrameSource
	detector vision.Detector
	conf     float64

	Stride    int
	MaxFrames int
}

// NewExtractionService creates a new extraction service
func NewExtractionService(cfg config.QualityConfig, paths *Paths, sessions *SessionStore,
	frames vision.FrameSource, detector vision.Detector) *ExtractionService {
	return &ExtractionService{
		paths:     paths,
		sessions:  sessions,
		frames:    frames,
		detector:  detector,
		conf:      cfg.DetectorConf,
		Stride:    defaultFrameStride,
		MaxFrames: defaultMaxFrames,
	}
}

// ExtractFaces processes one student's video. Sessions whose quality
// check failed are rejected; not_tested is explicitly allowed so a
// batch can be extracted before the gate has run.
func (e *ExtractionService) ExtractFaces(ctx context.Context, batch model.Batch, regNo string) (int, error) {
	sessionPath := e.paths.SessionPath(batch, regNo)
	doc, err := e.sessions.Read(sessionPath)
	if err != nil {
		return 0, err
	}
	if !doc.VideoUploaded {
		return 0, fmt.Errorf("no uploaded video for %s", regNo)
	}
	if doc.QualityCheck == model.QualityFail {
		return 0, fmt.Errorf("quality check failed for %s, refusing extraction", regNo)
	}

	videoPath := e.paths.VideoPath(batch, regNo)
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("video missing for %s: %w", regNo, err)
	}

	tempDir, err := os.MkdirTemp("", "frames_"+regNo+"_")
	if err != nil {
		return 0, fmt.Errorf("failed to create frame directory: %w", err)
	}
	// The frame dump is removed even when extraction stops partway.
	defer os.RemoveAll(tempDir)

	framePaths, err := e.frames.ExtractFrames(ctx, videoPath, tempDir, e.Stride, e.MaxFrames)
	if err != nil {
		return 0, err
	}
	if len(framePaths) == 0 {
		return 0, fmt.Errorf("no frames decoded from %s", videoPath)
	}

	facesDir := e.paths.FacesDir(batch, regNo)
	if err := os.MkdirAll(facesDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create faces directory: %w", err)
	}

	count := 0
	for frameIdx, framePath := range framePaths {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}

		f, err := os.Open(framePath)
		if err != nil {
			continue
		}
		frame, err := jpeg.Decode(f)
		f.Close()
		if err != nil {
			continue
		}

		detections, err := e.detector.Detect(frame, e.conf)
		if err != nil {
			return count, fmt.Errorf("detection failed on frame %d: %w", frameIdx, err)
		}

		for detIdx, det := range detections {
			face, ok := vision.PreprocessFace(frame, det.Box)
			if !ok {
				continue
			}

			cropPath := filepath.Join(facesDir, fmt.Sprintf("%s_f%04d_d%d.jpg", regNo, frameIdx, detIdx))
			out, err := os.Create(cropPath)
			if err != nil {
				return count, fmt.Errorf("failed to write crop: %w", err)
			}
			if err := jpeg.Encode(out, face, &jpeg.Options{Quality: faceCropJPEGQuality}); err != nil {
				out.Close()
				return count, fmt.Errorf("failed to encode crop: %w", err)
			}
			out.Close()
			count++
		}
	}

	if _, err := e.sessions.Update(sessionPath, func(doc *model.SessionDocument) {
		doc.ApplyDefaults(regNo, batch.DeptCode, batch.Year)
		doc.FacesExtracted = true
		doc.FacesOrganized = true
		doc.FacesCount = count
	}); err != nil {
		return count, err
	}

	log.Printf("Extracted %d face crops for %s (%s)", count, regNo, batch)
	return count, nil
}

// BatchExtractionResult records one student's outcome during a batch
// extraction run.
type BatchExtractionResult struct {
	RegNo     string `json:"reg_no"`
	FaceCount int    `json:"face_count"`
	Error     string `json:"error,omitempty"`
}

// ExtractBatch runs face extraction for every student directory in the
// batch. A student that cannot be extracted is recorded with its error
// and the run moves on to the next one.
func (e *ExtractionService) ExtractBatch(ctx context.Context, batch model.Batch) ([]BatchExtractionResult, error) {
	entries, err := os.ReadDir(e.paths.BatchDir(batch))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	results := make([]BatchExtractionResult, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		regNo := entry.Name()
		count, err := e.ExtractFaces(ctx, batch, regNo)
		result := BatchExtractionResult{RegNo: regNo, FaceCount: count}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no student directories for batch %s", batch)
	}

	log.Printf("Batch extraction for %s: %d students processed", batch, len(results))
	return results, nil
}

// ResetFaces removes a student's crops and clears the extraction flags
// so the video can be re-processed.
func (e *ExtractionService) ResetFaces(batch model.Batch, regNo string) error {
	if err := os.RemoveAll(e.paths.FacesDir(batch, regNo)); err != nil {
		return fmt.Errorf("failed to remove face crops: %w", err)
	}

	sessionPath := e.paths.SessionPath(batch, regNo)
	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		return nil
	}
	_, err := e.sessions.Update(sessionPath, func(doc *model.SessionDocument) {
		doc.FacesExtracted = false
		doc.FacesOrganized = false
		doc.FacesCount = 0
	})
	return err
}
