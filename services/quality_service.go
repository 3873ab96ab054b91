package services

import (
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilchouksey/face-gallery-api/config"
	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// requiredPoses must all appear across the sampled frames, otherwise a
// minor issue is raised.
var requiredPoses = []string{vision.PoseFront, vision.PoseSide}

// FrameStats holds the measurements taken from one sampled frame.
type FrameStats struct {
	Index      int
	FaceCount  int
	FaceSize   float64
	Blur       float64
	Contrast   float64
	MotionBlur float64
	Pose       string
}

// QualityResult is the outcome of one quality gate run.
type QualityResult struct {
	Category       string
	CriticalIssues []string
	MajorIssues    []string
	MinorIssues    []string
	Details        map[string]float64
	FailedFrames   []FrameStats
}

// Issues returns all issues in severity order.
func (r *QualityResult) Issues() []string {
	issues := make([]string, 0, len(r.CriticalIssues)+len(r.MajorIssues)+len(r.MinorIssues))
	issues = append(issues, r.CriticalIssues...)
	issues = append(issues, r.MajorIssues...)
	issues = append(issues, r.MinorIssues...)
	return issues
}

// QualityService runs the video quality gate.
type QualityService struct {
	cfg      config.QualityConfig
	paths    *Paths
	sessions *SessionStore
	frames   vision.FrameSource
	detector vision.Detector
	poser    vision.PoseEstimator
}

// NewQualityService creates a new quality service. The pose estimator
// may be nil; the pose diversity step is skipped in that case.
func NewQualityService(cfg config.QualityConfig, paths *Paths, sessions *SessionStore,
	frames vision.FrameSource, detector vision.Detector, poser vision.PoseEstimator) *QualityService {
	if poser == nil {
		// Every pose would read unknown and flag both required poses
		// as missing, turning clean videos borderline.
		cfg.PoseCheck = false
	}
	return &QualityService{
		cfg:      cfg,
		paths:    paths,
		sessions: sessions,
		frames:   frames,
		detector: detector,
		poser:    poser,
	}
}

// CheckVideo samples the video, measures each frame and classifies the
// recording. Sampling stops at the first frame containing more than
// one face.
func (q *QualityService) CheckVideo(ctx context.Context, videoPath string) (*QualityResult, error) {
	total, err := q.frames.CountFrames(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect video: %w", err)
	}

	indices := vision.SampleIndices(total, q.cfg.SampleCount)
	if len(indices) == 0 {
		return nil, fmt.Errorf("video has no decodable frames: %s", videoPath)
	}

	stats := make([]FrameStats, 0, len(indices))
	for _, idx := range indices {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		frame, err := q.frames.Frame(ctx, videoPath, idx)
		if err != nil {
			// Damaged frames are skipped, not fatal.
			log.Printf("Quality check: skipping frame %d: %v", idx, err)
			continue
		}

		detections, err := q.detector.Detect(frame, q.cfg.DetectorConf)
		if err != nil {
			return nil, fmt.Errorf("face detection failed on frame %d: %w", idx, err)
		}

		fs := FrameStats{Index: idx, FaceCount: len(detections), Pose: vision.PoseUnknown}

		gray := vision.ToGray(frame)
		fs.Blur = vision.BlurScore(gray)
		fs.Contrast = vision.Contrast(gray)
		fs.MotionBlur = vision.EdgeDensity(gray)

		if len(detections) > 0 {
			best := detections[0]
			for _, d := range detections[1:] {
				if d.Score > best.Score {
					best = d
				}
			}
			fs.FaceSize = float64(best.LongerSide())

			if len(detections) == 1 && q.cfg.PoseCheck && q.poser != nil {
				if pose, poseErr := q.poser.Estimate(frame, best.Box); poseErr == nil {
					fs.Pose = pose.Label
				}
			}
		}

		stats = append(stats, fs)

		if fs.FaceCount > 1 {
			break
		}
	}

	result := ClassifyQuality(stats, q.cfg)
	return result, nil
}

// ClassifyQuality aggregates per-frame stats into a category and an
// issue list partitioned by severity.
func ClassifyQuality(stats []FrameStats, cfg config.QualityConfig) *QualityResult {
	result := &QualityResult{Details: map[string]float64{}}

	totalFaces := 0
	multiFaceFrames := 0
	var blurSum, contrastSum, motionSum, faceSizeSum float64
	faceFrames := 0
	poses := map[string]bool{}

	for _, fs := range stats {
		totalFaces += fs.FaceCount
		if fs.FaceCount > 1 {
			multiFaceFrames++
			result.FailedFrames = append(result.FailedFrames, fs)
		}
		blurSum += fs.Blur
		contrastSum += fs.Contrast
		motionSum += fs.MotionBlur
		if fs.FaceCount > 0 {
			faceSizeSum += fs.FaceSize
			faceFrames++
		}
		if fs.Pose != "" && fs.Pose != vision.PoseUnknown {
			poses[fs.Pose] = true
		}
	}

	sampled := len(stats)
	var avgBlur, avgContrast, avgMotion, avgFaceSize float64
	if sampled > 0 {
		avgBlur = blurSum / float64(sampled)
		avgContrast = contrastSum / float64(sampled)
		avgMotion = motionSum / float64(sampled)
	}
	if faceFrames > 0 {
		avgFaceSize = faceSizeSum / float64(faceFrames)
	}

	result.Details["sampled_frames"] = float64(sampled)
	result.Details["total_faces"] = float64(totalFaces)
	result.Details["multi_face_frames"] = float64(multiFaceFrames)
	result.Details["avg_blur"] = avgBlur
	result.Details["avg_contrast"] = avgContrast
	result.Details["avg_motion_blur"] = avgMotion
	result.Details["avg_face_size"] = avgFaceSize

	// Critical issues mean an unusable recording.
	if totalFaces == 0 {
		result.CriticalIssues = append(result.CriticalIssues, "No faces detected in video")
	} else if totalFaces < cfg.MinTotalFaces {
		result.CriticalIssues = append(result.CriticalIssues,
			fmt.Sprintf("Too few faces detected (%d)", totalFaces))
	}
	if multiFaceFrames > 0 && multiFaceFrames == sampled {
		result.CriticalIssues = append(result.CriticalIssues, "Multiple faces detected in every frame")
	} else if multiFaceFrames > 0 {
		// Sampling short-circuits on the first multi-face frame, so a
		// single hit is already disqualifying.
		result.CriticalIssues = append(result.CriticalIssues,
			fmt.Sprintf("Multiple faces detected in frame %d", result.FailedFrames[0].Index))
	}

	if totalFaces > 0 {
		if avgBlur < cfg.MinBlurScore {
			result.MajorIssues = append(result.MajorIssues, "Video too blurry")
		}
		if avgContrast < cfg.MinContrast {
			result.MajorIssues = append(result.MajorIssues, "Low contrast video")
		}
		if avgFaceSize < cfg.MinFaceSize {
			result.MajorIssues = append(result.MajorIssues, "Face too small in video")
		}
		if avgMotion > cfg.MaxMotionBlur {
			result.MinorIssues = append(result.MinorIssues, "High motion blur")
		}
		if cfg.PoseCheck {
			for _, pose := range requiredPoses {
				if !poses[pose] {
					result.MinorIssues = append(result.MinorIssues, "Missing required pose: "+pose)
				}
			}
		}
	}

	switch {
	case len(result.CriticalIssues) > 0:
		result.Category = model.QualityFail
	case len(result.MajorIssues) > 0 || len(result.MinorIssues) > 0:
		result.Category = model.QualityBorderline
	default:
		result.Category = model.QualityPass
	}
	return result
}

// CheckStudent runs the gate on one student's video and persists the
// outcome into the session document.
func (q *QualityService) CheckStudent(ctx context.Context, batch model.Batch, regNo string) (*QualityResult, error) {
	videoPath := q.paths.VideoPath(batch, regNo)
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("no video for %s: %w", regNo, err)
	}

	result, err := q.CheckVideo(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	sessionPath := q.paths.SessionPath(batch, regNo)
	if _, err := q.sessions.Update(sessionPath, func(doc *model.SessionDocument) {
		doc.ApplyDefaults(regNo, batch.DeptCode, batch.Year)
		doc.QualityCategory = result.Category
		if result.Category == model.QualityPass {
			doc.QualityCheck = model.QualityPass
		} else {
			doc.QualityCheck = model.QualityFail
		}
		doc.QualityIssues = result.Issues()
		doc.CriticalIssues = result.CriticalIssues
		doc.MajorIssues = result.MajorIssues
		doc.MinorIssues = result.MinorIssues
		doc.QualityDetails = result.Details
	}); err != nil {
		return nil, err
	}

	if q.cfg.DumpFailedFrames && len(result.FailedFrames) > 0 {
		if err := q.dumpFailedFrames(ctx, batch, regNo, videoPath, result); err != nil {
			log.Printf("Failed to dump diagnostic frames for %s: %v", regNo, err)
		}
	}

	log.Printf("Quality check for %s: %s (%d issues)", regNo, result.Category, len(result.Issues()))
	return result, nil
}

// dumpFailedFrames writes the offending frames next to the video for
// manual review. Filenames encode the issue list, truncated to 50
// characters.
func (q *QualityService) dumpFailedFrames(ctx context.Context, batch model.Batch, regNo, videoPath string, result *QualityResult) error {
	dir := q.paths.FailedFramesDir(batch, regNo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, fs := range result.FailedFrames {
		frame, err := q.frames.Frame(ctx, videoPath, fs.Index)
		if err != nil {
			continue
		}

		name := fmt.Sprintf("frame%04d_%s", fs.Index, encodeIssueTag(result.Issues()))
		if len(name) > 50 {
			name = name[:50]
		}

		f, err := os.Create(filepath.Join(dir, name+".jpg"))
		if err != nil {
			return err
		}
		if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: 90}); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	return nil
}

func encodeIssueTag(issues []string) string {
	tag := strings.Join(issues, "_")
	tag = strings.ToLower(tag)
	tag = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, tag)
	return tag
}
