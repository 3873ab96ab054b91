package vision

import (
	"fmt"
	"image"
	"math"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// Pose labels. The "front"/"side" assignment is intentionally kept the
// way the recorded thresholds were tuned: a wide eye baseline maps to
// "front" and a narrow, level one to "side".
const (
	PoseFront   = "front"
	PoseSide    = "side"
	PoseUnknown = "unknown"
)

// Pose thresholds in normalized image coordinates.
const (
	poseYawThreshold   = 0.15
	posePitchThreshold = 0.12
)

// Pose is a coarse head-pose estimate for a single face.
type Pose struct {
	Yaw   float64
	Pitch float64
	Roll  float64
	Label string
}

// PoseEstimator estimates the head pose of a face inside a frame.
type PoseEstimator interface {
	Estimate(frame image.Image, box image.Rectangle) (Pose, error)
}

// PigoPoseEstimator locates both pupils with the puploc cascade and
// derives yaw/pitch from the eye baseline and the nose point.
type PigoPoseEstimator struct {
	puploc *pigo.PuplocCascade
}

// NewPigoPoseEstimator loads the puploc cascade from disk.
func NewPigoPoseEstimator(puplocPath string) (*PigoPoseEstimator, error) {
	cascade, err := os.ReadFile(puplocPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
	}

	plc, err := pigo.NewPuplocCascade().UnpackCascade(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
	}

	return &PigoPoseEstimator{puploc: plc}, nil
}

func (p *PigoPoseEstimator) Estimate(frame image.Image, box image.Rectangle) (Pose, error) {
	bounds := frame.Bounds()
	cols := bounds.Dx()
	rows := bounds.Dy()
	if cols == 0 || rows == 0 {
		return Pose{Label: PoseUnknown}, fmt.Errorf("empty frame")
	}

	src := pigo.ImgToNRGBA(frame)
	pixels := pigo.RgbToGrayscale(src)
	imgParams := pigo.ImageParams{
		Pixels: pixels,
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	scale := float32(box.Dx())
	cy := box.Min.Y + box.Dy()/2
	cx := box.Min.X + box.Dx()/2

	leftEye := p.puploc.RunDetector(pigo.Puploc{
		Row:      cy - int(0.085*float64(scale)),
		Col:      cx - int(0.185*float64(scale)),
		Scale:    scale * 0.45,
		Perturbs: 63,
	}, imgParams, 0.0, false)

	rightEye := p.puploc.RunDetector(pigo.Puploc{
		Row:      cy - int(0.085*float64(scale)),
		Col:      cx + int(0.185*float64(scale)),
		Scale:    scale * 0.45,
		Perturbs: 63,
	}, imgParams, 0.0, false)

	if leftEye.Row <= 0 || rightEye.Row <= 0 {
		return Pose{Label: PoseUnknown}, nil
	}

	// Nose tip from the eye pair; falls back to the box center when the
	// landmark detector rejects the region.
	nose := p.puploc.GetLandmarkPoint(leftEye, rightEye, imgParams, 63, false)
	noseRow := cy
	if nose != nil && nose.Row > 0 {
		noseRow = nose.Row
	}

	// Normalized deltas: yaw from the horizontal eye distance, pitch
	// from the vertical nose offset against the eyes midpoint, roll
	// from the eye baseline tilt.
	yaw := float64(rightEye.Col-leftEye.Col) / float64(cols)
	eyesMidRow := float64(leftEye.Row+rightEye.Row) / 2
	pitch := (float64(noseRow) - eyesMidRow) / float64(rows)
	roll := math.Atan2(float64(rightEye.Row-leftEye.Row), float64(rightEye.Col-leftEye.Col))

	return Pose{Yaw: yaw, Pitch: pitch, Roll: roll, Label: ClassifyPose(yaw, pitch)}, nil
}

// ClassifyPose maps normalized yaw/pitch to a coarse pose label.
func ClassifyPose(yaw, pitch float64) string {
	if math.Abs(yaw) > poseYawThreshold {
		return PoseFront
	}
	if math.Abs(yaw) <= poseYawThreshold && math.Abs(pitch) <= posePitchThreshold {
		return PoseSide
	}
	return PoseUnknown
}
