// Package vision wraps the model and tool capabilities the pipeline
// depends on: face detection, pose estimation, face encoding, video
// transcoding and frame decoding. The rest of the codebase only sees
// the interfaces defined here.
package vision

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// Detection is one detected face: an axis-aligned box plus a score in
// the 0-1 range.
type Detection struct {
	Box   image.Rectangle
	Score float64
}

// LongerSide returns the longer side of the detection box in pixels.
func (d Detection) LongerSide() int {
	w := d.Box.Dx()
	h := d.Box.Dy()
	if w > h {
		return w
	}
	return h
}

// Detector finds faces in a frame. Confidence is a 0-1 threshold; boxes
// scoring below it are discarded.
type Detector interface {
	Detect(frame image.Image, confidence float64) ([]Detection, error)
}

// pigoQualityScale converts between the cascade quality score (roughly
// 0-10 for confident detections) and the 0-1 confidence range of the
// Detector contract.
const pigoQualityScale = 10.0

// PigoDetector runs the pigo face cascade. It is pure Go and safe to
// share across goroutines once constructed.
type PigoDetector struct {
	classifier *pigo.Pigo
}

// NewPigoDetector loads and unpacks the facefinder cascade.
func NewPigoDetector(cascadePath string) (*PigoDetector, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}

	return &PigoDetector{classifier: classifier}, nil
}

func (d *PigoDetector) Detect(frame image.Image, confidence float64) ([]Detection, error) {
	bounds := frame.Bounds()
	cols := bounds.Dx()
	rows := bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	src := pigo.ImgToNRGBA(frame)
	pixels := pigo.RgbToGrayscale(src)

	maxSize := rows
	if cols < rows {
		maxSize = cols
	}

	cParams := pigo.CascadeParams{
		MinSize:     32,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	minQ := float32(confidence * pigoQualityScale)
	out := make([]Detection, 0, len(dets))
	for _, det := range dets {
		if det.Q <= minQ {
			continue
		}
		x := det.Col - det.Scale/2
		y := det.Row - det.Scale/2
		score := float64(det.Q) / pigoQualityScale
		if score > 1 {
			score = 1
		}
		out = append(out, Detection{
			Box:   image.Rect(x, y, x+det.Scale, y+det.Scale),
			Score: score,
		})
	}

	return out, nil
}
