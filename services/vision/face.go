package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// Face crop geometry shared by extraction and recognition.
const (
	// FaceCropSize is the side of the square crop fed to the encoder.
	FaceCropSize = 128
	// facePadRatio grows the detector box before cropping.
	facePadRatio = 0.20
	// minFaceSide rejects boxes that are too small to be useful after
	// clamping to the image bounds.
	minFaceSide = 32
)

// PadBox grows the box by 20% of its own size in each direction and
// clamps it to the image bounds.
func PadBox(box image.Rectangle, bounds image.Rectangle) image.Rectangle {
	padX := int(float64(box.Dx()) * facePadRatio)
	padY := int(float64(box.Dy()) * facePadRatio)
	padded := image.Rect(box.Min.X-padX, box.Min.Y-padY, box.Max.X+padX, box.Max.Y+padY)
	return padded.Intersect(bounds)
}

// PreprocessFace cuts the padded face region out of the frame and
// normalizes it for the encoder. Returns ok=false when the clamped box
// is too small.
func PreprocessFace(frame image.Image, box image.Rectangle) (*image.Gray, bool) {
	padded := PadBox(box, frame.Bounds())
	if padded.Dx() < minFaceSide || padded.Dy() < minFaceSide {
		return nil, false
	}

	crop := imaging.Crop(frame, padded)
	resized := imaging.Resize(crop, FaceCropSize, FaceCropSize, imaging.Lanczos)
	gray := ToGray(resized)
	EqualizeHist(gray)
	return gray, true
}
