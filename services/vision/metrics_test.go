package vision

import (
	"image"
	"image/color"
	"testing"
)

func flatGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func checkerboard(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestBlurScoreFlatImageIsZero(t *testing.T) {
	if score := BlurScore(flatGray(64, 64, 128)); score != 0 {
		t.Fatalf("expected zero blur score for flat image, got %f", score)
	}
}

func TestBlurScoreSharpBeatsSmooth(t *testing.T) {
	sharp := BlurScore(checkerboard(64, 64, 2))
	smooth := BlurScore(checkerboard(64, 64, 32))
	if sharp <= smooth {
		t.Fatalf("expected sharp image to outscore smooth: sharp=%f smooth=%f", sharp, smooth)
	}
}

func TestContrastFlatImageIsZero(t *testing.T) {
	if c := Contrast(flatGray(32, 32, 200)); c != 0 {
		t.Fatalf("expected zero contrast for flat image, got %f", c)
	}
}

func TestContrastCheckerboard(t *testing.T) {
	// Half the pixels at 0, half at 255: stddev should be close to 127.5.
	c := Contrast(checkerboard(64, 64, 1))
	if c < 126 || c > 129 {
		t.Fatalf("expected checkerboard contrast near 127.5, got %f", c)
	}
}

func TestEdgeDensityFlatImageIsZero(t *testing.T) {
	if d := EdgeDensity(flatGray(64, 64, 90)); d != 0 {
		t.Fatalf("expected no edges in flat image, got %f", d)
	}
}

func TestEdgeDensityDetectsEdges(t *testing.T) {
	d := EdgeDensity(checkerboard(64, 64, 8))
	if d <= 0 {
		t.Fatal("expected edges in checkerboard image")
	}
	if d > 100 {
		t.Fatalf("edge density is a percentage, got %f", d)
	}
}

func TestEqualizeHistStretchesRange(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	// Narrow band of intensities, well away from both extremes.
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(100 + (x % 8))})
		}
	}

	EqualizeHist(img)

	min, max := uint8(255), uint8(0)
	for _, v := range img.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min != 0 {
		t.Errorf("expected darkest pixel mapped to 0, got %d", min)
	}
	if max != 255 {
		t.Errorf("expected brightest pixel mapped to 255, got %d", max)
	}
}

func TestEqualizeHistFlatImageUnchanged(t *testing.T) {
	img := flatGray(8, 8, 77)
	EqualizeHist(img)
	for _, v := range img.Pix {
		if v != 77 {
			t.Fatalf("flat image should be left alone, got pixel %d", v)
		}
	}
}

func TestToGrayPassthrough(t *testing.T) {
	src := flatGray(4, 4, 10)
	if got := ToGray(src); got != src {
		t.Fatal("expected grayscale input to be returned as-is")
	}
}

func TestClassifyPose(t *testing.T) {
	cases := []struct {
		yaw, pitch float64
		want       string
	}{
		{0.3, 0.0, PoseFront},
		{-0.2, 0.5, PoseFront},
		{0.05, 0.05, PoseSide},
		{0.0, 0.0, PoseSide},
		{0.1, 0.2, PoseUnknown},
		{-0.15, 0.13, PoseUnknown},
	}
	for _, c := range cases {
		if got := ClassifyPose(c.yaw, c.pitch); got != c.want {
			t.Errorf("ClassifyPose(%f, %f) = %q, want %q", c.yaw, c.pitch, got, c.want)
		}
	}
}
