package vision

import (
	"image"
	"image/color"
	"math"
)

// Frame quality metrics used by the quality gate. All of them operate
// on an 8-bit grayscale copy of the frame or crop.

// ToGray converts any image to 8-bit grayscale using the standard
// luminance weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// BlurScore is the variance of the Laplacian response. Sharp frames
// have strong second derivatives at edges and score high, defocused
// frames score near zero.
func BlurScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	count := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			up := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y-1).Y)
			down := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y+1).Y)
			left := float64(gray.GrayAt(bounds.Min.X+x-1, bounds.Min.Y+y).Y)
			right := float64(gray.GrayAt(bounds.Min.X+x+1, bounds.Min.Y+y).Y)

			lap := up + down + left + right - 4*center
			sum += lap
			sumSq += lap * lap
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

// Contrast is the standard deviation of pixel intensities.
func Contrast(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	count := bounds.Dx() * bounds.Dy()
	if count == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// EdgeDensity runs a Sobel gradient with hysteresis-style thresholds
// (50, 150) and returns the percentage of edge pixels. Motion-blurred
// frames smear their edges and score low, so callers treat a low value
// as a motion blur signal.
func EdgeDensity(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	const (
		lowThreshold  = 50.0
		highThreshold = 150.0
	)

	at := func(x, y int) float64 {
		return float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}

	strong := make([]bool, w*h)
	weak := make([]bool, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			mag := math.Sqrt(gx*gx + gy*gy)
			if mag >= highThreshold {
				strong[y*w+x] = true
			} else if mag >= lowThreshold {
				weak[y*w+x] = true
			}
		}
	}

	// A weak pixel counts only when it touches a strong one.
	edges := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := y*w + x
			if strong[idx] {
				edges++
				continue
			}
			if !weak[idx] {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if strong[(y+dy)*w+(x+dx)] {
						edges++
						dy, dx = 2, 2
					}
				}
			}
		}
	}

	return float64(edges) / float64(w*h) * 100
}

// EqualizeHist spreads the intensity histogram over the full 8-bit
// range, in place.
func EqualizeHist(gray *image.Gray) {
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	// Cumulative distribution, anchored at the first occupied bin so
	// the darkest pixel maps to 0.
	var cdf [256]int
	running := 0
	for i, c := range hist {
		running += c
		cdf[i] = running
	}
	cdfMin := 0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}
	if total == cdfMin {
		return
	}

	var lut [256]uint8
	for i := range lut {
		v := float64(cdf[i]-cdfMin) / float64(total-cdfMin) * 255
		if v < 0 {
			v = 0
		}
		lut[i] = uint8(v + 0.5)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.SetGray(x, y, color.Gray{Y: lut[gray.GrayAt(x, y).Y]})
		}
	}
}
