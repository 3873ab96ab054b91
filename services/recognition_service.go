package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// UnknownIdentity labels a face no gallery entry claimed.
const UnknownIdentity = "Unknown"

// Recognition defaults.
const (
	defaultSimilarityThreshold = 0.45
	defaultRecognitionConf     = 0.65
)

// Match is one recognized face in a query image.
type Match struct {
	Identity   string          `json:"identity"`
	Similarity float64         `json:"similarity"`
	Box        image.Rectangle `json:"-"`
	BoxCoords  [4]int          `json:"box"`
}

// RecognitionResult carries the structured matches and the annotated
// query image.
type RecognitionResult struct {
	Matches   []Match
	Annotated image.Image
}

// RecognitionService identifies faces in a query image against one or
// more galleries.
type RecognitionService struct {
	galleries *GalleryService
	detector  vision.Detector
	encoder   vision.Encoder

	Threshold float64
	Conf      float64
}

// NewRecognitionService creates a new recognition service
func NewRecognitionService(galleries *GalleryService, detector vision.Detector, encoder vision.Encoder) *RecognitionService {
	return &RecognitionService{
		galleries: galleries,
		detector:  detector,
		encoder:   encoder,
		Threshold: defaultSimilarityThreshold,
		Conf:      defaultRecognitionConf,
	}
}

// Recognize detects faces in the query image, embeds them and assigns
// gallery identities under the no-duplicate rule.
func (r *RecognitionService) Recognize(ctx context.Context, query image.Image, galleryNames []string) (*RecognitionResult, error) {
	if len(galleryNames) == 0 {
		return nil, fmt.Errorf("at least one gallery is required")
	}

	paths, err := r.galleries.ResolveGalleryPaths(galleryNames)
	if err != nil {
		return nil, err
	}

	// Union galleries; later entries overwrite earlier ones.
	gallery := map[string][]float64{}
	for _, path := range paths {
		g, err := ReadGalleryArtifact(path)
		if err != nil {
			return nil, err
		}
		for identity, centroid := range g {
			gallery[identity] = centroid
		}
	}
	if len(gallery) == 0 {
		return nil, fmt.Errorf("galleries contain no identities")
	}

	detections, err := r.detector.Detect(query, r.Conf)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	boxes := make([]image.Rectangle, 0, len(detections))
	faces := make([]image.Image, 0, len(detections))
	for _, det := range detections {
		face, ok := vision.PreprocessFace(query, det.Box)
		if !ok {
			continue
		}
		boxes = append(boxes, vision.PadBox(det.Box, query.Bounds()))
		faces = append(faces, face)
	}

	matches := []Match{}
	if len(faces) > 0 {
		embeddings, err := r.encoder.EncodeBatch(ctx, faces)
		if err != nil {
			return nil, err
		}

		candidates := make([][]Candidate, len(embeddings))
		for i, emb := range embeddings {
			candidates[i] = rankCandidates(emb, gallery, r.Threshold)
		}

		assignments := AssignIdentities(candidates)
		for i, a := range assignments {
			matches = append(matches, Match{
				Identity:   a.Identity,
				Similarity: a.Similarity,
				Box:        boxes[i],
				BoxCoords:  [4]int{boxes[i].Min.X, boxes[i].Min.Y, boxes[i].Max.X, boxes[i].Max.Y},
			})
		}
	}

	log.Printf("Recognition: %d faces, %d galleries, %d identities", len(matches), len(paths), len(gallery))
	return &RecognitionResult{
		Matches:   matches,
		Annotated: annotate(query, matches),
	}, nil
}

// Candidate is a gallery identity scored against one detected face.
type Candidate struct {
	Identity   string
	Similarity float64
}

// Assignment is the identity chosen for one detection.
type Assignment struct {
	Identity   string
	Similarity float64
}

// CosineSimilarity is 1 minus the cosine distance of two vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func rankCandidates(embedding []float64, gallery map[string][]float64, threshold float64) []Candidate {
	candidates := make([]Candidate, 0, len(gallery))
	for identity, centroid := range gallery {
		sim := CosineSimilarity(embedding, centroid)
		if sim >= threshold {
			candidates = append(candidates, Candidate{Identity: identity, Similarity: sim})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Identity < candidates[j].Identity
	})
	return candidates
}

// AssignIdentities resolves candidates to at most one face per
// identity. Detections are processed in descending order of their best
// candidate, each taking its highest-scoring still-free identity;
// everything else becomes Unknown.
func AssignIdentities(candidates [][]Candidate) []Assignment {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bestSimilarity(candidates[order[a]]) > bestSimilarity(candidates[order[b]])
	})

	assignments := make([]Assignment, len(candidates))
	taken := map[string]bool{}
	for _, idx := range order {
		assigned := Assignment{Identity: UnknownIdentity}
		for _, c := range candidates[idx] {
			if !taken[c.Identity] {
				assigned = Assignment{Identity: c.Identity, Similarity: c.Similarity}
				taken[c.Identity] = true
				break
			}
		}
		assignments[idx] = assigned
	}
	return assignments
}

func bestSimilarity(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return -1
	}
	return candidates[0].Similarity
}

// annotate draws boxes and identity labels on a copy of the query.
func annotate(query image.Image, matches []Match) image.Image {
	bounds := query.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, query, bounds.Min, draw.Src)

	green := color.RGBA{0, 200, 0, 255}
	red := color.RGBA{220, 0, 0, 255}

	for _, m := range matches {
		col := green
		if m.Identity == UnknownIdentity {
			col = red
		}
		drawRect(out, m.Box, col)

		label := fmt.Sprintf("%s (%.2f)", m.Identity, m.Similarity)
		drawer := &font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(col),
			Face: basicfont.Face7x13,
			Dot: fixed.Point26_6{
				X: fixed.I(m.Box.Min.X),
				Y: fixed.I(m.Box.Min.Y - 4),
			},
		}
		drawer.DrawString(label)
	}
	return out
}

func drawRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	r = r.Intersect(img.Bounds())
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, col)
		img.Set(x, r.Max.Y-1, col)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, col)
		img.Set(r.Max.X-1, y, col)
	}
}
