package services

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// Default number of extra embeddings an augmented crop contributes.
const defaultAugsPerImage = 4

var cropExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
}

// EmbeddingService turns face crops into embedding vectors, optionally
// enriched with augmented variants, and reduces them to per-identity
// centroids. One instance is shared across request handlers and cron,
// so the random source is guarded and augmentation parameters are
// passed per call instead of kept on the service.
type EmbeddingService struct {
	encoder vision.Encoder

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(encoder vision.Encoder) *EmbeddingService {
	return &EmbeddingService{
		encoder: encoder,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *EmbeddingService) randFloat() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func (e *EmbeddingService) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// augmentOp is a single transform applied to a face crop.
type augmentOp func(image.Image) image.Image

func downUp(size int) augmentOp {
	return func(img image.Image) image.Image {
		small := imaging.Resize(img, size, size, imaging.Lanczos)
		return imaging.Resize(small, vision.FaceCropSize, vision.FaceCropSize, imaging.Lanczos)
	}
}

func (e *EmbeddingService) brightnessContrast() augmentOp {
	brightness := e.randFloat()*40 - 20
	contrast := e.randFloat()*40 - 20
	return func(img image.Image) image.Image {
		return imaging.AdjustContrast(imaging.AdjustBrightness(img, brightness), contrast)
	}
}

func (e *EmbeddingService) gaussianBlur() augmentOp {
	kernel := 3 + e.randIntn(5)
	return func(img image.Image) image.Image {
		return imaging.Blur(img, float64(kernel)/4)
	}
}

// Augment produces exactly count variants of a crop (the default when
// count is zero): the two mandatory downscale-upscale passes, one
// random pick among brightness/contrast jitter and Gaussian blur, then
// compositions of two random ops until the count is reached. Counts
// below the mandatory passes trim the list.
func (e *EmbeddingService) Augment(img image.Image, count int) []image.Image {
	if count <= 0 {
		count = defaultAugsPerImage
	}

	mandatory := []augmentOp{downUp(32), downUp(24)}
	random := []augmentOp{e.brightnessContrast(), e.gaussianBlur()}

	variants := make([]image.Image, 0, count)
	for _, op := range mandatory {
		variants = append(variants, op(img))
	}
	variants = append(variants, random[e.randIntn(len(random))](img))

	all := append(append([]augmentOp{}, mandatory...), random...)
	for len(variants) < count {
		first := e.randIntn(len(all))
		second := e.randIntn(len(all) - 1)
		if second >= first {
			second++
		}
		variants = append(variants, all[second](all[first](img)))
	}
	return variants[:count]
}

// IdentityEmbeddings embeds every crop in an identity directory. With
// probability augmentRatio a crop also contributes augsPerImage
// augmented variants.
func (e *EmbeddingService) IdentityEmbeddings(ctx context.Context, identityDir string,
	augmentRatio float64, augsPerImage int) ([][]float64, error) {
	entries, err := os.ReadDir(identityDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity directory: %w", err)
	}

	images := make([]image.Image, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !cropExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		img, err := imaging.Open(filepath.Join(identityDir, entry.Name()))
		if err != nil {
			log.Printf("Skipping unreadable crop %s: %v", entry.Name(), err)
			continue
		}
		images = append(images, img)
		if augmentRatio > 0 && e.randFloat() < augmentRatio {
			images = append(images, e.Augment(img, augsPerImage)...)
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no usable crops in %s", identityDir)
	}

	return e.encoder.EncodeBatch(ctx, images)
}

// Centroid is the arithmetic mean of a set of embeddings. Vectors must
// agree on length and contain only finite values.
func Centroid(embeddings [][]float64) ([]float64, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings to average")
	}

	dim := len(embeddings[0])
	centroid := make([]float64, dim)
	for i, emb := range embeddings {
		if len(emb) != dim {
			return nil, fmt.Errorf("embedding %d has length %d, want %d", i, len(emb), dim)
		}
		for j, v := range emb {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("embedding %d contains a non-finite value", i)
			}
			centroid[j] += v
		}
	}
	for j := range centroid {
		centroid[j] /= float64(len(embeddings))
	}
	return centroid, nil
}
