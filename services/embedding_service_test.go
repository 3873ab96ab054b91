package services

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
)

// fixedEncoder returns one constant vector per input image.
type fixedEncoder struct {
	vector []float64

	mu   sync.Mutex
	seen int
}

func (f *fixedEncoder) Encode(_ context.Context, _ image.Image) ([]float64, error) {
	f.mu.Lock()
	f.seen++
	f.mu.Unlock()
	return f.vector, nil
}

func (f *fixedEncoder) EncodeBatch(_ context.Context, faces []image.Image) ([][]float64, error) {
	f.mu.Lock()
	f.seen += len(faces)
	f.mu.Unlock()
	out := make([][]float64, len(faces))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}

func TestAugmentProducesExactlyFourVariants(t *testing.T) {
	svc := NewEmbeddingService(&fixedEncoder{vector: []float64{1}})
	img := image.NewGray(image.Rect(0, 0, 128, 128))

	variants := svc.Augment(img, 0)
	if len(variants) != 4 {
		t.Fatalf("expected 4 variants, got %d", len(variants))
	}
	for i, v := range variants {
		b := v.Bounds()
		if b.Dx() != 128 || b.Dy() != 128 {
			t.Errorf("variant %d has size %dx%d, want 128x128", i, b.Dx(), b.Dy())
		}
	}
}

func TestAugmentHonorsConfiguredCount(t *testing.T) {
	svc := NewEmbeddingService(&fixedEncoder{vector: []float64{1}})
	img := image.NewGray(image.Rect(0, 0, 128, 128))

	if got := len(svc.Augment(img, 7)); got != 7 {
		t.Fatalf("expected 7 variants, got %d", got)
	}
	if got := len(svc.Augment(img, 2)); got != 2 {
		t.Fatalf("expected 2 variants, got %d", got)
	}
}

func TestIdentityEmbeddingsWithoutAugmentation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".jpg")
		if err := imaging.Save(imaging.New(128, 128, image.White.C), path); err != nil {
			t.Fatal(err)
		}
	}
	// Non-image files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	enc := &fixedEncoder{vector: []float64{0.5, 0.5}}
	svc := NewEmbeddingService(enc)

	embeddings, err := svc.IdentityEmbeddings(context.Background(), dir, 0, 0)
	if err != nil {
		t.Fatalf("embedding failed: %v", err)
	}
	if len(embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(embeddings))
	}
}

func TestIdentityEmbeddingsAlwaysAugmented(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".jpg")
		if err := imaging.Save(imaging.New(128, 128, image.White.C), path); err != nil {
			t.Fatal(err)
		}
	}

	enc := &fixedEncoder{vector: []float64{1}}
	svc := NewEmbeddingService(enc)

	embeddings, err := svc.IdentityEmbeddings(context.Background(), dir, 1, 0)
	if err != nil {
		t.Fatalf("embedding failed: %v", err)
	}
	// 2 originals plus 4 variants each.
	if len(embeddings) != 10 {
		t.Fatalf("expected 10 embeddings, got %d", len(embeddings))
	}
}

func TestIdentityEmbeddingsEmptyDirFails(t *testing.T) {
	svc := NewEmbeddingService(&fixedEncoder{vector: []float64{1}})
	if _, err := svc.IdentityEmbeddings(context.Background(), t.TempDir(), 0, 0); err == nil {
		t.Fatal("expected error for empty identity directory")
	}
}

func TestIdentityEmbeddingsConcurrentBuildsDoNotInterfere(t *testing.T) {
	plainDir := t.TempDir()
	augmentedDir := t.TempDir()
	for i := 0; i < 2; i++ {
		name := string(rune('a'+i)) + ".jpg"
		for _, dir := range []string{plainDir, augmentedDir} {
			if err := imaging.Save(imaging.New(128, 128, image.White.C), filepath.Join(dir, name)); err != nil {
				t.Fatal(err)
			}
		}
	}

	svc := NewEmbeddingService(&fixedEncoder{vector: []float64{1}})

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			embeddings, err := svc.IdentityEmbeddings(context.Background(), plainDir, 0, 0)
			if err != nil {
				errs <- err
				return
			}
			if len(embeddings) != 2 {
				errs <- fmt.Errorf("unaugmented build got %d embeddings, want 2", len(embeddings))
			}
		}()
		go func() {
			defer wg.Done()
			embeddings, err := svc.IdentityEmbeddings(context.Background(), augmentedDir, 1, 4)
			if err != nil {
				errs <- err
				return
			}
			if len(embeddings) != 10 {
				errs <- fmt.Errorf("augmented build got %d embeddings, want 10", len(embeddings))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestCentroidMean(t *testing.T) {
	centroid, err := Centroid([][]float64{
		{1, 2, 3},
		{3, 4, 5},
	})
	if err != nil {
		t.Fatalf("centroid failed: %v", err)
	}
	want := []float64{2, 3, 4}
	for i := range want {
		if centroid[i] != want[i] {
			t.Fatalf("centroid = %v, want %v", centroid, want)
		}
	}
}

func TestCentroidRejectsMixedLengths(t *testing.T) {
	if _, err := Centroid([][]float64{{1, 2}, {1}}); err == nil {
		t.Fatal("expected error for mixed lengths")
	}
}

func TestCentroidRejectsNonFinite(t *testing.T) {
	if _, err := Centroid([][]float64{{1, math.NaN()}}); err == nil {
		t.Fatal("expected error for NaN")
	}
	if _, err := Centroid([][]float64{{math.Inf(1), 0}}); err == nil {
		t.Fatal("expected error for Inf")
	}
}

func TestCentroidEmptyFails(t *testing.T) {
	if _, err := Centroid(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
