package services

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestGalleryArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DPT001_2027.pth")
	gallery := map[string][]float64{
		"110121104001": {0.1, -0.25, 0.333333333333},
		"110121104002": {1, 0, -1},
	}

	if err := WriteGalleryArtifact(path, gallery); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadGalleryArtifact(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !reflect.DeepEqual(got, gallery) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, gallery)
	}
}

func TestReadGalleryArtifactDirectMapShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.pth")
	raw := []byte(`{"110121104001":[0.5,0.25],"110121104002":[-1,2]}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadGalleryArtifact(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	want := map[string][]float64{
		"110121104001": {0.5, 0.25},
		"110121104002": {-1, 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadGalleryArtifactParallelArrayShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.pth")
	raw := []byte(`{"identities":["a","b"],"embeddings":[[1,2],[3,4]]}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadGalleryArtifact(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 2 || got["a"][0] != 1 || got["b"][1] != 4 {
		t.Fatalf("unexpected gallery %v", got)
	}
}

func TestReadGalleryArtifactLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pth")
	raw := []byte(`{"identities":["a","b"],"embeddings":[[1,2]]}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadGalleryArtifact(path); err == nil {
		t.Fatal("expected error for mismatched parallel arrays")
	}
}

func TestWriteGalleryArtifactIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	gallery := map[string][]float64{"z": {1}, "a": {2}, "m": {3}}

	p1 := filepath.Join(dir, "one.pth")
	p2 := filepath.Join(dir, "two.pth")
	if err := WriteGalleryArtifact(p1, gallery); err != nil {
		t.Fatal(err)
	}
	if err := WriteGalleryArtifact(p2, gallery); err != nil {
		t.Fatal(err)
	}

	b1, _ := os.ReadFile(p1)
	b2, _ := os.ReadFile(p2)
	if string(b1) != string(b2) {
		t.Fatal("identical galleries serialized differently")
	}
}
