package services

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	if sim := CosineSimilarity([]float64{1, 0}, []float64{1, 0}); math.Abs(sim-1) > 1e-12 {
		t.Fatalf("identical vectors should score 1, got %f", sim)
	}
	if sim := CosineSimilarity([]float64{1, 0}, []float64{0, 1}); math.Abs(sim) > 1e-12 {
		t.Fatalf("orthogonal vectors should score 0, got %f", sim)
	}
	if sim := CosineSimilarity([]float64{1, 2}, []float64{-1, -2}); math.Abs(sim+1) > 1e-12 {
		t.Fatalf("opposite vectors should score -1, got %f", sim)
	}
	if sim := CosineSimilarity([]float64{1}, []float64{1, 2}); sim != 0 {
		t.Fatalf("mismatched lengths should score 0, got %f", sim)
	}
	if sim := CosineSimilarity([]float64{0, 0}, []float64{1, 1}); sim != 0 {
		t.Fatalf("zero vector should score 0, got %f", sim)
	}
}

func TestAssignIdentitiesNoDuplicates(t *testing.T) {
	// Both faces prefer A; the stronger one must win A, the other must
	// fall back to B.
	candidates := [][]Candidate{
		{{Identity: "A", Similarity: 0.71}, {Identity: "B", Similarity: 0.58}},
		{{Identity: "A", Similarity: 0.63}, {Identity: "B", Similarity: 0.61}},
	}

	assignments := AssignIdentities(candidates)
	if assignments[0].Identity != "A" || math.Abs(assignments[0].Similarity-0.71) > 1e-12 {
		t.Fatalf("face 0 should take A at 0.71, got %+v", assignments[0])
	}
	if assignments[1].Identity != "B" || math.Abs(assignments[1].Similarity-0.61) > 1e-12 {
		t.Fatalf("face 1 should fall back to B at 0.61, got %+v", assignments[1])
	}
}

func TestAssignIdentitiesUnknownWhenExhausted(t *testing.T) {
	candidates := [][]Candidate{
		{{Identity: "A", Similarity: 0.9}},
		{{Identity: "A", Similarity: 0.8}},
	}

	assignments := AssignIdentities(candidates)
	if assignments[0].Identity != "A" {
		t.Fatalf("face 0 should take A, got %+v", assignments[0])
	}
	if assignments[1].Identity != UnknownIdentity || assignments[1].Similarity != 0 {
		t.Fatalf("face 1 should be Unknown with similarity 0, got %+v", assignments[1])
	}
}

func TestAssignIdentitiesEmptyCandidates(t *testing.T) {
	assignments := AssignIdentities([][]Candidate{{}, nil})
	for i, a := range assignments {
		if a.Identity != UnknownIdentity {
			t.Fatalf("face %d should be Unknown, got %+v", i, a)
		}
	}
}

func TestAssignIdentitiesPreservesDetectionOrder(t *testing.T) {
	// The weakest face is listed first; ordering of the output must
	// still follow the input, not the processing order.
	candidates := [][]Candidate{
		{{Identity: "C", Similarity: 0.5}},
		{{Identity: "B", Similarity: 0.7}},
		{{Identity: "A", Similarity: 0.9}},
	}

	assignments := AssignIdentities(candidates)
	want := []string{"C", "B", "A"}
	for i, a := range assignments {
		if a.Identity != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, a.Identity, want[i])
		}
	}
}

func TestRankCandidatesThresholdAndOrder(t *testing.T) {
	gallery := map[string][]float64{
		"close":    {1, 0},
		"opposite": {-1, 0},
		"diagonal": {1, 1},
	}

	candidates := rankCandidates([]float64{1, 0}, gallery, 0.45)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates above threshold, got %d: %v", len(candidates), candidates)
	}
	if candidates[0].Identity != "close" {
		t.Fatalf("expected best candidate first, got %v", candidates)
	}
	if candidates[1].Identity != "diagonal" {
		t.Fatalf("expected diagonal second, got %v", candidates)
	}
}
