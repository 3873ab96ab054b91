package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Gallery artifacts map identity keys to embedding centroids. Two
// serialization shapes exist in the wild: a direct map, and a record
// with parallel "identities" and "embeddings" arrays. Readers accept
// both; writers always emit the parallel-array shape.

type galleryRecord struct {
	Identities []string    `json:"identities"`
	Embeddings [][]float64 `json:"embeddings"`
}

// ReadGalleryArtifact loads an artifact from disk, dispatching on the
// presence of the "identities" key.
func ReadGalleryArtifact(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery artifact: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("gallery artifact is not valid JSON: %w", err)
	}

	if _, ok := probe["identities"]; ok {
		var record galleryRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode gallery record: %w", err)
		}
		if len(record.Identities) != len(record.Embeddings) {
			return nil, fmt.Errorf("gallery artifact has %d identities but %d embeddings",
				len(record.Identities), len(record.Embeddings))
		}
		gallery := make(map[string][]float64, len(record.Identities))
		for i, identity := range record.Identities {
			gallery[identity] = record.Embeddings[i]
		}
		return gallery, nil
	}

	gallery := make(map[string][]float64, len(probe))
	for identity, raw := range probe {
		var emb []float64
		if err := json.Unmarshal(raw, &emb); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", identity, err)
		}
		gallery[identity] = emb
	}
	return gallery, nil
}

// WriteGalleryArtifact persists a gallery atomically in the
// parallel-array shape. Identities are written in sorted order so the
// output is deterministic.
func WriteGalleryArtifact(path string, gallery map[string][]float64) error {
	record := galleryRecord{
		Identities: make([]string, 0, len(gallery)),
		Embeddings: make([][]float64, 0, len(gallery)),
	}
	for _, identity := range sortedKeys(gallery) {
		record.Identities = append(record.Identities, identity)
		record.Embeddings = append(record.Embeddings, gallery[identity])
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create gallery directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write gallery temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace gallery artifact: %w", err)
	}
	return nil
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
