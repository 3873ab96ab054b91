package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/sahilchouksey/face-gallery-api/model"
)

// GalleryService builds, updates and registers gallery artifacts.
type GalleryService struct {
	db         *gorm.DB
	paths      *Paths
	embeddings *EmbeddingService
}

// NewGalleryService creates a new gallery service
func NewGalleryService(db *gorm.DB, paths *Paths, embeddings *EmbeddingService) *GalleryService {
	return &GalleryService{
		db:         db,
		paths:      paths,
		embeddings: embeddings,
	}
}

// CreateGallery computes a centroid for every identity under the
// batch's face-data directory, writes the artifact and registers it.
// An existing artifact for the batch is replaced wholesale.
func (g *GalleryService) CreateGallery(ctx context.Context, batch model.Batch, augmentRatio float64, augsPerImage int) (*model.Gallery, error) {
	identities, err := g.listIdentities(batch)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities with face crops for batch %s", batch)
	}

	gallery, err := g.computeCentroids(ctx, batch, identities, augmentRatio, augsPerImage)
	if err != nil {
		return nil, err
	}

	artifactPath := g.paths.GalleryPath(batch)
	if err := WriteGalleryArtifact(artifactPath, gallery); err != nil {
		return nil, err
	}

	row, err := g.Register(batch, artifactPath, len(gallery))
	if err != nil {
		return nil, err
	}
	log.Printf("Gallery created for %s: %d identities", batch, len(gallery))
	return row, nil
}

// UpdateGallery merges freshly computed centroids into an existing
// artifact, overwriting entries by identity key. Missing artifacts are
// treated as empty.
func (g *GalleryService) UpdateGallery(ctx context.Context, batch model.Batch, augmentRatio float64, augsPerImage int) (*model.Gallery, error) {
	identities, err := g.listIdentities(batch)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities with face crops for batch %s", batch)
	}

	artifactPath := g.paths.GalleryPath(batch)
	gallery := map[string][]float64{}
	if _, statErr := os.Stat(artifactPath); statErr == nil {
		existing, readErr := ReadGalleryArtifact(artifactPath)
		if readErr != nil {
			return nil, readErr
		}
		gallery = existing
	}

	fresh, err := g.computeCentroids(ctx, batch, identities, augmentRatio, augsPerImage)
	if err != nil {
		return nil, err
	}
	for identity, centroid := range fresh {
		gallery[identity] = centroid
	}

	if err := WriteGalleryArtifact(artifactPath, gallery); err != nil {
		return nil, err
	}

	row, err := g.Register(batch, artifactPath, len(gallery))
	if err != nil {
		return nil, err
	}
	log.Printf("Gallery updated for %s: %d identities (%d recomputed)", batch, len(gallery), len(fresh))
	return row, nil
}

// DeleteGallery removes the artifact and its registration.
func (g *GalleryService) DeleteGallery(batch model.Batch) error {
	artifactPath := g.paths.GalleryPath(batch)
	if err := os.Remove(artifactPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove gallery artifact: %w", err)
	}

	year, dept, err := g.batchRows(batch)
	if err != nil {
		return err
	}
	result := g.db.Where("year_id = ? AND department_id = ?", year.ID, dept.ID).Delete(&model.Gallery{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete gallery registration: %w", result.Error)
	}
	log.Printf("Gallery deleted for %s", batch)
	return nil
}

// Register upserts the gallery row for (batch year, department).
func (g *GalleryService) Register(batch model.Batch, artifactPath string, identityCount int) (*model.Gallery, error) {
	year, dept, err := g.batchRows(batch)
	if err != nil {
		return nil, err
	}

	var row model.Gallery
	err = g.db.Where("year_id = ? AND department_id = ?", year.ID, dept.ID).First(&row).Error
	switch {
	case err == nil:
		row.FilePath = artifactPath
		row.IdentityCount = identityCount
		if err := g.db.Save(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to update gallery registration: %w", err)
		}
	case err == gorm.ErrRecordNotFound:
		row = model.Gallery{
			YearID:        year.ID,
			DepartmentID:  dept.ID,
			FilePath:      artifactPath,
			IdentityCount: identityCount,
		}
		if err := g.db.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to register gallery: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up gallery registration: %w", err)
	}
	return &row, nil
}

// GalleryInfo lists the identities stored in a batch's artifact.
func (g *GalleryService) GalleryInfo(batch model.Batch) ([]string, error) {
	gallery, err := ReadGalleryArtifact(g.paths.GalleryPath(batch))
	if err != nil {
		return nil, err
	}
	return sortedKeys(gallery), nil
}

// ListGalleries returns all registered gallery rows with relations.
func (g *GalleryService) ListGalleries() ([]model.Gallery, error) {
	var rows []model.Gallery
	if err := g.db.Preload("Year").Preload("Department").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list galleries: %w", err)
	}
	return rows, nil
}

// SyncGalleries reconciles the registration table with the artifacts
// on disk: unregistered artifacts are registered, rows whose file is
// gone are removed.
func (g *GalleryService) SyncGalleries() (added, removed int, err error) {
	entries, err := os.ReadDir(g.paths.GalleryRoot)
	if err != nil && !os.IsNotExist(err) {
		return 0, 0, fmt.Errorf("failed to read gallery directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pth") {
			continue
		}
		batch, parseErr := model.ParseBatchDir(entry.Name())
		if parseErr != nil {
			log.Printf("Sync: skipping unrecognized artifact %s", entry.Name())
			continue
		}

		artifactPath := filepath.Join(g.paths.GalleryRoot, entry.Name())
		gallery, readErr := ReadGalleryArtifact(artifactPath)
		if readErr != nil {
			log.Printf("Sync: skipping unreadable artifact %s: %v", entry.Name(), readErr)
			continue
		}

		var count int64
		g.db.Model(&model.Gallery{}).Where("file_path = ?", artifactPath).Count(&count)
		if count == 0 {
			if _, regErr := g.Register(batch, artifactPath, len(gallery)); regErr != nil {
				log.Printf("Sync: failed to register %s: %v", entry.Name(), regErr)
				continue
			}
			added++
		}
	}

	var rows []model.Gallery
	if err := g.db.Find(&rows).Error; err != nil {
		return added, removed, fmt.Errorf("failed to list registrations: %w", err)
	}
	for _, row := range rows {
		if _, statErr := os.Stat(row.FilePath); os.IsNotExist(statErr) {
			if delErr := g.db.Delete(&row).Error; delErr != nil {
				log.Printf("Sync: failed to remove stale row %d: %v", row.ID, delErr)
				continue
			}
			removed++
		}
	}

	log.Printf("Gallery sync: %d registered, %d removed", added, removed)
	return added, removed, nil
}

// ResolveGalleryPaths maps gallery names (batch directory names, with
// or without the .pth suffix) to artifact paths.
func (g *GalleryService) ResolveGalleryPaths(names []string) ([]string, error) {
	paths := make([]string, 0, len(names))
	for _, name := range names {
		batch, err := model.ParseBatchDir(name)
		if err != nil {
			return nil, err
		}
		path := g.paths.GalleryPath(batch)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("gallery %s not found: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *GalleryService) listIdentities(batch model.Batch) ([]string, error) {
	dataDir := g.paths.FaceDataDir(batch)
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read face data for %s: %w", batch, err)
	}

	identities := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			identities = append(identities, entry.Name())
		}
	}
	return identities, nil
}

func (g *GalleryService) computeCentroids(ctx context.Context, batch model.Batch, identities []string, augmentRatio float64, augsPerImage int) (map[string][]float64, error) {
	gallery := make(map[string][]float64, len(identities))
	for _, identity := range identities {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		embeddings, err := g.embeddings.IdentityEmbeddings(ctx,
			filepath.Join(g.paths.FaceDataDir(batch), identity), augmentRatio, augsPerImage)
		if err != nil {
			log.Printf("Skipping identity %s: %v", identity, err)
			continue
		}
		centroid, err := Centroid(embeddings)
		if err != nil {
			log.Printf("Skipping identity %s: %v", identity, err)
			continue
		}
		gallery[identity] = centroid
	}
	if len(gallery) == 0 {
		return nil, fmt.Errorf("no identity produced a valid centroid for %s", batch)
	}
	return gallery, nil
}

func (g *GalleryService) batchRows(batch model.Batch) (*model.BatchYear, *model.Department, error) {
	var year model.BatchYear
	if err := g.db.Where("year = ?", batch.Year).First(&year).Error; err != nil {
		return nil, nil, fmt.Errorf("unknown batch year %s: %w", batch.Year, err)
	}
	var dept model.Department
	if err := g.db.Where("department_id = ?", batch.DeptCode).First(&dept).Error; err != nil {
		return nil, nil, fmt.Errorf("unknown department %s: %w", batch.DeptCode, err)
	}
	return &year, &dept, nil
}
