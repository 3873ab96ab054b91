package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services/spaces"
)

// ArchiveService copies gallery artifacts and session documents to a
// Spaces bucket after a build. It is optional infrastructure: when no
// bucket is configured the service is nil and callers skip it.
type ArchiveService struct {
	client *spaces.Client
	paths  *Paths
}

// NewArchiveService creates a new archive service
func NewArchiveService(client *spaces.Client, paths *Paths) *ArchiveService {
	return &ArchiveService{client: client, paths: paths}
}

// ErrArchivingDisabled is returned when no Spaces bucket is configured.
var ErrArchivingDisabled = fmt.Errorf("archiving is not configured")

// Enabled reports whether a Spaces bucket is configured.
func (a *ArchiveService) Enabled() bool {
	return a.client != nil
}

// ArchiveGallery uploads the batch's gallery artifact.
func (a *ArchiveService) ArchiveGallery(ctx context.Context, batch model.Batch) (string, error) {
	if !a.Enabled() {
		return "", ErrArchivingDisabled
	}

	artifactPath := a.paths.GalleryPath(batch)
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("failed to read gallery artifact: %w", err)
	}

	key := path.Join("galleries", batch.Dir()+".pth")
	url, err := a.client.UploadBytes(ctx, key, data)
	if err != nil {
		return "", err
	}
	log.Printf("Archived gallery %s to %s", batch, key)
	return url, nil
}

// ArchiveSession uploads a student's session document.
func (a *ArchiveService) ArchiveSession(ctx context.Context, batch model.Batch, regNo string) (string, error) {
	if !a.Enabled() {
		return "", ErrArchivingDisabled
	}

	data, err := os.ReadFile(a.paths.SessionPath(batch, regNo))
	if err != nil {
		return "", fmt.Errorf("failed to read session document: %w", err)
	}

	key := path.Join("sessions", batch.Dir(), regNo+".json")
	url, err := a.client.UploadBytes(ctx, key, data)
	if err != nil {
		return "", err
	}
	return url, nil
}

// ListArchivedGalleries returns the archived gallery keys.
func (a *ArchiveService) ListArchivedGalleries(ctx context.Context) ([]string, error) {
	if !a.Enabled() {
		return nil, ErrArchivingDisabled
	}
	return a.client.List(ctx, "galleries/")
}
