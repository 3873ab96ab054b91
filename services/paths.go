package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sahilchouksey/face-gallery-api/config"
	"github.com/sahilchouksey/face-gallery-api/model"
)

// Paths resolves every on-disk location the pipeline touches. All
// per-student artifacts live under the student data root in one
// directory per batch, one subdirectory per register number.
type Paths struct {
	StudentDataRoot string
	GalleryDataRoot string
	GalleryRoot     string
}

// NewPaths builds the path resolver from the loaded environment.
func NewPaths(env *config.EnviornmentVariable) *Paths {
	return &Paths{
		StudentDataRoot: env.STUDENT_DATA_DIR,
		GalleryDataRoot: env.GALLERY_DATA_DIR,
		GalleryRoot:     env.GALLERY_DIR,
	}
}

// BatchDir is the per-batch directory holding all student folders.
func (p *Paths) BatchDir(batch model.Batch) string {
	return filepath.Join(p.StudentDataRoot, batch.Dir())
}

// StudentDir is the folder for one student's session, video and faces.
func (p *Paths) StudentDir(batch model.Batch, regNo string) string {
	return filepath.Join(p.BatchDir(batch), regNo)
}

// SessionPath is the student's session document.
func (p *Paths) SessionPath(batch model.Batch, regNo string) string {
	return filepath.Join(p.StudentDir(batch, regNo), regNo+".json")
}

// VideoPath is the normalized enrollment video.
func (p *Paths) VideoPath(batch model.Batch, regNo string) string {
	return filepath.Join(p.StudentDir(batch, regNo), regNo+".mp4")
}

// TempVideoPath is the raw upload before normalization.
func (p *Paths) TempVideoPath(batch model.Batch, regNo string) string {
	return filepath.Join(p.StudentDir(batch, regNo), regNo+"_temp.webm")
}

// FaceDataDir holds the extracted face crops of one batch, one
// subdirectory per identity.
func (p *Paths) FaceDataDir(batch model.Batch) string {
	return filepath.Join(p.GalleryDataRoot, batch.Dir())
}

// FacesDir holds the extracted face crops of one student.
func (p *Paths) FacesDir(batch model.Batch, regNo string) string {
	return filepath.Join(p.FaceDataDir(batch), regNo)
}

// FailedFramesDir holds diagnostic dumps of frames that failed the
// quality gate.
func (p *Paths) FailedFramesDir(batch model.Batch, regNo string) string {
	return filepath.Join(p.StudentDir(batch, regNo), "failed_frames")
}

// GalleryPath is the serialized gallery artifact for one batch.
func (p *Paths) GalleryPath(batch model.Batch) string {
	return filepath.Join(p.GalleryRoot, fmt.Sprintf("%s.pth", batch.Dir()))
}

// EnsureStudentDir creates the student folder if it does not exist.
func (p *Paths) EnsureStudentDir(batch model.Batch, regNo string) (string, error) {
	dir := p.StudentDir(batch, regNo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create student directory: %w", err)
	}
	return dir, nil
}
