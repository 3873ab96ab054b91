package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// Codec attempt order for video normalization. Each video codec is
// tried against every audio codec and then once with the audio track
// stripped, so a broken or exotic audio stream never blocks enrollment.
var (
	videoCodecs = []string{"mpeg4", "libopenh264", "libvpx", "libvpx-vp9", "mjpeg"}
	audioCodecs = []string{"mp3", "libmp3lame", "pcm_s16le", "aac"}
)

// VideoService accepts raw enrollment uploads and normalizes them into
// the student directory.
type VideoService struct {
	paths      *Paths
	sessions   *SessionStore
	transcoder vision.Transcoder
}

// NewVideoService creates a new video service
func NewVideoService(paths *Paths, sessions *SessionStore, transcoder vision.Transcoder) *VideoService {
	return &VideoService{
		paths:      paths,
		sessions:   sessions,
		transcoder: transcoder,
	}
}

// UploadVideo stores the raw upload, converts it to the normalized
// container and updates the session document. A re-upload that fails
// partway restores both the previous video and the previous session
// byte for byte.
func (v *VideoService) UploadVideo(ctx context.Context, batch model.Batch, regNo string, raw []byte) (*model.SessionDocument, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty video upload for %s", regNo)
	}

	if _, err := v.paths.EnsureStudentDir(batch, regNo); err != nil {
		return nil, err
	}

	sessionPath := v.paths.SessionPath(batch, regNo)
	videoPath := v.paths.VideoPath(batch, regNo)
	tempPath := v.paths.TempVideoPath(batch, regNo)

	// Snapshot state so a failed re-upload can roll back.
	sessionSnap, err := v.sessions.Snapshot(sessionPath)
	if err != nil {
		return nil, err
	}
	videoSnap, videoExisted, err := snapshotFile(videoPath)
	if err != nil {
		return nil, err
	}

	rollback := func() {
		if restoreErr := v.sessions.Restore(sessionPath, sessionSnap); restoreErr != nil {
			log.Printf("rollback: failed to restore session for %s: %v", regNo, restoreErr)
		}
		if videoExisted {
			if restoreErr := os.WriteFile(videoPath, videoSnap, 0o644); restoreErr != nil {
				log.Printf("rollback: failed to restore video for %s: %v", regNo, restoreErr)
			}
		} else {
			os.Remove(videoPath)
		}
	}

	if err := os.WriteFile(tempPath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	defer os.Remove(tempPath)

	if err := v.normalize(ctx, tempPath, videoPath); err != nil {
		rollback()
		return nil, err
	}

	info, err := os.Stat(videoPath)
	if err != nil || info.Size() == 0 {
		rollback()
		return nil, fmt.Errorf("conversion produced no output for %s", regNo)
	}

	if err := v.sessions.MarkVideoUploaded(sessionPath, videoPath, time.Now().UTC().Format(time.RFC3339)); err != nil {
		rollback()
		return nil, err
	}

	doc, err := v.sessions.Read(sessionPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Video uploaded for %s (%s): %d bytes normalized", regNo, batch, info.Size())
	return doc, nil
}

// normalize walks the codec ladder until one conversion succeeds.
func (v *VideoService) normalize(ctx context.Context, inputPath, outputPath string) error {
	var lastErr error
	for _, vc := range videoCodecs {
		for _, ac := range audioCodecs {
			err := v.transcoder.Transcode(ctx, inputPath, outputPath, vision.TranscodeOptions{
				VideoCodec: vc,
				AudioCodec: ac,
			})
			if err == nil {
				return nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		// Every audio variant failed for this encoder; retry it with
		// the audio track stripped before moving to the next one.
		err := v.transcoder.Transcode(ctx, inputPath, outputPath, vision.TranscodeOptions{
			VideoCodec: vc,
			DropAudio:  true,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("all codec combinations failed: %w", lastErr)
}

func snapshotFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to snapshot %s: %w", path, err)
	}
	return data, true, nil
}
