package vision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Transcoder re-encodes an uploaded video into a normalized container.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, opts TranscodeOptions) error
}

// TranscodeOptions selects the codec pair for one conversion attempt.
// DropAudio strips the audio track entirely instead of re-encoding it.
type TranscodeOptions struct {
	VideoCodec string
	AudioCodec string
	DropAudio  bool
}

// FFmpegTranscoder shells out to the ffmpeg binary.
type FFmpegTranscoder struct {
	BinaryPath string
	Timeout    time.Duration
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary.
func NewFFmpegTranscoder(binaryPath string) *FFmpegTranscoder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpegTranscoder{
		BinaryPath: binaryPath,
		Timeout:    120 * time.Second,
	}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string, opts TranscodeOptions) error {
	args := []string{"-y", "-i", inputPath, "-c:v", opts.VideoCodec}
	if opts.DropAudio {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", opts.AudioCodec)
	}
	args = append(args, "-movflags", "+faststart", outputPath)

	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, t.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s: %w", t.Timeout, runCtx.Err())
		}
		return fmt.Errorf("ffmpeg failed (%v/%v audio=%v): %w: %s",
			opts.VideoCodec, opts.AudioCodec, !opts.DropAudio, err, lastStderrLines(stderr.String(), 3))
	}
	return nil
}

// lastStderrLines keeps error messages readable: ffmpeg dumps its full
// banner on stderr, only the tail states the actual failure.
func lastStderrLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
