package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FrameSource decodes individual frames out of a video file.
type FrameSource interface {
	CountFrames(ctx context.Context, videoPath string) (int, error)
	Frame(ctx context.Context, videoPath string, index int) (image.Image, error)
	// ExtractFrames dumps every stride-th frame as a JPEG into outDir,
	// at most max files, and returns the paths in frame order.
	ExtractFrames(ctx context.Context, videoPath, outDir string, stride, max int) ([]string, error)
}

// FFmpegFrameSource reads frames by shelling out to ffmpeg/ffprobe.
type FFmpegFrameSource struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegFrameSource creates a frame source using the given binaries.
func NewFFmpegFrameSource(ffmpegPath, ffprobePath string) *FFmpegFrameSource {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegFrameSource{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// CountFrames asks ffprobe for the stream's frame count. Containers
// without an nb_frames header fall back to a full packet count.
func (s *FFmpegFrameSource) CountFrames(ctx context.Context, videoPath string) (int, error) {
	out, err := exec.CommandContext(ctx, s.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames",
		"-of", "default=nokey=1:noprint_wrappers=1",
		videoPath,
	).Output()
	if err == nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(string(out))); convErr == nil && n > 0 {
			return n, nil
		}
	}

	out, err = exec.CommandContext(ctx, s.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "default=nokey=1:noprint_wrappers=1",
		videoPath,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe frame count failed: %w", err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("ffprobe returned no frame count for %s", videoPath)
	}
	return n, nil
}

// Frame decodes the frame at the given zero-based index.
func (s *FFmpegFrameSource) Frame(ctx context.Context, videoPath string, index int) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.FFmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", index),
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame %d failed: %w: %s", index, err, lastStderrLines(stderr.String(), 2))
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, nil
}

// ExtractFrames dumps frames to outDir using ffmpeg's select filter.
func (s *FFmpegFrameSource) ExtractFrames(ctx context.Context, videoPath, outDir string, stride, max int) ([]string, error) {
	if stride < 1 {
		stride = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	args := []string{"-i", videoPath}
	if stride > 1 {
		args = append(args, "-vf", fmt.Sprintf("select=not(mod(n\\,%d))", stride), "-vsync", "vfr")
	}
	if max > 0 {
		args = append(args, "-vframes", strconv.Itoa(max))
	}
	args = append(args, "-qscale:v", "2", filepath.Join(outDir, "frame_%05d.jpg"))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.FFmpegPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, lastStderrLines(stderr.String(), 2))
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// SampleIndices returns n evenly spaced frame indices over [0, total).
// For n >= total every frame index is returned once.
func SampleIndices(total, n int) []int {
	if total <= 0 || n <= 0 {
		return nil
	}
	if n >= total {
		indices := make([]int, total)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	if n == 1 {
		return []int{0}
	}

	indices := make([]int, 0, n)
	step := float64(total-1) / float64(n-1)
	last := -1
	for i := 0; i < n; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx >= total {
			idx = total - 1
		}
		if idx == last {
			continue
		}
		indices = append(indices, idx)
		last = idx
	}
	return indices
}
