package video

// ffmpeg.go decodes a video into a sequential frame stream by extracting
// JPEG frames with ffmpeg and streaming them back in order. ffprobe
// supplies duration and frame rate so the extraction rate can adapt to
// video length. It shells out because no pure Go decoder handles the
// container formats ffmpeg does.

import (
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// frameJPEGQuality controls the JPEG quality for extracted frames.
	// qscale:v 2 is high quality, minimizing compression artifacts that
	// would skew histogram scoring and captioning.
	frameJPEGQuality = 2

	// maxExtractionFPS caps the extraction rate for short videos.
	maxExtractionFPS = 10.0

	// reducedFPS5 is used for videos between 2 and 10 minutes.
	reducedFPS5 = 5.0

	// reducedFPS2 is used for videos over 10 minutes.
	reducedFPS2 = 2.0
)

// Metadata holds the subset of ffprobe output the pipeline needs.
type Metadata struct {
	Duration  float64 // seconds
	FrameRate float64
	Width     int
	Height    int
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Probe extracts video metadata using ffprobe.
func Probe(ctx context.Context, videoPath string) (*Metadata, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &Metadata{}
	if probe.Format.Duration != "" {
		meta.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}
	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		meta.Width = stream.Width
		meta.Height = stream.Height
		meta.FrameRate = parseFrameRate(stream.AvgFrameRate)
		break
	}

	log.Debug().
		Float64("duration_s", meta.Duration).
		Float64("fps", meta.FrameRate).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Msg("video metadata extracted")

	return meta, nil
}

// parseFrameRate parses ffprobe's rational frame rate (e.g. "30000/1001").
func parseFrameRate(value string) float64 {
	if value == "" || value == "0/0" {
		return 0
	}
	parts := strings.SplitN(value, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}

// FFmpegSource streams frames extracted from a video file. Extraction
// happens once at construction; Next decodes one JPEG per call so only a
// single frame is held in memory at a time.
type FFmpegSource struct {
	frameDir      string
	framePaths    []string
	extractionFPS float64
	pos           int
}

// NewFFmpegSource extracts frames from videoPath at fps (or an adaptive
// rate when fps is zero) and returns a source streaming them in order.
// The caller must Close the source to remove the temporary frame files.
func NewFFmpegSource(ctx context.Context, videoPath string, fps float64) (*FFmpegSource, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: frame extraction requires ffmpeg: %w", err)
	}

	meta, err := Probe(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	if fps <= 0 {
		fps = adaptiveExtractionFPS(meta.Duration)
	}

	frameDir, err := os.MkdirTemp("", "sagevision-frames-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	framePattern := filepath.Join(frameDir, "frame_%06d.jpg")
	args := []string{
		"-i", videoPath,
		"-qscale:v", strconv.Itoa(frameJPEGQuality),
		"-vf", fmt.Sprintf("fps=%.2f", fps),
		"-vsync", "0",
		"-y", framePattern,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.RemoveAll(frameDir)
		return nil, fmt.Errorf("frame extraction failed: %w\nOutput: %s", err, string(output))
	}

	framePaths, err := collectFramePaths(frameDir)
	if err != nil {
		os.RemoveAll(frameDir)
		return nil, fmt.Errorf("failed to collect frame paths: %w", err)
	}
	if len(framePaths) == 0 {
		os.RemoveAll(frameDir)
		return nil, fmt.Errorf("no frames extracted from video: %s", filepath.Base(videoPath))
	}

	log.Info().
		Str("video", filepath.Base(videoPath)).
		Int("total_frames", len(framePaths)).
		Float64("extraction_fps", fps).
		Msg("frame extraction complete")

	return &FFmpegSource{
		frameDir:      frameDir,
		framePaths:    framePaths,
		extractionFPS: fps,
	}, nil
}

// TotalFrames reports how many frames the source will produce.
func (s *FFmpegSource) TotalFrames() int { return len(s.framePaths) }

func (s *FFmpegSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.framePaths) {
		return Frame{}, io.EOF
	}

	path := s.framePaths[s.pos]
	f, err := os.Open(path)
	if err != nil {
		return Frame{}, &SourceError{Frame: s.pos, Err: err}
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return Frame{}, &SourceError{Frame: s.pos, Err: fmt.Errorf("failed to decode frame: %w", err)}
	}

	frame := Frame{
		Index:     s.pos,
		Timestamp: float64(s.pos) / s.extractionFPS,
		Image:     img,
		Path:      path,
	}
	s.pos++
	return frame, nil
}

// Close removes the temporary frame directory.
func (s *FFmpegSource) Close() error {
	if s.frameDir == "" {
		return nil
	}
	if err := os.RemoveAll(s.frameDir); err != nil {
		log.Warn().Err(err).Str("dir", s.frameDir).Msg("failed to remove frame directory")
		return err
	}
	s.frameDir = ""
	return nil
}

// adaptiveExtractionFPS reduces the extraction rate for longer videos so
// frame counts stay manageable.
func adaptiveExtractionFPS(durationSeconds float64) float64 {
	switch {
	case durationSeconds <= 0:
		// Unknown duration
		return reducedFPS5
	case durationSeconds <= 120:
		return maxExtractionFPS
	case durationSeconds <= 600:
		return reducedFPS5
	default:
		return reducedFPS2
	}
}

// collectFramePaths returns sorted paths to all frame files in a directory.
func collectFramePaths(frameDir string) ([]string, error) {
	entries, err := os.ReadDir(frameDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".jpg") {
			paths = append(paths, filepath.Join(frameDir, name))
		}
	}

	sort.Strings(paths)
	return paths, nil
}

var _ FrameSource = (*FFmpegSource)(nil)
var _ FrameSource = (*SliceSource)(nil)
