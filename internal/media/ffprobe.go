// Package media resolves the playable length of video sources. The playback
// clock treats a source whose duration cannot be resolved as failed to load.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/stwalsh4118/branchreel/internal/logger"
)

// Timeout for FFprobe execution
const ffprobeTimeout = 30 * time.Second

// Common errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrSourceNotFound  = errors.New("source not found or not readable")
	ErrInvalidSource   = errors.New("invalid or corrupted media source")
	ErrTimeout         = errors.New("ffprobe execution timed out")
)

// FFprobeResult represents the subset of FFprobe JSON output used for durations
type FFprobeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream represents a video or audio stream
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // "video" or "audio"
	Duration  string `json:"duration,omitempty"`
}

// Format represents the container information
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// CheckFFprobeInstalled checks if FFprobe is available in PATH
func CheckFFprobeInstalled() error {
	_, err := exec.LookPath("ffprobe")
	if err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// ProbeDuration runs FFprobe against a file path or URL and returns its length in seconds
func ProbeDuration(ctx context.Context, uri string) (float64, error) {
	if err := CheckFFprobeInstalled(); err != nil {
		return 0, err
	}

	logger.Log.Debug().
		Str("source", uri).
		Msg("Probing media duration with FFprobe")

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		uri,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Log.Error().
				Str("source", uri).
				Msg("FFprobe execution timed out")
			return 0, ErrTimeout
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			logger.Log.Error().
				Str("source", uri).
				Str("stderr", string(exitErr.Stderr)).
				Msg("FFprobe execution failed")
			return 0, fmt.Errorf("%w: %s", ErrInvalidSource, exitErr.Stderr)
		}

		return 0, fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}

	var result FFprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := extractDuration(&result)
	if err != nil {
		return 0, err
	}

	logger.Log.Info().
		Str("source", uri).
		Float64("duration", duration).
		Msg("Probed media duration")

	return duration, nil
}

// extractDuration prefers the first video stream's duration and falls back to the container's
func extractDuration(result *FFprobeResult) (float64, error) {
	for i := range result.Streams {
		stream := &result.Streams[i]
		if stream.CodecType != "video" || stream.Duration == "" {
			continue
		}
		if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil && d > 0 {
			return d, nil
		}
		break
	}

	if result.Format.Duration != "" {
		if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil && d > 0 {
			return d, nil
		}
	}

	return 0, fmt.Errorf("%w: could not determine duration", ErrInvalidSource)
}
