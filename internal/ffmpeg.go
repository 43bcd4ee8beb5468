package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// AudioChunk is a slice of a source audio file with its offset in the video.
type AudioChunk struct {
	Path     string
	Start    float64
	Duration float64
}

// Audio probes and cuts downloaded audio with ffprobe/ffmpeg for the
// Whisper fallback.
type Audio struct {
	cmdRunner CommandRunner
	tempDir   string
	log       *logrus.Entry
}

func NewAudio(cmdRunner CommandRunner, tempDir string, log *logrus.Entry) *Audio {
	return &Audio{
		cmdRunner: cmdRunner,
		tempDir:   tempDir,
		log:       log,
	}
}

// Duration returns the length of audioFile in seconds.
func (a *Audio) Duration(ctx context.Context, audioFile string) (float64, error) {
	out, err := a.cmdRunner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioFile)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", filepath.Base(audioFile), err, strings.TrimSpace(string(out)))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return seconds, nil
}

// planChunks divides total seconds into n contiguous windows. The last
// window absorbs the remainder so the windows always cover the whole file.
func planChunks(total float64, n int) []AudioChunk {
	if n < 1 {
		n = 1
	}
	step := total / float64(n)
	chunks := make([]AudioChunk, n)
	for i := range chunks {
		start := float64(i) * step
		length := step
		if i == n-1 {
			length = total - start
		}
		chunks[i] = AudioChunk{Start: start, Duration: length}
	}
	return chunks
}

// Split cuts audioFile into n timed chunks under the temp directory. With
// n <= 1 the source file is returned as a single chunk and nothing is written.
func (a *Audio) Split(ctx context.Context, audioFile string, n int) ([]AudioChunk, error) {
	total, err := a.Duration(ctx, audioFile)
	if err != nil {
		return nil, err
	}
	if n <= 1 {
		return []AudioChunk{{Path: audioFile, Duration: total}}, nil
	}

	if err := EnsureDirs(a.tempDir); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	plan := planChunks(total, n)
	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	a.log.WithFields(logrus.Fields{
		"file":     audioFile,
		"chunks":   n,
		"duration": total,
	}).Debug("splitting audio")

	written := make([]string, 0, n)
	for i := range plan {
		plan[i].Path = filepath.Join(a.tempDir, fmt.Sprintf("%s.part%02d.mp3", base, i))
		if err := a.cut(ctx, audioFile, plan[i]); err != nil {
			cleanupFiles(written...)
			return nil, fmt.Errorf("cutting chunk %d/%d: %w", i+1, n, err)
		}
		written = append(written, plan[i].Path)
	}
	return plan, nil
}

// cut re-encodes one window as mono 64k mp3, which keeps chunks well under
// the Whisper upload limit.
func (a *Audio) cut(ctx context.Context, audioFile string, c AudioChunk) error {
	out, err := a.cmdRunner.Run(ctx, "ffmpeg",
		"-v", "error",
		"-ss", strconv.FormatFloat(c.Start, 'f', 3, 64),
		"-t", strconv.FormatFloat(c.Duration, 'f', 3, 64),
		"-i", audioFile,
		"-vn", "-ac", "1", "-b:a", "64k",
		"-y", c.Path)
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
