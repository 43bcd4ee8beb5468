package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
)

// VideoMetadata contains YouTube video information
type VideoMetadata struct {
	YouTubeID       string         `json:"youtube_id"`
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	Channel         string         `json:"channel_name,omitempty"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	DurationSeconds *int           `json:"duration_seconds,omitempty"`
	Description     string         `json:"description,omitempty"`
	Categories      []string       `json:"categories,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Chapters        []VideoChapter `json:"chapters,omitempty"`
	Subtitles       []string       `json:"subtitles,omitempty"`
	AutoCaptions    []string       `json:"automatic_captions,omitempty"`
	HasCaptions     bool           `json:"has_captions"`
}

// VideoChapter represents a video chapter marker
type VideoChapter struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// ytdlpInfo is the subset of yt-dlp's --dump-single-json output we use.
type ytdlpInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	Channel           string                     `json:"channel"`
	Uploader          string                     `json:"uploader"`
	WebpageURL        string                     `json:"webpage_url"`
	Duration          float64                    `json:"duration"`
	UploadDate        string                     `json:"upload_date"`
	Timestamp         *int64                     `json:"timestamp"`
	Categories        []string                   `json:"categories"`
	Tags              []string                   `json:"tags"`
	Chapters          []VideoChapter             `json:"chapters"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

// Transcriber turns an audio file into timed transcript entries.
type Transcriber interface {
	Transcribe(ctx context.Context, audioFile string) ([]TranscriptEntry, error)
}

// YouTube handles YouTube metadata, caption and audio operations
type YouTube struct {
	cacheDir    string
	tempDir     string
	whisper     Transcriber
	log         *logrus.Entry
	installOnce sync.Once
	installErr  error
}

// NewYouTube creates a new YouTube extractor. whisper may be nil, which
// disables the audio transcription fallback.
func NewYouTube(cacheDir, tempDir string, whisper Transcriber, log *logrus.Entry) *YouTube {
	return &YouTube{
		cacheDir: cacheDir,
		tempDir:  tempDir,
		whisper:  whisper,
		log:      log.WithField("component", "youtube"),
	}
}

// ensureInstalled downloads yt-dlp on first use when it is not on PATH.
func (yt *YouTube) ensureInstalled(ctx context.Context) error {
	yt.installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			yt.installErr = fmt.Errorf("%w: installing yt-dlp: %w", ErrExtraction, err)
		}
	})
	return yt.installErr
}

// ResolveID extracts the video ID from a YouTube URL.
func (yt *YouTube) ResolveID(youtubeURL string) (string, error) {
	id, err := youtubeID(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return id, nil
}

// Metadata fetches video details using go-ytdlp
func (yt *YouTube) Metadata(ctx context.Context, youtubeURL string) (*VideoMetadata, error) {
	id, err := yt.ResolveID(youtubeURL)
	if err != nil {
		return nil, err
	}

	info, err := yt.info(ctx, youtubeURL)
	if err != nil {
		return nil, err
	}

	metadata := info.toMetadata(youtubeURL)
	if metadata.YouTubeID == "" {
		metadata.YouTubeID = id
	}

	yt.log.WithFields(logrus.Fields{
		"youtube_id":   metadata.YouTubeID,
		"title":        metadata.Title,
		"channel":      metadata.Channel,
		"has_captions": metadata.HasCaptions,
	}).Info("metadata extracted")

	return metadata, nil
}

func (yt *YouTube) info(ctx context.Context, youtubeURL string) (*ytdlpInfo, error) {
	if err := yt.ensureInstalled(ctx); err != nil {
		return nil, err
	}

	dl := ytdlp.New().
		DumpSingleJSON(). // Get all info in JSON format
		NoPlaylist().     // Don't process playlists
		SkipDownload()    // Don't download the actual video

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		if result != nil {
			yt.log.WithField("stderr", result.Stderr).Debug("yt-dlp metadata extraction failed")
		}
		return nil, fmt.Errorf("%w: extracting video metadata: %w", ErrExtraction, err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, fmt.Errorf("%w: parsing video metadata: %w", ErrExtraction, err)
	}
	return &info, nil
}

func (info *ytdlpInfo) toMetadata(inputURL string) *VideoMetadata {
	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}

	m := &VideoMetadata{
		YouTubeID:    info.ID,
		Title:        info.Title,
		URL:          inputURL,
		Channel:      channel,
		Description:  info.Description,
		Categories:   info.Categories,
		Tags:         info.Tags,
		Chapters:     info.Chapters,
		Subtitles:    sortedKeys(info.Subtitles),
		AutoCaptions: sortedKeys(info.AutomaticCaptions),
	}
	m.HasCaptions = len(m.Subtitles) > 0 || len(m.AutoCaptions) > 0

	if info.Duration > 0 {
		d := int(info.Duration)
		m.DurationSeconds = &d
	}

	switch {
	case info.Timestamp != nil:
		t := time.Unix(*info.Timestamp, 0).UTC()
		m.PublishedAt = &t
	case info.UploadDate != "":
		if t, err := time.Parse("20060102", info.UploadDate); err == nil {
			m.PublishedAt = &t
		}
	}

	return m
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		// yt-dlp lists live chat replays as a subtitle track
		if k == "live_chat" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// captionTrack is the subtitle track chosen for download.
type captionTrack struct {
	Language string
	Auto     bool
}

// pickCaptionTrack applies the language priority: requested manual captions,
// requested auto-generated captions, then the first available track.
func pickCaptionTrack(manual, auto []string, language string) (captionTrack, bool) {
	if lang, ok := matchLanguage(manual, language); ok {
		return captionTrack{Language: lang}, true
	}
	if lang, ok := matchLanguage(auto, language); ok {
		return captionTrack{Language: lang, Auto: true}, true
	}
	if len(manual) > 0 {
		return captionTrack{Language: manual[0]}, true
	}
	// auto captions include machine translations; "-orig" marks the spoken language
	for _, lang := range auto {
		if strings.HasSuffix(lang, "-orig") {
			return captionTrack{Language: lang, Auto: true}, true
		}
	}
	if len(auto) > 0 {
		return captionTrack{Language: auto[0], Auto: true}, true
	}
	return captionTrack{}, false
}

func matchLanguage(available []string, language string) (string, bool) {
	if language == "" {
		return "", false
	}
	if slices.Contains(available, language) {
		return language, true
	}
	for _, lang := range available {
		if strings.HasPrefix(lang, language+"-") {
			return lang, true
		}
	}
	return "", false
}

// Transcript fetches a timed transcript for a video. When the video has no
// captions and a Whisper transcriber is configured, the audio is transcribed
// instead.
func (yt *YouTube) Transcript(ctx context.Context, youtubeID, language string) ([]TranscriptEntry, error) {
	videoURL := "https://www.youtube.com/watch?v=" + youtubeID
	log := yt.log.WithField("youtube_id", youtubeID)

	info, err := yt.info(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	m := info.toMetadata(videoURL)

	track, ok := pickCaptionTrack(m.Subtitles, m.AutoCaptions, language)
	if !ok {
		if yt.whisper == nil {
			return nil, fmt.Errorf("%w: no captions available for %s", ErrExtraction, youtubeID)
		}
		log.Warn("no captions available, falling back to Whisper")
		return yt.transcribeAudio(ctx, videoURL)
	}

	if track.Language != language {
		log.WithFields(logrus.Fields{
			"requested": language,
			"using":     track.Language,
			"auto":      track.Auto,
		}).Warn("requested caption language not available")
	}

	entries, err := yt.downloadCaptions(ctx, videoURL, youtubeID, track)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty transcript for %s", ErrExtraction, youtubeID)
	}

	log.WithFields(logrus.Fields{
		"language": track.Language,
		"auto":     track.Auto,
		"entries":  len(entries),
	}).Info("transcript extracted")
	return entries, nil
}

// downloadCaptions fetches one subtitle track as SRT into a scratch directory.
func (yt *YouTube) downloadCaptions(ctx context.Context, videoURL, youtubeID string, track captionTrack) ([]TranscriptEntry, error) {
	if err := EnsureDirs(yt.tempDir); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	dir, err := os.MkdirTemp(yt.tempDir, "subs-")
	if err != nil {
		return nil, fmt.Errorf("creating subtitle directory: %w", err)
	}
	defer os.RemoveAll(dir)

	dl := ytdlp.New().
		SubLangs(track.Language). // Only the chosen track
		ConvertSubs("srt").       // Convert subtitles to SRT format
		SkipDownload().           // Skip downloading the video
		NoPlaylist().
		Output(filepath.Join(dir, "%(id)s"))
	if track.Auto {
		dl = dl.WriteAutoSubs()
	} else {
		dl = dl.WriteSubs()
	}

	result, err := dl.Run(ctx, videoURL)
	if err != nil {
		if result != nil {
			yt.log.WithField("stderr", result.Stderr).Debug("yt-dlp subtitle download failed")
		}
		return nil, fmt.Errorf("%w: %w: %w", ErrExtraction, ErrDownloadFailed, err)
	}

	files, err := filepath.Glob(filepath.Join(dir, youtubeID+"*.srt"))
	if err != nil || len(files) == 0 {
		return nil, fmt.Errorf("%w: no subtitle files found after download", ErrExtraction)
	}

	content, err := os.ReadFile(files[0])
	if err != nil {
		return nil, fmt.Errorf("%w: reading SRT file: %w", ErrExtraction, err)
	}

	entries := parseSRT(string(content))
	if track.Auto {
		entries = collapseRollingCaptions(entries)
	}
	return entries, nil
}

// Audio gets mp3 audio from a YouTube video
func (yt *YouTube) Audio(ctx context.Context, youtubeURL string) (string, error) {
	videoID, err := youtubeID(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("extracting video ID: %w", err)
	}

	if err := EnsureDirs(yt.cacheDir); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	outputPath := filepath.Join(yt.cacheDir, "%(id)s.%(ext)s")

	dl := ytdlp.New().
		Format("bestaudio"). // Select best audio format
		ExtractAudio().      // Extract audio from video
		AudioFormat("mp3").  // Convert to MP3 format
		AudioQuality("10").  // Set audio quality (0 is best, 10 is worst)
		NoPlaylist().
		Output(outputPath)

	yt.log.WithField("youtube_id", videoID).Info("downloading audio")
	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		if result != nil {
			yt.log.WithField("stderr", result.Stderr).Debug("yt-dlp audio download failed")
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	return filepath.Join(yt.cacheDir, videoID+".mp3"), nil
}

func (yt *YouTube) transcribeAudio(ctx context.Context, videoURL string) ([]TranscriptEntry, error) {
	audioFile, err := yt.Audio(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading audio: %w", ErrExtraction, err)
	}

	entries, err := yt.whisper.Transcribe(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper transcription: %w", ErrExtraction, err)
	}
	return entries, nil
}
