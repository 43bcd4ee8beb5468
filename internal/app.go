package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rtzll/vidscope/internal/pipeline"
	"github.com/rtzll/vidscope/internal/store"
)

// App holds the application state and dependencies
type App struct {
	log       *logrus.Entry
	repo      Repository
	extractor Extractor
	analyzer  Analyzer
	drafter   Drafter
	ui        UIManager
	observers []pipeline.Observer

	ingest  *IngestPipeline
	reports *ReportPipeline
}

// NewApp initializes the application. A repository must be supplied with
// WithRepository; the other collaborators default to the YouTube and OpenAI
// implementations built from config.
func NewApp(config *Config, options ...AppOption) (*App, error) {
	app := &App{
		ui: NewUIManager(config.Verbose, config.Quiet),
	}

	for _, option := range options {
		option(app)
	}

	if app.repo == nil {
		return nil, errors.New("no repository configured")
	}
	if app.log == nil {
		app.log = discardLogger()
	}

	if app.extractor == nil || app.analyzer == nil || app.drafter == nil {
		audio := NewAudio(&DefaultCommandRunner{}, config.TempDir, app.log)
		ai := NewAIWithKey(config.OpenAIAPIKey, audio, WhisperLimit, config.LLMTimeout, config.WhisperTimeout, app.log)

		if app.extractor == nil {
			var whisper Transcriber
			if config.FallbackWhisper {
				whisper = ai
			}
			app.extractor = NewYouTube(config.CacheDir, config.TempDir, whisper, app.log)
		}
		if app.analyzer == nil {
			prompts := NewPromptManager(config.ConfigDir, "analysis_prompt.txt", config.AnalysisPrompt)
			app.analyzer = NewContentAnalyzer(ai, prompts, config.AnalysisModel, app.log)
		}
		if app.drafter == nil {
			prompts := NewPromptManager(config.ConfigDir, "report_prompt.txt", config.ReportPrompt)
			app.drafter = NewReportDrafter(ai, prompts, config.ReportModel, app.log)
		}
	}

	opts := []pipeline.Option{pipeline.WithObserver(newStepObserver(app.log))}
	for _, o := range app.observers {
		opts = append(opts, pipeline.WithObserver(o))
	}

	var err error
	app.ingest, err = NewIngestPipeline(app.extractor, app.analyzer, app.repo, config.TranscriptLanguage, app.log, opts...)
	if err != nil {
		return nil, fmt.Errorf("building ingestion pipeline: %w", err)
	}
	app.reports, err = NewReportPipeline(app.drafter, app.repo, app.log, opts...)
	if err != nil {
		return nil, fmt.Errorf("building report pipeline: %w", err)
	}

	return app, nil
}

// AppOption customizes App creation
type AppOption func(*App)

// WithRepository sets the persistence layer
func WithRepository(repo Repository) AppOption {
	return func(a *App) {
		a.repo = repo
	}
}

// WithExtractor sets a custom metadata and transcript source
func WithExtractor(extractor Extractor) AppOption {
	return func(a *App) {
		a.extractor = extractor
	}
}

// WithAnalyzer sets a custom transcript analyzer
func WithAnalyzer(analyzer Analyzer) AppOption {
	return func(a *App) {
		a.analyzer = analyzer
	}
}

// WithDrafter sets a custom report drafter
func WithDrafter(drafter Drafter) AppOption {
	return func(a *App) {
		a.drafter = drafter
	}
}

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) AppOption {
	return func(a *App) {
		a.log = log
	}
}

// WithObserver adds a pipeline step observer
func WithObserver(o pipeline.Observer) AppOption {
	return func(a *App) {
		a.observers = append(a.observers, o)
	}
}

// WithUI sets the user interface manager
func WithUI(ui UIManager) AppOption {
	return func(a *App) {
		a.ui = ui
	}
}

// UI returns the user interface manager
func (app *App) UI() UIManager {
	return app.ui
}

// Logger returns the app logger
func (app *App) Logger() *logrus.Entry {
	return app.log
}

// Process ingests a YouTube video.
func (app *App) Process(ctx context.Context, url string) IngestResult {
	result := app.ingest.Process(ctx, url)
	recordIngest(result)
	return result
}

// Generate drafts and stores a report on a stored video.
func (app *App) Generate(ctx context.Context, videoID uint, formatType, customInstructions string) ReportResult {
	result := app.reports.Generate(ctx, videoID, formatType, customInstructions)
	recordReport(result)
	return result
}

// Video returns a stored video with its segments.
func (app *App) Video(ctx context.Context, id uint) (*store.Video, error) {
	video, err := app.repo.Video(ctx, id)
	if err != nil {
		return nil, err
	}
	segments, err := app.repo.Segments(ctx, id)
	if err != nil {
		return nil, err
	}
	video.Segments = segments
	return video, nil
}

// Videos lists stored videos, newest first.
func (app *App) Videos(ctx context.Context, skip, limit int) ([]store.Video, error) {
	return app.repo.Videos(ctx, skip, limit)
}

// DeleteVideo removes a video with its segments and reports.
func (app *App) DeleteVideo(ctx context.Context, id uint) error {
	if err := app.repo.DeleteVideo(ctx, id); err != nil {
		return err
	}
	app.log.WithField("video_id", id).Info("video deleted")
	return nil
}

// Segment returns one stored segment.
func (app *App) Segment(ctx context.Context, id uint) (*store.Segment, error) {
	return app.repo.Segment(ctx, id)
}

// DeleteSegment removes one segment.
func (app *App) DeleteSegment(ctx context.Context, id uint) error {
	return app.repo.DeleteSegment(ctx, id)
}

// ReportDetail is a report together with the title of its video.
type ReportDetail struct {
	store.Report
	VideoTitle string `json:"video_title"`
}

// Report returns one report with its video title.
func (app *App) Report(ctx context.Context, id uint) (*ReportDetail, error) {
	report, err := app.repo.Report(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ReportDetail{Report: *report}
	video, err := app.repo.Video(ctx, report.VideoID)
	switch {
	case err == nil:
		detail.VideoTitle = video.Title
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return detail, nil
}

// Reports lists reports matching f.
func (app *App) Reports(ctx context.Context, f store.ReportFilter) ([]store.Report, error) {
	return app.repo.Reports(ctx, f)
}

// DeleteReport removes one report.
func (app *App) DeleteReport(ctx context.Context, id uint) error {
	return app.repo.DeleteReport(ctx, id)
}

// Segments lists the segments of a video in time order.
func (app *App) Segments(ctx context.Context, videoID uint) ([]store.Segment, error) {
	if _, err := app.repo.Video(ctx, videoID); err != nil {
		return nil, err
	}
	return app.repo.Segments(ctx, videoID)
}

// Ping checks the repository when it supports health checks.
func (app *App) Ping(ctx context.Context) error {
	if p, ok := app.repo.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
