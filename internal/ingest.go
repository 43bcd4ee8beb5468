package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtzll/vidscope/internal/pipeline"
	"github.com/rtzll/vidscope/internal/store"
)

// Extractor resolves YouTube URLs into metadata and timed transcripts.
type Extractor interface {
	ResolveID(url string) (string, error)
	Metadata(ctx context.Context, url string) (*VideoMetadata, error)
	Transcript(ctx context.Context, youtubeID, language string) ([]TranscriptEntry, error)
}

// Analyzer turns a transcript into a structured analysis.
type Analyzer interface {
	Analyze(ctx context.Context, metadata *VideoMetadata, transcript []TranscriptEntry) (*Analysis, error)
}

// Repository is the persistence surface used by the pipelines and the App.
// *store.Store satisfies it.
type Repository interface {
	SaveVideo(ctx context.Context, video *store.Video, segments []store.Segment) (*store.Video, bool, error)
	Video(ctx context.Context, id uint) (*store.Video, error)
	VideoByYouTubeID(ctx context.Context, youtubeID string) (*store.Video, error)
	Videos(ctx context.Context, skip, limit int) ([]store.Video, error)
	DeleteVideo(ctx context.Context, id uint) error
	Segments(ctx context.Context, videoID uint) ([]store.Segment, error)
	Segment(ctx context.Context, id uint) (*store.Segment, error)
	DeleteSegment(ctx context.Context, id uint) error
	CreateReport(ctx context.Context, report *store.Report) error
	Report(ctx context.Context, id uint) (*store.Report, error)
	Reports(ctx context.Context, f store.ReportFilter) ([]store.Report, error)
	DeleteReport(ctx context.Context, id uint) error
}

const ingestPipelineName = "ingest"

var ingestRouter = pipeline.RouterFunc[IngestState](func(s IngestState) pipeline.Route {
	switch s.Status {
	case IngestError:
		return pipeline.Error
	case IngestComplete:
		return pipeline.Complete
	default:
		return pipeline.Continue
	}
})

// IngestPipeline extracts, analyzes and stores one video per run.
type IngestPipeline struct {
	extractor Extractor
	analyzer  Analyzer
	repo      Repository
	language  string
	log       *logrus.Entry
	runner    *pipeline.Pipeline[IngestState]
}

// NewIngestPipeline wires the ingestion steps. language is the preferred
// caption language.
func NewIngestPipeline(extractor Extractor, analyzer Analyzer, repo Repository, language string, log *logrus.Entry, opts ...pipeline.Option) (*IngestPipeline, error) {
	p := &IngestPipeline{
		extractor: extractor,
		analyzer:  analyzer,
		repo:      repo,
		language:  language,
		log:       log.WithField("pipeline", ingestPipelineName),
	}

	runner, err := pipeline.New(ingestPipelineName,
		[]pipeline.Step[IngestState]{
			pipeline.NewStep("extract_metadata", p.extractMetadata),
			pipeline.NewStep("extract_transcript", p.extractTranscript),
			pipeline.NewStep("analyze_content", p.analyzeContent),
			pipeline.NewStep("save_to_database", p.saveToDatabase),
		},
		pipeline.NewStep("finalize", finalizeIngest),
		ingestRouter,
		opts...,
	)
	if err != nil {
		return nil, err
	}
	p.runner = runner
	return p, nil
}

// Steps lists the step names in execution order.
func (p *IngestPipeline) Steps() []string {
	return p.runner.Steps()
}

// Process runs the pipeline for url. It never panics and never returns an
// error; failures are reported in the result.
func (p *IngestPipeline) Process(ctx context.Context, url string) (result IngestResult) {
	start := time.Now()
	log := p.log.WithField("url", url)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("ingestion aborted")
			result = IngestResult{
				URL:    url,
				Status: string(IngestError),
				Error:  "unexpected error while processing video",
				Cause:  fmt.Errorf("panic: %v", r),
			}
		}
		result.Elapsed = time.Since(start)
	}()

	log.Info("processing video")
	final, err := p.runner.Run(ctx, IngestState{URL: url, Status: IngestInit})
	if err != nil && final.Status != IngestError {
		final = final.fail(err)
	}

	result = ingestResult(final)
	entry := log.WithFields(logrus.Fields{
		"status":   result.Status,
		"video_id": result.VideoID,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	})
	if result.Success {
		entry.WithField("segments", result.SegmentsCount).Info("video processed")
	} else {
		entry.WithField("error", result.Error).Warn("video processing failed")
	}
	return result
}

func ingestResult(s IngestState) IngestResult {
	if s.Status != IngestComplete {
		msg := s.Error
		if msg == "" {
			msg = "processing did not complete"
		}
		return IngestResult{
			URL:       s.URL,
			YouTubeID: s.YouTubeID,
			Status:    string(s.Status),
			Error:     msg,
			Cause:     s.Cause,
		}
	}

	r := IngestResult{
		Success:   true,
		URL:       s.URL,
		VideoID:   s.VideoID,
		YouTubeID: s.YouTubeID,
		Existing:  s.Existing,
		Status:    string(s.Status),
	}
	if s.Metadata != nil {
		r.Title = s.Metadata.Title
	}
	if s.Analysis != nil {
		r.SegmentsCount = len(s.Analysis.Segments)
	}
	return r
}

func (p *IngestPipeline) extractMetadata(ctx context.Context, s IngestState) IngestState {
	id, err := p.extractor.ResolveID(s.URL)
	if err != nil {
		return s.fail(asExtraction(err))
	}

	metadata, err := p.extractor.Metadata(ctx, s.URL)
	if err != nil {
		return s.fail(asExtraction(err))
	}
	if metadata.YouTubeID == "" {
		metadata.YouTubeID = id
	}
	if metadata.URL == "" {
		metadata.URL = s.URL
	}

	s.YouTubeID = metadata.YouTubeID
	s.Metadata = metadata
	s.Status = IngestMetadataExtracted
	return s
}

func (p *IngestPipeline) extractTranscript(ctx context.Context, s IngestState) IngestState {
	entries, err := p.extractor.Transcript(ctx, s.YouTubeID, p.language)
	if err != nil {
		return s.fail(asExtraction(err))
	}
	if len(entries) == 0 {
		return s.fail(fmt.Errorf("%w: empty transcript for %s", ErrExtraction, s.YouTubeID))
	}

	s.Transcript = entries
	s.Status = IngestTranscriptExtracted
	return s
}

func (p *IngestPipeline) analyzeContent(ctx context.Context, s IngestState) IngestState {
	analysis, err := p.analyzer.Analyze(ctx, s.Metadata, s.Transcript)
	if err != nil {
		if !errors.Is(err, ErrAnalysis) {
			err = fmt.Errorf("%w: %w", ErrAnalysis, err)
		}
		return s.fail(err)
	}

	s.Analysis = analysis
	s.Status = IngestAnalysisCompleted
	return s
}

func (p *IngestPipeline) saveToDatabase(ctx context.Context, s IngestState) IngestState {
	video, segments := videoRecord(s.Metadata, s.Analysis)

	saved, existing, err := p.repo.SaveVideo(ctx, video, segments)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if existing {
		p.log.WithFields(logrus.Fields{
			"youtube_id": saved.YouTubeID,
			"video_id":   saved.ID,
		}).Debug("reusing stored video")
	}

	s.VideoID = saved.ID
	s.Existing = existing
	s.Status = IngestSavedToDB
	return s
}

func finalizeIngest(_ context.Context, s IngestState) IngestState {
	s.Status = IngestComplete
	return s
}

// videoRecord maps extracted metadata and the analysis to store rows.
func videoRecord(m *VideoMetadata, a *Analysis) (*store.Video, []store.Segment) {
	video := &store.Video{
		YouTubeID:       m.YouTubeID,
		Title:           m.Title,
		URL:             m.URL,
		ChannelName:     m.Channel,
		PublishedAt:     m.PublishedAt,
		DurationSeconds: m.DurationSeconds,
		Summary:         a.Summary,
		Category:        a.Category,
		Topics:          a.Topics,
		Processed:       true,
	}

	segments := make([]store.Segment, 0, len(a.Segments))
	for _, seg := range a.Segments {
		segments = append(segments, store.Segment{
			StartTime:      seg.StartTime,
			EndTime:        seg.EndTime,
			Transcript:     seg.Transcript,
			Subcategory:    seg.Subcategory,
			ContentSummary: seg.ContentSummary,
			Keywords:       seg.Keywords,
		})
	}
	return video, segments
}

func asExtraction(err error) error {
	if errors.Is(err, ErrExtraction) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExtraction, err)
}
