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

// Drafter writes a report from a stored video analysis.
type Drafter interface {
	Draft(ctx context.Context, snapshot *VideoSnapshot, formatType, customInstructions string) (*DraftedReport, error)
}

const reportPipelineName = "report"

var reportRouter = pipeline.RouterFunc[ReportState](func(s ReportState) pipeline.Route {
	switch s.Status {
	case ReportError:
		return pipeline.Error
	case ReportComplete:
		return pipeline.Complete
	default:
		return pipeline.Continue
	}
})

// ReportPipeline drafts and stores one report per run.
type ReportPipeline struct {
	drafter Drafter
	repo    Repository
	log     *logrus.Entry
	runner  *pipeline.Pipeline[ReportState]
}

// NewReportPipeline wires the report steps.
func NewReportPipeline(drafter Drafter, repo Repository, log *logrus.Entry, opts ...pipeline.Option) (*ReportPipeline, error) {
	p := &ReportPipeline{
		drafter: drafter,
		repo:    repo,
		log:     log.WithField("pipeline", reportPipelineName),
	}

	runner, err := pipeline.New(reportPipelineName,
		[]pipeline.Step[ReportState]{
			pipeline.NewStep("load_video_data", p.loadVideoData),
			pipeline.NewStep("generate_report", p.generateReport),
			pipeline.NewStep("save_report", p.saveReport),
		},
		pipeline.NewStep("finalize", finalizeReport),
		reportRouter,
		opts...,
	)
	if err != nil {
		return nil, err
	}
	p.runner = runner
	return p, nil
}

// Steps lists the step names in execution order.
func (p *ReportPipeline) Steps() []string {
	return p.runner.Steps()
}

// Generate drafts a report on videoID. An empty formatType means summary.
// Like Process, it reports every failure in the result.
func (p *ReportPipeline) Generate(ctx context.Context, videoID uint, formatType, customInstructions string) (result ReportResult) {
	start := time.Now()
	if formatType == "" {
		formatType = DefaultFormat
	}
	log := p.log.WithFields(logrus.Fields{"video_id": videoID, "format_type": formatType})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("report generation aborted")
			result = ReportResult{
				VideoID:    videoID,
				FormatType: formatType,
				Status:     string(ReportError),
				Error:      "unexpected error while generating report",
				Cause:      fmt.Errorf("panic: %v", r),
			}
		}
		result.Elapsed = time.Since(start)
	}()

	if !IsKnownFormat(formatType) {
		log.Warnf("unknown format, using the %s template", DefaultFormat)
	}

	final, err := p.runner.Run(ctx, ReportState{
		VideoID:            videoID,
		FormatType:         formatType,
		CustomInstructions: customInstructions,
		Status:             ReportInit,
	})
	if err != nil && final.Status != ReportError {
		final = final.fail(err)
	}

	result = reportResult(final)
	entry := log.WithFields(logrus.Fields{
		"status":  result.Status,
		"elapsed": time.Since(start).Round(time.Millisecond),
	})
	if result.Success {
		entry.WithField("report_id", result.ReportID).Info("report generated")
	} else {
		entry.WithField("error", result.Error).Warn("report generation failed")
	}
	return result
}

func reportResult(s ReportState) ReportResult {
	r := ReportResult{
		VideoID:    s.VideoID,
		FormatType: s.FormatType,
		Status:     string(s.Status),
	}
	if s.Status != ReportComplete {
		r.Error = s.Error
		if r.Error == "" {
			r.Error = "report generation did not complete"
		}
		r.Cause = s.Cause
		return r
	}

	r.Success = true
	r.ReportID = s.ReportID
	if s.Draft != nil {
		r.Title = s.Draft.Title
	}
	return r
}

func (p *ReportPipeline) loadVideoData(ctx context.Context, s ReportState) ReportState {
	video, err := p.repo.Video(ctx, s.VideoID)
	if err != nil {
		return s.fail(err)
	}

	segments, err := p.repo.Segments(ctx, s.VideoID)
	if err != nil {
		return s.fail(err)
	}

	s.Snapshot = NewVideoSnapshot(video, segments)
	s.Status = ReportLoaded
	return s
}

func (p *ReportPipeline) generateReport(ctx context.Context, s ReportState) ReportState {
	draft, err := p.drafter.Draft(ctx, s.Snapshot, s.FormatType, s.CustomInstructions)
	if err != nil {
		if !errors.Is(err, ErrDrafting) {
			err = fmt.Errorf("%w: %w", ErrDrafting, err)
		}
		return s.fail(err)
	}

	s.Draft = draft
	s.Status = ReportGenerated
	return s
}

func (p *ReportPipeline) saveReport(ctx context.Context, s ReportState) ReportState {
	report := &store.Report{
		VideoID:    s.VideoID,
		Title:      s.Draft.Title,
		FormatType: s.Draft.FormatType,
		Content:    s.Draft.Content,
	}
	if err := p.repo.CreateReport(ctx, report); err != nil {
		if !errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return s.fail(err)
	}

	s.ReportID = report.ID
	s.Status = ReportSaved
	return s
}

func finalizeReport(_ context.Context, s ReportState) ReportState {
	s.Status = ReportComplete
	return s
}

// NewVideoSnapshot denormalizes a stored video and its segments.
func NewVideoSnapshot(video *store.Video, segments []store.Segment) *VideoSnapshot {
	snap := &VideoSnapshot{
		ID:          video.ID,
		YouTubeID:   video.YouTubeID,
		Title:       video.Title,
		URL:         video.URL,
		ChannelName: video.ChannelName,
		Summary:     video.Summary,
		Category:    video.Category,
		Topics:      video.Topics,
		Segments:    make([]AnalyzedSegment, 0, len(segments)),
	}
	for _, seg := range segments {
		snap.Segments = append(snap.Segments, AnalyzedSegment{
			StartTime:      seg.StartTime,
			EndTime:        seg.EndTime,
			Transcript:     seg.Transcript,
			Subcategory:    seg.Subcategory,
			ContentSummary: seg.ContentSummary,
			Keywords:       seg.Keywords,
		})
	}
	return snap
}
