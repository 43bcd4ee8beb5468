package internal

import (
	"time"
)

// TranscriptEntry is one timed caption line.
type TranscriptEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Analysis is the structured result of analysing a transcript.
type Analysis struct {
	Summary  string            `json:"summary"`
	Category string            `json:"category"`
	Topics   []string          `json:"topics"`
	Segments []AnalyzedSegment `json:"segments"`
}

// AnalyzedSegment is a meaningful section of a video as identified by the model.
type AnalyzedSegment struct {
	StartTime      float64  `json:"start_time"`
	EndTime        float64  `json:"end_time"`
	Transcript     string   `json:"transcript"`
	Subcategory    string   `json:"subcategory"`
	ContentSummary string   `json:"content_summary"`
	Keywords       []string `json:"keywords"`
}

// VideoSnapshot is a stored video with its segments, as handed to the drafter.
type VideoSnapshot struct {
	ID          uint
	YouTubeID   string
	Title       string
	URL         string
	ChannelName string
	Summary     string
	Category    string
	Topics      []string
	Segments    []AnalyzedSegment
}

// DraftedReport is the drafter's output.
type DraftedReport struct {
	Title      string `json:"title"`
	FormatType string `json:"format_type"`
	Content    string `json:"content"`
}

// IngestStatus tracks progress through the ingestion pipeline.
type IngestStatus string

const (
	IngestInit                IngestStatus = "initialized"
	IngestMetadataExtracted   IngestStatus = "metadata_extracted"
	IngestTranscriptExtracted IngestStatus = "transcript_extracted"
	IngestAnalysisCompleted   IngestStatus = "analysis_completed"
	IngestSavedToDB           IngestStatus = "saved_to_db"
	IngestComplete            IngestStatus = "complete"
	IngestError               IngestStatus = "error"
)

// IngestState is threaded through the ingestion steps. Each step returns a
// new value; fields set by earlier steps carry over.
type IngestState struct {
	URL string

	YouTubeID  string
	Metadata   *VideoMetadata
	Transcript []TranscriptEntry
	Analysis   *Analysis
	VideoID    uint
	Existing   bool

	Status IngestStatus
	Error  string
	Cause  error
}

func (s IngestState) fail(err error) IngestState {
	s.Status = IngestError
	s.Error = err.Error()
	s.Cause = err
	return s
}

// ReportStatus tracks progress through the report pipeline.
type ReportStatus string

const (
	ReportInit      ReportStatus = "initialized"
	ReportLoaded    ReportStatus = "video_loaded"
	ReportGenerated ReportStatus = "report_generated"
	ReportSaved     ReportStatus = "report_saved"
	ReportComplete  ReportStatus = "complete"
	ReportError     ReportStatus = "error"
)

// ReportState is threaded through the report steps.
type ReportState struct {
	VideoID            uint
	FormatType         string
	CustomInstructions string

	Snapshot *VideoSnapshot
	Draft    *DraftedReport
	ReportID uint

	Status ReportStatus
	Error  string
	Cause  error
}

func (s ReportState) fail(err error) ReportState {
	s.Status = ReportError
	s.Error = err.Error()
	s.Cause = err
	return s
}

// IngestResult is the outcome of Process.
type IngestResult struct {
	Success       bool          `json:"success"`
	URL           string        `json:"video_url"`
	VideoID       uint          `json:"video_id,omitempty"`
	YouTubeID     string        `json:"youtube_id,omitempty"`
	Title         string        `json:"title,omitempty"`
	SegmentsCount int           `json:"segments_count,omitempty"`
	Existing      bool          `json:"existing,omitempty"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	Elapsed       time.Duration `json:"-"`
	Cause         error         `json:"-"`
}

// ReportResult is the outcome of Generate.
type ReportResult struct {
	Success    bool          `json:"success"`
	VideoID    uint          `json:"video_id"`
	ReportID   uint          `json:"report_id,omitempty"`
	Title      string        `json:"title,omitempty"`
	FormatType string        `json:"format_type"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"-"`
	Cause      error         `json:"-"`
}
