package internal

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rtzll/vidscope/internal/store"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ResolveID(url string) (string, error) {
	args := m.Called(url)
	return args.String(0), args.Error(1)
}

func (m *MockExtractor) Metadata(ctx context.Context, url string) (*VideoMetadata, error) {
	args := m.Called(ctx, url)
	if md, ok := args.Get(0).(*VideoMetadata); ok {
		return md, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExtractor) Transcript(ctx context.Context, youtubeID, language string) ([]TranscriptEntry, error) {
	args := m.Called(ctx, youtubeID, language)
	if entries, ok := args.Get(0).([]TranscriptEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, metadata *VideoMetadata, transcript []TranscriptEntry) (*Analysis, error) {
	args := m.Called(ctx, metadata, transcript)
	if a, ok := args.Get(0).(*Analysis); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDrafter struct {
	mock.Mock
}

func (m *MockDrafter) Draft(ctx context.Context, snapshot *VideoSnapshot, formatType, customInstructions string) (*DraftedReport, error) {
	args := m.Called(ctx, snapshot, formatType, customInstructions)
	if fn, ok := args.Get(0).(func(context.Context, *VideoSnapshot, string, string) *DraftedReport); ok {
		return fn(ctx, snapshot, formatType, customInstructions), args.Error(1)
	}
	if r, ok := args.Get(0).(*DraftedReport); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// failingRepo wraps a real repository and fails writes.
type failingRepo struct {
	Repository
	err error
}

func (r *failingRepo) SaveVideo(context.Context, *store.Video, []store.Segment) (*store.Video, bool, error) {
	return nil, false, r.err
}

func (r *failingRepo) CreateReport(context.Context, *store.Report) error {
	return r.err
}

// cancelingRepo cancels the run's context right after a write commits.
type cancelingRepo struct {
	Repository
	cancel context.CancelFunc
}

func (r *cancelingRepo) SaveVideo(ctx context.Context, video *store.Video, segments []store.Segment) (*store.Video, bool, error) {
	saved, existing, err := r.Repository.SaveVideo(ctx, video, segments)
	r.cancel()
	return saved, existing, err
}

func (r *cancelingRepo) CreateReport(ctx context.Context, report *store.Report) error {
	err := r.Repository.CreateReport(ctx, report)
	r.cancel()
	return err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.Options{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "vidscope.db"),
		Log:    testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const (
	testURL       = "https://www.youtube.com/watch?v=test123"
	testYouTubeID = "test123"
)

func testMetadata() *VideoMetadata {
	return &VideoMetadata{
		YouTubeID: testYouTubeID,
		Title:     "テスト動画",
		URL:       testURL,
		Channel:   "テストチャンネル",
	}
}

func testTranscript() []TranscriptEntry {
	return []TranscriptEntry{
		{Text: "こんにちは", Start: 0, Duration: 1},
		{Text: "テストです", Start: 1, Duration: 1},
	}
}

func testAnalysis() *Analysis {
	return &Analysis{
		Summary:  "挨拶とテストの動画",
		Category: "education",
		Topics:   []string{"挨拶", "テスト", "動画"},
		Segments: []AnalyzedSegment{
			{StartTime: 0, EndTime: 1, Transcript: "こんにちは", Subcategory: "greeting", ContentSummary: "挨拶", Keywords: []string{"こんにちは"}},
			{StartTime: 1, EndTime: 2, Transcript: "テストです", Subcategory: "test", ContentSummary: "テスト", Keywords: []string{"テスト"}},
		},
	}
}

// happyExtractor returns an extractor mock answering for the test video.
func happyExtractor() *MockExtractor {
	m := &MockExtractor{}
	m.On("ResolveID", testURL).Return(testYouTubeID, nil)
	m.On("Metadata", mock.Anything, testURL).Return(testMetadata(), nil)
	m.On("Transcript", mock.Anything, testYouTubeID, "ja").Return(testTranscript(), nil)
	return m
}

func happyAnalyzer() *MockAnalyzer {
	m := &MockAnalyzer{}
	m.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return(testAnalysis(), nil)
	return m
}

func echoDrafter() *MockDrafter {
	m := &MockDrafter{}
	m.On("Draft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(
		func(_ context.Context, snap *VideoSnapshot, format, _ string) *DraftedReport {
			return &DraftedReport{
				Title:      ReportTitle(snap.Title, format),
				FormatType: format,
				Content:    "# " + snap.Title + "\n\n" + snap.Summary,
			}
		}, nil)
	return m
}

func newTestApp(t *testing.T, repo Repository, extractor Extractor, analyzer Analyzer, drafter Drafter) *App {
	t.Helper()

	app, err := NewApp(&Config{TranscriptLanguage: "ja", Quiet: true},
		WithRepository(repo),
		WithExtractor(extractor),
		WithAnalyzer(analyzer),
		WithDrafter(drafter),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)
	return app
}
