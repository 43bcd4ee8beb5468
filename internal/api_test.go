package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rtzll/vidscope/internal/store"
)

type apiFixture struct {
	handler http.Handler
	repo    *store.Store
}

func newAPIFixture(t *testing.T, extractor Extractor, analyzer Analyzer, drafter Drafter) *apiFixture {
	t.Helper()
	repo := newTestStore(t)
	app := newTestApp(t, repo, extractor, analyzer, drafter)
	return &apiFixture{
		handler: NewAPIServer(app, testLogger()).Handler(),
		repo:    repo,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_ProcessVideo(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newAPIFixture(t, happyExtractor(), happyAnalyzer(), &MockDrafter{})

		rec := f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"url": testURL})

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		got := decodeBody[IngestResult](t, rec)
		assert.True(t, got.Success)
		assert.NotZero(t, got.VideoID)
		assert.Equal(t, 2, got.SegmentsCount)
		assert.Equal(t, testURL, got.URL)
	})

	t.Run("missing url", func(t *testing.T) {
		f := newAPIFixture(t, &MockExtractor{}, &MockAnalyzer{}, &MockDrafter{})

		rec := f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "url is required", decodeBody[errorResponse](t, rec).Detail)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newAPIFixture(t, &MockExtractor{}, &MockAnalyzer{}, &MockDrafter{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pipeline failure is a bad request", func(t *testing.T) {
		extractor := &MockExtractor{}
		extractor.On("ResolveID", "https://example.com/x").Return("", ErrInvalidURL)
		f := newAPIFixture(t, extractor, &MockAnalyzer{}, &MockDrafter{})

		rec := f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"url": "https://example.com/x"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody[errorResponse](t, rec).Detail, "invalid YouTube URL")
	})

	t.Run("unexpected failure hides details", func(t *testing.T) {
		extractor := &MockExtractor{}
		extractor.On("ResolveID", testURL).Run(func(mock.Arguments) { panic("secret internals") }).Return("", nil)
		f := newAPIFixture(t, extractor, &MockAnalyzer{}, &MockDrafter{})

		rec := f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"url": testURL})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeBody[errorResponse](t, rec).Detail)
	})
}

func TestAPI_Videos(t *testing.T) {
	f := newAPIFixture(t, happyExtractor(), happyAnalyzer(), &MockDrafter{})
	created := decodeBody[IngestResult](t, f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"url": testURL}))
	path := "/api/v1/videos/" + jsonID(created.VideoID)

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/videos?skip=0&limit=10", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		videos := decodeBody[[]store.Video](t, rec)
		require.Len(t, videos, 1)
		assert.Equal(t, testYouTubeID, videos[0].YouTubeID)
	})

	t.Run("invalid pagination", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/videos?limit=0", nil).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/videos?limit=101", nil).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/videos?skip=-1", nil).Code)
	})

	t.Run("get with segments", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, path, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		video := decodeBody[store.Video](t, rec)
		assert.Equal(t, "テスト動画", video.Title)
		require.Len(t, video.Segments, 2)
		assert.Equal(t, "こんにちは", video.Segments[0].Transcript)
	})

	t.Run("segment lifecycle", func(t *testing.T) {
		video := decodeBody[store.Video](t, f.do(t, http.MethodGet, path, nil))
		segPath := "/api/v1/segments/" + jsonID(video.Segments[1].ID)

		rec := f.do(t, http.MethodGet, segPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "テストです", decodeBody[store.Segment](t, rec).Transcript)

		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, segPath, nil).Code)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, segPath, nil).Code)
	})

	t.Run("bad id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/videos/abc", nil).Code)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, nil).Code)

		rec := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotEmpty(t, decodeBody[errorResponse](t, rec).Detail)

		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, nil).Code)
	})
}

func TestAPI_Reports(t *testing.T) {
	f := newAPIFixture(t, happyExtractor(), happyAnalyzer(), echoDrafter())
	created := decodeBody[IngestResult](t, f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"url": testURL}))

	rec := f.do(t, http.MethodPost, "/api/v1/reports/generate", map[string]any{
		"video_id":    created.VideoID,
		"format_type": "bullet_points",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	generated := decodeBody[ReportResult](t, rec)
	assert.True(t, generated.Success)
	assert.Equal(t, "bullet_points", generated.FormatType)
	reportPath := "/api/v1/reports/" + jsonID(generated.ReportID)

	t.Run("get includes video title", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, reportPath, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		detail := decodeBody[ReportDetail](t, rec)
		assert.Equal(t, "テスト動画", detail.VideoTitle)
		assert.Equal(t, "テスト動画 - Bullet_points Report", detail.Title)
	})

	t.Run("list with filters", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/reports?video_id="+jsonID(created.VideoID)+"&format_type=bullet_points", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]store.Report](t, rec), 1)

		rec = f.do(t, http.MethodGet, "/api/v1/reports?format_type=summary", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())

		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/reports?video_id=x", nil).Code)
	})

	t.Run("generate for missing video", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/reports/generate", map[string]any{"video_id": 999})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("generate without video id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/reports/generate", map[string]any{"format_type": "summary"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, reportPath, nil).Code)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, reportPath, nil).Code)
	})
}

func TestAPI_DraftingFailure(t *testing.T) {
	drafter := &MockDrafter{}
	drafter.On("Draft", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
	f := newAPIFixture(t, happyExtractor(), happyAnalyzer(), drafter)
	created := decodeBody[IngestResult](t, f.do(t, http.MethodPost, "/api/v1/videos", map[string]string{"url": testURL}))

	rec := f.do(t, http.MethodPost, "/api/v1/reports/generate", map[string]any{"video_id": created.VideoID})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rec).Detail, "rate limited")
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t, &MockExtractor{}, &MockAnalyzer{}, &MockDrafter{})

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[statusResponse](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vidscope_http_requests_total")
}

func TestAPI_HealthUnavailable(t *testing.T) {
	repo := newTestStore(t)
	app := newTestApp(t, repo, &MockExtractor{}, &MockAnalyzer{}, &MockDrafter{})
	handler := NewAPIServer(app, testLogger()).Handler()
	require.NoError(t, repo.Close())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
