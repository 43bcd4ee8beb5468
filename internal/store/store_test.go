package store

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "vidscope.db"),
		Log:    logrus.NewEntry(logger),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testVideo(youtubeID string) *Video {
	return &Video{
		YouTubeID:   youtubeID,
		Title:       "テスト動画",
		URL:         "https://www.youtube.com/watch?v=" + youtubeID,
		ChannelName: "テストチャンネル",
		Summary:     "summary",
		Category:    "education",
		Topics:      []string{"a", "b", "c"},
		Processed:   true,
	}
}

func testSegments() []Segment {
	return []Segment{
		{StartTime: 1, EndTime: 2, Transcript: "テストです", Keywords: []string{"test"}},
		{StartTime: 0, EndTime: 1, Transcript: "こんにちは", Keywords: []string{"greeting"}},
	}
}

func TestStore_SaveVideo(t *testing.T) {
	ctx := context.Background()

	t.Run("creates video and segments", func(t *testing.T) {
		s := newTestStore(t)

		saved, existing, err := s.SaveVideo(ctx, testVideo("test123"), testSegments())

		require.NoError(t, err)
		assert.False(t, existing)
		assert.NotZero(t, saved.ID)
		require.Len(t, saved.Segments, 2)

		segments, err := s.Segments(ctx, saved.ID)
		require.NoError(t, err)
		require.Len(t, segments, 2)
		assert.Equal(t, "こんにちは", segments[0].Transcript)
		assert.Equal(t, []string{"greeting"}, []string(segments[0].Keywords))

		v, err := s.Video(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, []string(v.Topics))
		assert.True(t, v.Processed)
	})

	t.Run("is idempotent on youtube id", func(t *testing.T) {
		s := newTestStore(t)

		first, existing, err := s.SaveVideo(ctx, testVideo("test123"), testSegments())
		require.NoError(t, err)
		require.False(t, existing)

		second, existing, err := s.SaveVideo(ctx, testVideo("test123"), testSegments())
		require.NoError(t, err)
		assert.True(t, existing)
		assert.Equal(t, first.ID, second.ID)

		videos, err := s.Videos(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, videos, 1)

		segments, err := s.Segments(ctx, first.ID)
		require.NoError(t, err)
		assert.Len(t, segments, 2)
	})
}

func TestStore_SaveVideo_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	errSegments := errors.New("segment insert rejected")
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").Register("test:reject_segments", func(tx *gorm.DB) {
		if tx.Statement.Table == "video_segments" {
			_ = tx.AddError(errSegments)
		}
	}))

	saved, existing, err := s.SaveVideo(ctx, testVideo("test123"), testSegments())

	require.ErrorIs(t, err, errSegments)
	assert.Nil(t, saved)
	assert.False(t, existing)

	// the video row created earlier in the transaction is gone too
	_, err = s.VideoByYouTubeID(ctx, "test123")
	assert.ErrorIs(t, err, ErrNotFound)
	videos, err := s.Videos(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, videos)

	// videos without segments never reach the failing insert
	_, _, err = s.SaveVideo(ctx, testVideo("other"), nil)
	require.NoError(t, err)
}

func TestStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, _, err := s.SaveVideo(ctx, testVideo("abc"), nil)
	require.NoError(t, err)

	v, err := s.VideoByYouTubeID(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, v.ID)

	_, err = s.VideoByYouTubeID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Video(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Segment(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Report(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_VideosPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"v1", "v2", "v3"} {
		_, _, err := s.SaveVideo(ctx, testVideo(id), nil)
		require.NoError(t, err)
	}

	videos, err := s.Videos(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v3", videos[0].YouTubeID)

	videos, err = s.Videos(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "v1", videos[0].YouTubeID)
}

func TestStore_Reports(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v1, _, err := s.SaveVideo(ctx, testVideo("v1"), nil)
	require.NoError(t, err)
	v2, _, err := s.SaveVideo(ctx, testVideo("v2"), nil)
	require.NoError(t, err)

	for _, r := range []*Report{
		{VideoID: v1.ID, Title: "one", FormatType: "summary", Content: "c1"},
		{VideoID: v1.ID, Title: "two", FormatType: "markdown", Content: "c2"},
		{VideoID: v2.ID, Title: "three", FormatType: "summary", Content: "c3"},
	} {
		require.NoError(t, s.CreateReport(ctx, r))
		assert.NotZero(t, r.ID)
	}

	all, err := s.Reports(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byVideo, err := s.Reports(ctx, ReportFilter{VideoID: v1.ID})
	require.NoError(t, err)
	assert.Len(t, byVideo, 2)

	byFormat, err := s.Reports(ctx, ReportFilter{FormatType: "summary"})
	require.NoError(t, err)
	assert.Len(t, byFormat, 2)

	both, err := s.Reports(ctx, ReportFilter{VideoID: v1.ID, FormatType: "markdown"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "c2", both[0].Content)

	err = s.CreateReport(ctx, &Report{VideoID: 9999, Title: "x", FormatType: "summary", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteReport(ctx, both[0].ID))
	assert.ErrorIs(t, s.DeleteReport(ctx, both[0].ID), ErrNotFound)
}

func TestStore_DeleteVideoCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, _, err := s.SaveVideo(ctx, testVideo("test123"), testSegments())
	require.NoError(t, err)
	report := &Report{VideoID: saved.ID, Title: "t", FormatType: "summary", Content: "c"}
	require.NoError(t, s.CreateReport(ctx, report))

	segments, err := s.Segments(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	require.NoError(t, s.DeleteVideo(ctx, saved.ID))

	_, err = s.Video(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	for _, seg := range segments {
		_, err := s.Segment(ctx, seg.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err = s.Report(ctx, report.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	left, err := s.Segments(ctx, saved.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, s.DeleteVideo(ctx, saved.ID), ErrNotFound)
}

func TestStore_DeleteSegment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, _, err := s.SaveVideo(ctx, testVideo("seg"), testSegments())
	require.NoError(t, err)

	id := saved.Segments[0].ID
	require.NoError(t, s.DeleteSegment(ctx, id))
	assert.ErrorIs(t, s.DeleteSegment(ctx, id), ErrNotFound)

	left, err := s.Segments(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)", withForeignKeys("a.db"))
	assert.Equal(t, "a.db?mode=rwc&_pragma=foreign_keys(1)", withForeignKeys("a.db?mode=rwc"))
	assert.Equal(t, "a.db?_pragma=foreign_keys(0)", withForeignKeys("a.db?_pragma=foreign_keys(0)"))
}
