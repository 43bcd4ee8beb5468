package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYouTube_ResolveID(t *testing.T) {
	yt := NewYouTube(t.TempDir(), t.TempDir(), nil, testLogger())

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "watch URL", url: "https://www.youtube.com/watch?v=tAP1eZYEuKA", want: "tAP1eZYEuKA"},
		{name: "watch URL with extra params", url: "https://www.youtube.com/watch?v=tAP1eZYEuKA&t=42s", want: "tAP1eZYEuKA"},
		{name: "short link", url: "https://youtu.be/tAP1eZYEuKA", want: "tAP1eZYEuKA"},
		{name: "mobile", url: "https://m.youtube.com/watch?v=tAP1eZYEuKA", want: "tAP1eZYEuKA"},
		{name: "shorts", url: "https://www.youtube.com/shorts/tAP1eZYEuKA", want: "tAP1eZYEuKA"},
		{name: "embed", url: "https://www.youtube.com/embed/tAP1eZYEuKA", want: "tAP1eZYEuKA"},
		{name: "plain http", url: "http://youtube.com/watch?v=tAP1eZYEuKA", want: "tAP1eZYEuKA"},
		{name: "playlist", url: "https://www.youtube.com/playlist?list=PL123", wantErr: true},
		{name: "other host", url: "https://vimeo.com/12345", wantErr: true},
		{name: "bare watch path", url: "https://www.youtube.com/watch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := yt.ResolveID(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				assert.ErrorIs(t, err, ErrExtraction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickCaptionTrack(t *testing.T) {
	tests := []struct {
		name     string
		manual   []string
		auto     []string
		language string
		want     captionTrack
		found    bool
	}{
		{
			name:     "requested manual track wins",
			manual:   []string{"en", "ja"},
			auto:     []string{"ja"},
			language: "ja",
			want:     captionTrack{Language: "ja"},
			found:    true,
		},
		{
			name:     "regional variant matches",
			manual:   []string{"en-US"},
			language: "en",
			want:     captionTrack{Language: "en-US"},
			found:    true,
		},
		{
			name:     "requested auto track before other manual tracks",
			manual:   []string{"en"},
			auto:     []string{"en", "ja"},
			language: "ja",
			want:     captionTrack{Language: "ja", Auto: true},
			found:    true,
		},
		{
			name:     "first manual track as fallback",
			manual:   []string{"de", "fr"},
			auto:     []string{"en"},
			language: "ja",
			want:     captionTrack{Language: "de"},
			found:    true,
		},
		{
			name:     "original spoken language among auto tracks",
			auto:     []string{"af", "en-orig", "ja"},
			language: "ko",
			want:     captionTrack{Language: "en-orig", Auto: true},
			found:    true,
		},
		{
			name:     "first auto track",
			auto:     []string{"af", "ja"},
			language: "ko",
			want:     captionTrack{Language: "af", Auto: true},
			found:    true,
		},
		{
			name:     "nothing available",
			language: "ja",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickCaptionTrack(tt.manual, tt.auto, tt.language)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]json.RawMessage{
		"ja":        nil,
		"live_chat": nil,
		"en":        nil,
	}
	assert.Equal(t, []string{"en", "ja"}, sortedKeys(m))
}

func TestYtdlpInfo_ToMetadata(t *testing.T) {
	raw := `{
		"id": "tAP1eZYEuKA",
		"title": "テスト動画",
		"uploader": "uploader-name",
		"duration": 125.6,
		"upload_date": "20240315",
		"subtitles": {"ja": [], "live_chat": []},
		"automatic_captions": {"en": [], "ja-orig": []}
	}`
	var info ytdlpInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))

	m := info.toMetadata("https://youtu.be/tAP1eZYEuKA")

	assert.Equal(t, "tAP1eZYEuKA", m.YouTubeID)
	assert.Equal(t, "https://youtu.be/tAP1eZYEuKA", m.URL)
	assert.Equal(t, "uploader-name", m.Channel)
	require.NotNil(t, m.DurationSeconds)
	assert.Equal(t, 125, *m.DurationSeconds)
	require.NotNil(t, m.PublishedAt)
	assert.Equal(t, "2024-03-15", m.PublishedAt.Format("2006-01-02"))
	assert.Equal(t, []string{"ja"}, m.Subtitles)
	assert.Equal(t, []string{"en", "ja-orig"}, m.AutoCaptions)
	assert.True(t, m.HasCaptions)
}
