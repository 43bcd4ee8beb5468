package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers ffprobe with a fixed duration and makes ffmpeg write
// an empty file at its output path.
type fakeRunner struct {
	duration string
	calls    [][]string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	switch name {
	case "ffprobe":
		return []byte(r.duration), nil
	case "ffmpeg":
		return nil, os.WriteFile(args[len(args)-1], nil, 0o644)
	}
	return nil, errors.New("unexpected command " + name)
}

type MockOpenAIClient struct {
	mock.Mock
}

func (m *MockOpenAIClient) CreateTranscription(ctx context.Context, file *os.File) (string, error) {
	args := m.Called(ctx, file)
	return args.String(0), args.Error(1)
}

func (m *MockOpenAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestPlanChunks(t *testing.T) {
	chunks := planChunks(100, 3)

	require.Len(t, chunks, 3)
	assert.InDelta(t, 0, chunks[0].Start, 0.001)
	assert.InDelta(t, 33.333, chunks[1].Start, 0.001)
	assert.InDelta(t, 66.667, chunks[2].Start, 0.001)
	assert.InDelta(t, 100, chunks[2].Start+chunks[2].Duration, 0.001)

	assert.Len(t, planChunks(10, 0), 1)
}

func TestAudio_Split(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()

	t.Run("single chunk keeps the source", func(t *testing.T) {
		runner := &fakeRunner{duration: "42.5\n"}
		audio := NewAudio(runner, tempDir, testLogger())

		chunks, err := audio.Split(ctx, "/tmp/source.m4a", 1)

		require.NoError(t, err)
		assert.Equal(t, []AudioChunk{{Path: "/tmp/source.m4a", Duration: 42.5}}, chunks)
		assert.Len(t, runner.calls, 1)
	})

	t.Run("cuts timed chunks", func(t *testing.T) {
		runner := &fakeRunner{duration: "90"}
		audio := NewAudio(runner, tempDir, testLogger())

		chunks, err := audio.Split(ctx, "/tmp/source.m4a", 3)

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, filepath.Join(tempDir, "source.part01.mp3"), chunks[1].Path)
		assert.InDelta(t, 60, chunks[2].Start, 0.001)
		assert.FileExists(t, chunks[2].Path)
		assert.Contains(t, runner.calls[2], "30.000")
	})

	t.Run("bad duration", func(t *testing.T) {
		audio := NewAudio(&fakeRunner{duration: "N/A"}, tempDir, testLogger())

		_, err := audio.Split(ctx, "/tmp/source.m4a", 2)

		assert.Error(t, err)
	})
}

func TestAI_Transcribe(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	source := filepath.Join(dir, "audio.m4a")
	require.NoError(t, os.WriteFile(source, []byte("0123456789"), 0o644))

	client := &MockOpenAIClient{}
	client.On("CreateTranscription", mock.Anything, mock.Anything).Return("一つ目", nil).Once()
	client.On("CreateTranscription", mock.Anything, mock.Anything).Return("  ", nil).Once()
	client.On("CreateTranscription", mock.Anything, mock.Anything).Return("三つ目", nil).Once()

	audio := NewAudio(&fakeRunner{duration: "90"}, filepath.Join(dir, "chunks"), testLogger())
	ai := NewAI(client, audio, 4, time.Minute, time.Minute, testLogger())

	entries, err := ai.Transcribe(ctx, source)

	require.NoError(t, err)
	assert.Equal(t, []TranscriptEntry{
		{Text: "一つ目", Start: 0, Duration: 30},
		{Text: "三つ目", Start: 60, Duration: 30},
	}, entries)
	assert.FileExists(t, source)
	leftovers, err := filepath.Glob(filepath.Join(dir, "chunks", "*.mp3"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	client.AssertExpectations(t)
}

func TestAI_Complete(t *testing.T) {
	ctx := context.Background()
	req := ChatRequest{Model: "gpt-4o-mini", Prompt: "hi"}

	t.Run("success", func(t *testing.T) {
		client := &MockOpenAIClient{}
		client.On("CreateChatCompletion", mock.Anything, req).Return("hello", nil)

		got, err := NewAI(client, nil, WhisperLimit, time.Second, 0, testLogger()).Complete(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("client error", func(t *testing.T) {
		client := &MockOpenAIClient{}
		boom := errors.New("rate limited")
		client.On("CreateChatCompletion", mock.Anything, req).Return("", boom)

		_, err := NewAI(client, nil, WhisperLimit, 0, 0, testLogger()).Complete(ctx, req)

		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewAIWithKey("", nil, WhisperLimit, 0, 0, testLogger()).Complete(ctx, req)

		assert.ErrorContains(t, err, "API key is required")
	})
}
