package internal

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"
)

// ChatRequest is a single system+user chat completion.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// OpenAIClientInterface defines the interface for OpenAI client operations
type OpenAIClientInterface interface {
	CreateTranscription(ctx context.Context, file *os.File) (string, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// OpenAIClient wraps the official OpenAI Go SDK
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client}
}

// CreateTranscription implements the transcription method
func (c *OpenAIClient) CreateTranscription(ctx context.Context, file *os.File) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CreateChatCompletion implements the chat completion method
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	var oaiModel openai.ChatModel
	switch req.Model {
	case "gpt-4o":
		oaiModel = openai.ChatModelGPT4o
	case "gpt-4o-mini":
		oaiModel = openai.ChatModelGPT4oMini
	case "gpt-4.1-mini":
		oaiModel = openai.ChatModelGPT4_1Mini
	case "gpt-4.1-nano":
		oaiModel = openai.ChatModelGPT4_1Nano
	case "o4-mini":
		oaiModel = openai.ChatModelO4Mini
	default:
		return "", fmt.Errorf("unsupported model: %s", req.Model)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    oaiModel,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	// reasoning models only accept the default temperature
	if req.Temperature > 0 && !strings.HasPrefix(req.Model, "o") {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// AI handles OpenAI API interactions for chat completions and transcription
type AI struct {
	client         OpenAIClientInterface
	audio          *Audio
	whisperLimit   int64
	timeout        time.Duration
	whisperTimeout time.Duration
	log            *logrus.Entry
	apiKey         string
	clientOnce     sync.Once
}

// NewAI creates a new AI processor around an existing client
func NewAI(client OpenAIClientInterface, audio *Audio, whisperLimit int64, timeout, whisperTimeout time.Duration, log *logrus.Entry) *AI {
	return &AI{
		client:         client,
		audio:          audio,
		whisperLimit:   whisperLimit,
		timeout:        timeout,
		whisperTimeout: whisperTimeout,
		log:            log,
	}
}

// NewAIWithKey creates a new AI processor with lazy client initialization
func NewAIWithKey(apiKey string, audio *Audio, whisperLimit int64, timeout, whisperTimeout time.Duration, log *logrus.Entry) *AI {
	ai := NewAI(nil, audio, whisperLimit, timeout, whisperTimeout, log)
	ai.apiKey = apiKey
	return ai
}

// ensureClient initializes the OpenAI client if needed
func (ai *AI) ensureClient() error {
	if ai.client != nil {
		return nil
	}

	if ai.apiKey == "" {
		return ValidateOpenAIAPIKey("")
	}

	ai.clientOnce.Do(func() {
		ai.client = NewOpenAIClient(ai.apiKey)
	})

	return nil
}

// Complete runs one chat completion bounded by the configured timeout.
func (ai *AI) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}

	if ai.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := ai.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}

	ai.log.WithFields(logrus.Fields{
		"model":       req.Model,
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(content),
	}).Debug("chat completion finished")

	return content, nil
}

// Transcribe transcribes an audio file with Whisper. Files above the upload
// limit are cut into chunks; each chunk becomes one entry at its offset.
func (ai *AI) Transcribe(ctx context.Context, audioFile string) ([]TranscriptEntry, error) {
	if err := ai.ensureClient(); err != nil {
		return nil, err
	}

	if ai.whisperTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.whisperTimeout)
		defer cancel()
	}

	info, err := os.Stat(audioFile)
	if err != nil {
		return nil, fmt.Errorf("getting audio file info: %w", err)
	}

	parts := max(int(math.Ceil(float64(info.Size())/float64(ai.whisperLimit))), 1)
	ai.log.WithFields(logrus.Fields{"file": audioFile, "bytes": info.Size(), "chunks": parts}).Info("transcribing audio")

	chunks, err := ai.audio.Split(ctx, audioFile, parts)
	if err != nil {
		return nil, fmt.Errorf("splitting audio: %w", err)
	}
	defer func() {
		for _, c := range chunks {
			if c.Path != audioFile {
				cleanupFiles(c.Path)
			}
		}
	}()

	entries, err := ai.transcribeChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}
	return entries, nil
}

// transcribeChunks sends chunks to Whisper one at a time. Concurrent uploads
// occasionally returned a garbled chunk.
func (ai *AI) transcribeChunks(ctx context.Context, chunks []AudioChunk) ([]TranscriptEntry, error) {
	entries := make([]TranscriptEntry, 0, len(chunks))
	for i, c := range chunks {
		text, err := ai.transcribeFile(ctx, c.Path)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		entries = append(entries, TranscriptEntry{
			Text:     text,
			Start:    c.Start,
			Duration: c.Duration,
		})
		ai.log.Debugf("transcribed chunk %d/%d", i+1, len(chunks))
	}
	return entries, nil
}

func (ai *AI) transcribeFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			ai.log.WithError(err).WithField("file", path).Warn("failed to close chunk")
		}
	}()
	return ai.client.CreateTranscription(ctx, file)
}
