package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const analysisSystemPrompt = "You are an expert in video content analysis. Respond only with the structured analysis as a single JSON object."

// Completer runs a chat completion.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ContentAnalyzer structures a transcript into summary, category, topics and
// segments with an LLM.
type ContentAnalyzer struct {
	llm     Completer
	prompts *PromptManager
	model   string
	log     *logrus.Entry
}

// NewContentAnalyzer creates an analyzer using model.
func NewContentAnalyzer(llm Completer, prompts *PromptManager, model string, log *logrus.Entry) *ContentAnalyzer {
	return &ContentAnalyzer{
		llm:     llm,
		prompts: prompts,
		model:   model,
		log:     log.WithField("component", "analyzer"),
	}
}

// Analyze sends the transcript to the model and parses its structured reply.
func (a *ContentAnalyzer) Analyze(ctx context.Context, metadata *VideoMetadata, transcript []TranscriptEntry) (*Analysis, error) {
	data := AnalysisPromptData{
		Title:      "Unknown title",
		Channel:    "Unknown channel",
		Transcript: joinTranscript(transcript),
	}
	if metadata != nil {
		if metadata.Title != "" {
			data.Title = metadata.Title
		}
		if metadata.Channel != "" {
			data.Channel = metadata.Channel
		}
		data.Description = metadata.Description
	}

	prompt, err := a.prompts.CreatePrompt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: creating prompt: %w", ErrAnalysis, err)
	}

	log := a.log.WithFields(logrus.Fields{"title": data.Title, "model": a.model})
	log.Info("analyzing transcript")

	reply, err := a.llm.Complete(ctx, ChatRequest{
		Model:       a.model,
		System:      analysisSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		log.WithField("reply_chars", len(reply)).Warn("malformed analysis reply")
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	if n := len(analysis.Topics); n < 3 || n > 7 {
		log.WithField("topics", n).Warn("topic count outside 3-7")
	}
	log.WithField("segments", len(analysis.Segments)).Info("analysis completed")
	return analysis, nil
}

// parseAnalysis decodes the first JSON object in a model reply that is a
// complete analysis. Earlier objects, such as an echoed example, are skipped.
func parseAnalysis(reply string) (*Analysis, error) {
	candidates := append(jsonObjects(reply), outerBraces(reply))

	var lastErr error = errors.New("no JSON object in model reply")
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		var a Analysis
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			lastErr = fmt.Errorf("decoding analysis JSON: %w", err)
			continue
		}
		if err := a.validate(); err != nil {
			lastErr = err
			continue
		}
		return &a, nil
	}
	return nil, lastErr
}

func (a *Analysis) validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return errors.New("analysis has no summary")
	}
	if len(a.Segments) == 0 {
		return errors.New("analysis has no segments")
	}
	return nil
}

// extractJSON returns the first balanced JSON object in s, ignoring markdown
// fences and braces inside string literals. It returns "" when none is found.
func extractJSON(s string) string {
	if objs := jsonObjects(s); len(objs) > 0 {
		return objs[0]
	}
	return ""
}

// jsonObjects returns every top-level balanced JSON object in s, in order.
func jsonObjects(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	var objs []string
	for start := strings.Index(s, "{"); start >= 0; {
		resume := start + 1
		if end := balancedEnd(s, start); end > 0 {
			candidate := strings.TrimSpace(s[start:end])
			if json.Valid([]byte(candidate)) {
				objs = append(objs, candidate)
				resume = end
			}
		}
		next := strings.Index(s[resume:], "{")
		if next < 0 {
			break
		}
		start = resume + next
	}
	return objs
}

// balancedEnd returns the index just past the brace closing the one at start,
// or -1.
func balancedEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// outerBraces slices from the first '{' to the last '}'.
func outerBraces(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
