package internal

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const reportSystemPrompt = "You are an expert report writer. From the video information you are given, write an engaging and informative report in the requested format."

// DefaultFormat is used for unknown format tags.
const DefaultFormat = "summary"

var reportTemplates = map[string]string{
	"summary":       "Write a concise summary of the key points of the video (800-1000 characters).",
	"detailed":      "Write a detailed analysis report of the video (2000-3000 characters) divided into sections. Include an in-depth discussion of each topic.",
	"presentation":  "Create a slide outline for a presentation: a title slide, an agenda, one slide per topic with bullet points, and a conclusion slide.",
	"markdown":      "Write a Markdown document. Use headings, bullet lists and emphasis where appropriate.",
	"bullet_points": "List the main points of the video as bullet points, grouped by topic.",
}

// FormatTypes lists the supported report formats.
func FormatTypes() []string {
	return []string{"summary", "detailed", "presentation", "markdown", "bullet_points"}
}

// IsKnownFormat reports whether format selects its own template.
func IsKnownFormat(format string) bool {
	_, ok := reportTemplates[format]
	return ok
}

// reportInstructions picks the template for format and appends custom
// instructions verbatim.
func reportInstructions(format, custom string) string {
	tmpl, ok := reportTemplates[format]
	if !ok {
		tmpl = reportTemplates[DefaultFormat]
	}
	if custom != "" {
		tmpl += "\n\nAdditional instructions: " + custom
	}
	return tmpl
}

// ReportTitle builds the title used for a report on a video.
func ReportTitle(videoTitle, format string) string {
	return fmt.Sprintf("%s - %s Report", videoTitle, capitalize(format))
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// ReportDrafter writes reports from stored analyses with an LLM.
type ReportDrafter struct {
	llm     Completer
	prompts *PromptManager
	model   string
	log     *logrus.Entry
}

// NewReportDrafter creates a drafter using model.
func NewReportDrafter(llm Completer, prompts *PromptManager, model string, log *logrus.Entry) *ReportDrafter {
	return &ReportDrafter{
		llm:     llm,
		prompts: prompts,
		model:   model,
		log:     log.WithField("component", "drafter"),
	}
}

// Draft writes a report on the snapshot in the requested format.
func (d *ReportDrafter) Draft(ctx context.Context, snapshot *VideoSnapshot, formatType, customInstructions string) (*DraftedReport, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: no video data", ErrDrafting)
	}

	prompt, err := d.prompts.CreatePrompt(ReportPromptData{
		FormatType:   formatType,
		Title:        snapshot.Title,
		Category:     snapshot.Category,
		Summary:      snapshot.Summary,
		Topics:       strings.Join(snapshot.Topics, ", "),
		Segments:     formatSegments(snapshot.Segments),
		Instructions: reportInstructions(formatType, customInstructions),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating prompt: %w", ErrDrafting, err)
	}

	log := d.log.WithFields(logrus.Fields{
		"video_id":    snapshot.ID,
		"format_type": formatType,
		"model":       d.model,
	})
	log.Info("drafting report")

	content, err := d.llm.Complete(ctx, ChatRequest{
		Model:       d.model,
		System:      reportSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDrafting, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty report", ErrDrafting)
	}

	report := &DraftedReport{
		Title:      ReportTitle(snapshot.Title, formatType),
		FormatType: formatType,
		Content:    content,
	}
	log.WithField("title", report.Title).Info("report drafted")
	return report, nil
}

func formatSegments(segments []AnalyzedSegment) string {
	if len(segments) == 0 {
		return "(none)"
	}

	var sb strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&sb, "%d. [%s - %s]", i+1, FormatTimestamp(s.StartTime), FormatTimestamp(s.EndTime))
		if s.Subcategory != "" {
			fmt.Fprintf(&sb, " %s", s.Subcategory)
		}
		if s.ContentSummary != "" {
			fmt.Fprintf(&sb, ": %s", s.ContentSummary)
		}
		if len(s.Keywords) > 0 {
			fmt.Fprintf(&sb, " (keywords: %s)", strings.Join(s.Keywords, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
