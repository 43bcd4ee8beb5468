package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rtzll/vidscope/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(12)
)

const titleWidth = 48

// RenderVideoTable renders stored videos for the terminal.
func RenderVideoTable(videos []store.Video) string {
	if len(videos) == 0 {
		return mutedStyle.Render("No videos stored yet.")
	}

	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			fmt.Sprint(v.ID),
			v.YouTubeID,
			truncateRunes(v.Title, titleWidth),
			v.Category,
			v.CreatedAt.Format("2006-01-02"),
		})
	}
	return renderTable([]string{"ID", "YouTube ID", "Title", "Category", "Added"}, rows)
}

// RenderReportTable renders stored reports for the terminal.
func RenderReportTable(reports []store.Report) string {
	if len(reports) == 0 {
		return mutedStyle.Render("No reports found.")
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			fmt.Sprint(r.ID),
			fmt.Sprint(r.VideoID),
			r.FormatType,
			truncateRunes(r.Title, titleWidth),
			r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return renderTable([]string{"ID", "Video", "Format", "Title", "Created"}, rows)
}

// RenderSegmentTable renders a video's segments in time order.
func RenderSegmentTable(segments []store.Segment) string {
	if len(segments) == 0 {
		return mutedStyle.Render("No segments.")
	}

	rows := make([][]string, 0, len(segments))
	for _, s := range segments {
		rows = append(rows, []string{
			fmt.Sprint(s.ID),
			FormatTimestamp(s.StartTime) + "-" + FormatTimestamp(s.EndTime),
			s.Subcategory,
			truncateRunes(s.ContentSummary, titleWidth),
		})
	}
	return renderTable([]string{"ID", "Time", "Subcategory", "Summary"}, rows)
}

// RenderVideoDetail renders a video's analysis as labelled lines.
func RenderVideoDetail(v *store.Video) string {
	lines := []string{
		headerStyle.Render(v.Title),
		field("ID", fmt.Sprint(v.ID)),
		field("YouTube ID", v.YouTubeID),
		field("URL", v.URL),
	}
	if v.ChannelName != "" {
		lines = append(lines, field("Channel", v.ChannelName))
	}
	if v.DurationSeconds != nil {
		lines = append(lines, field("Duration", FormatTimestamp(float64(*v.DurationSeconds))))
	}
	lines = append(lines,
		field("Category", v.Category),
		field("Topics", strings.Join(v.Topics, ", ")),
		"",
		v.Summary,
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render()
}

func truncateRunes(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
