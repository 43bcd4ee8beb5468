package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/rtzll/vidscope/internal/store"
)

const (
	overviewSheet = "Video"
	segmentsSheet = "Segments"
	reportsSheet  = "Reports"
)

// ExportVideo writes a video's analysis, segments and reports to an xlsx
// workbook at path.
func (app *App) ExportVideo(ctx context.Context, videoID uint, path string) error {
	video, err := app.Video(ctx, videoID)
	if err != nil {
		return err
	}
	reports, err := app.repo.Reports(ctx, store.ReportFilter{VideoID: videoID})
	if err != nil {
		return err
	}

	f, err := buildWorkbook(video, reports)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	app.log.WithFields(logrus.Fields{"video_id": videoID, "path": path}).Info("video exported")
	return nil
}

func buildWorkbook(video *store.Video, reports []store.Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	overview := [][]any{
		{"ID", video.ID},
		{"YouTube ID", video.YouTubeID},
		{"Title", video.Title},
		{"URL", video.URL},
		{"Channel", video.ChannelName},
		{"Category", video.Category},
		{"Topics", strings.Join(video.Topics, ", ")},
		{"Summary", video.Summary},
	}
	if video.PublishedAt != nil {
		overview = append(overview, []any{"Published", video.PublishedAt.Format("2006-01-02")})
	}
	if video.DurationSeconds != nil {
		overview = append(overview, []any{"Duration", FormatTimestamp(float64(*video.DurationSeconds))})
	}
	if err := writeRows(f, overviewSheet, overview); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(segmentsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	rows := [][]any{{"Start", "End", "Subcategory", "Summary", "Keywords", "Transcript"}}
	for _, s := range video.Segments {
		rows = append(rows, []any{
			FormatTimestamp(s.StartTime),
			FormatTimestamp(s.EndTime),
			s.Subcategory,
			s.ContentSummary,
			strings.Join(s.Keywords, ", "),
			s.Transcript,
		})
	}
	if err := writeRows(f, segmentsSheet, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(reportsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	rows = [][]any{{"ID", "Title", "Format", "Created", "Content"}}
	for _, r := range reports {
		rows = append(rows, []any{r.ID, r.Title, r.FormatType, r.CreatedAt.Format("2006-01-02 15:04"), r.Content})
	}
	if err := writeRows(f, reportsSheet, rows); err != nil {
		return nil, err
	}

	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
