package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
	"github.com/rtzll/vidscope/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Draft and manage reports on stored videos",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate [video ID]",
	Short: "Draft a report from a stored video's analysis",
	Long: fmt.Sprintf(`Draft a report from a stored video's analysis and save it.

Available formats: %s. Unknown formats are drafted
with the summary template.`, strings.Join(internal.FormatTypes(), ", ")),
	Example: `  vidscope report generate 1
  vidscope report generate 1 --format presentation
  vidscope report generate 1 --format detailed --instructions "Focus on pricing"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := internal.ParseID(args[0])
		if err != nil {
			return err
		}
		if err := internal.ValidateOpenAIRequirements(cmd, config, &config.ReportModel); err != nil {
			return err
		}
		if err := internal.HandlePromptFlag(cmd, &config.ReportPrompt, config.Verbose); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		instructions, _ := cmd.Flags().GetString("instructions")

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		result := app.Generate(cmd.Context(), videoID, format, instructions)
		if !result.Success {
			return fmt.Errorf("generating report: %s", result.Error)
		}

		report, err := app.Report(cmd.Context(), result.ReportID)
		if err != nil {
			return err
		}
		printReport(app, report)
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	Example: `  vidscope report list
  vidscope report list --video-id 3 --format summary`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, _ := cmd.Flags().GetUint("video-id")
		format, _ := cmd.Flags().GetString("format")
		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		reports, err := app.Reports(cmd.Context(), store.ReportFilter{
			VideoID:    videoID,
			FormatType: format,
			Skip:       skip,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		fmt.Println(internal.RenderReportTable(reports))
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show [report ID]",
	Short: "Render a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := internal.ParseID(args[0])
		if err != nil {
			return err
		}

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		report, err := app.Report(cmd.Context(), id)
		if err != nil {
			return err
		}
		printReport(app, report)
		return nil
	},
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete [report ID]",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := internal.ParseID(args[0])
		if err != nil {
			return err
		}

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := app.DeleteReport(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted report %d\n", id)
		return nil
	},
}

func printReport(app *internal.App, report *internal.ReportDetail) {
	markdown := fmt.Sprintf("# %s\n\n%s\n", report.Title, report.Content)
	rendered, err := internal.RenderMarkdown(markdown)
	if err != nil {
		// fall back to the raw markdown
		rendered = markdown
	}
	app.UI().Verbose("Report %d on video %d (%s), format %s\n", report.ID, report.VideoID, report.VideoTitle, report.FormatType)
	fmt.Print(rendered)
}

func init() {
	reportGenerateCmd.Flags().StringP("format", "f", internal.DefaultFormat, "Report format")
	reportGenerateCmd.Flags().StringP("instructions", "i", "", "Extra instructions for the report")
	internal.AddOpenAIFlags(reportGenerateCmd)

	reportListCmd.Flags().Uint("video-id", 0, "Only list reports on this video")
	reportListCmd.Flags().StringP("format", "f", "", "Only list reports of this format")
	reportListCmd.Flags().Int("skip", 0, "Number of reports to skip")
	reportListCmd.Flags().Int("limit", 20, "Maximum number of reports to list")

	reportCmd.AddCommand(reportGenerateCmd, reportListCmd, reportShowCmd, reportDeleteCmd)
	rootCmd.AddCommand(reportCmd)
}
