package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var exportCmd = &cobra.Command{
	Use:   "export [video ID]",
	Short: "Export a video's analysis, segments and reports to an Excel workbook",
	Example: `  vidscope export 1
  vidscope export 1 -o analysis.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := internal.ParseID(args[0])
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("video-%d.xlsx", id)
		}

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := app.ExportVideo(cmd.Context(), id, output); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Printf("Exported video %d to %s\n", id, output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file (default video-<id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
