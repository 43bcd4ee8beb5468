package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

// cpCmd copies a report to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [report ID]",
	Short: "Copy a stored report to the clipboard",
	Example: `  # Copy report 4 as markdown
  vidscope cp 4`,
	Args: cobra.ExactArgs(1),
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

		if err := clipboard.WriteAll(fmt.Sprintf("# %s\n\n%s\n", report.Title, report.Content)); err != nil {
			return fmt.Errorf("copying report to clipboard: %w", err)
		}

		if !config.Quiet {
			fmt.Println("Report copied to clipboard")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cpCmd)
}
