package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Inspect and manage the segments of stored videos",
}

var segmentsListCmd = &cobra.Command{
	Use:   "list [video ID]",
	Short: "List a video's segments in time order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := internal.ParseID(args[0])
		if err != nil {
			return err
		}

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		segments, err := app.Segments(cmd.Context(), videoID)
		if err != nil {
			return err
		}
		fmt.Println(internal.RenderSegmentTable(segments))
		return nil
	},
}

var segmentsShowCmd = &cobra.Command{
	Use:   "show [segment ID]",
	Short: "Show one segment with its transcript",
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

		s, err := app.Segment(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Segment %d of video %d [%s - %s]\n", s.ID, s.VideoID, internal.FormatTimestamp(s.StartTime), internal.FormatTimestamp(s.EndTime))
		if s.Subcategory != "" {
			fmt.Printf("Subcategory: %s\n", s.Subcategory)
		}
		if len(s.Keywords) > 0 {
			fmt.Printf("Keywords: %s\n", strings.Join(s.Keywords, ", "))
		}
		if s.ContentSummary != "" {
			fmt.Printf("\n%s\n", s.ContentSummary)
		}
		fmt.Printf("\n%s\n", s.Transcript)
		return nil
	},
}

var segmentsDeleteCmd = &cobra.Command{
	Use:   "delete [segment ID]",
	Short: "Delete one segment",
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

		if err := app.DeleteSegment(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted segment %d\n", id)
		return nil
	},
}

func init() {
	segmentsCmd.AddCommand(segmentsListCmd, segmentsShowCmd, segmentsDeleteCmd)
	rootCmd.AddCommand(segmentsCmd)
}
