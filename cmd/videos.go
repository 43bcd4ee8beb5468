package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Browse and manage stored videos",
}

var videosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored videos, newest first",
	Example: `  vidscope videos list
  vidscope videos list --skip 20 --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		app, closeApp, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer closeApp()

		videos, err := app.Videos(cmd.Context(), skip, limit)
		if err != nil {
			return err
		}
		fmt.Println(internal.RenderVideoTable(videos))
		return nil
	},
}

var videosShowCmd = &cobra.Command{
	Use:   "show [video ID]",
	Short: "Show a stored video's analysis and segments",
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

		video, err := app.Video(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(internal.RenderVideoDetail(video))
		fmt.Println(internal.RenderSegmentTable(video.Segments))
		return nil
	},
}

var videosDeleteCmd = &cobra.Command{
	Use:   "delete [video ID]",
	Short: "Delete a video with its segments and reports",
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

		video, err := app.Video(cmd.Context(), id)
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !internal.AskUser(fmt.Sprintf("Delete %q with %d segments and all its reports?", video.Title, len(video.Segments))) {
			fmt.Println("Aborted")
			return nil
		}

		if err := app.DeleteVideo(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted video %d\n", id)
		return nil
	},
}

func init() {
	videosListCmd.Flags().Int("skip", 0, "Number of videos to skip")
	videosListCmd.Flags().Int("limit", 20, "Maximum number of videos to list")
	videosDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking for confirmation")

	videosCmd.AddCommand(videosListCmd, videosShowCmd, videosDeleteCmd)
	rootCmd.AddCommand(videosCmd)
}
