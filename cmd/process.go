package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var processCmd = &cobra.Command{
	Use:   "process [YouTube URL or ID]",
	Short: "Ingest a YouTube video into the library",
	Long: `Fetch a video's metadata and captions, analyze the transcript into a
summary, category, topics and segments, and store the result.

Processing a video that is already stored returns the existing entry.`,
	Example: `  vidscope process "https://youtu.be/tAP1eZYEuKA"
  vidscope process tAP1eZYEuKA --model gpt-4o --lang en`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd, args[0])
	},
}

func runProcess(cmd *cobra.Command, arg string) error {
	if err := internal.ValidateOpenAIRequirements(cmd, config, &config.AnalysisModel); err != nil {
		return err
	}
	if err := internal.HandlePromptFlag(cmd, &config.AnalysisPrompt, config.Verbose); err != nil {
		return err
	}
	internal.ApplyTranscriptionFlags(cmd, config)

	app, closeApp, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer closeApp()

	youtubeURL, _ := internal.ParseArg(arg)
	result := app.Process(cmd.Context(), youtubeURL)
	if !result.Success {
		return fmt.Errorf("processing %s: %s", youtubeURL, result.Error)
	}

	ui := app.UI()
	if result.Existing {
		ui.Printf("Already stored as video %d\n", result.VideoID)
	} else {
		ui.Printf("Stored video %d with %d segments in %s\n", result.VideoID, result.SegmentsCount, result.Elapsed.Round(100*time.Millisecond))
	}

	video, err := app.Video(cmd.Context(), result.VideoID)
	if err != nil {
		return err
	}
	ui.Println(internal.RenderVideoDetail(video))
	ui.Println(internal.RenderSegmentTable(video.Segments))
	return nil
}

func init() {
	internal.AddTranscriptionFlags(processCmd)
	internal.AddOpenAIFlags(processCmd)
	rootCmd.AddCommand(processCmd)
}
