package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
	"github.com/rtzll/vidscope/internal/store"
)

var (
	config *internal.Config
	logger *logrus.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vidscope [YouTube URL or ID]",
	Short: "Analyze YouTube videos and draft reports from them",
	Long: `vidscope ingests YouTube videos into a local library.

For each video it fetches metadata and captions, asks an OpenAI model to
summarize and categorize the transcript and split it into time-bounded
segments, and stores the result. Reports in several formats can then be
drafted from any stored video.

Calling vidscope with a URL is the same as "vidscope process <URL>".`,
	Example: `  # Ingest a video
  vidscope "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  vidscope tAP1eZYEuKA

  # Prefer English captions and fall back to Whisper (costs money)
  vidscope tAP1eZYEuKA --lang en --fallback-whisper

  # Draft a report on a stored video
  vidscope report generate 1 --format detailed`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		config = internal.InitConfig(configFile)
		if err := internal.HandleVerboseFlag(cmd, config); err != nil {
			return err
		}

		if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir); err != nil {
			return fmt.Errorf("creating XDG directories: %w", err)
		}
		if err := internal.EnsureDefaults(config.ConfigDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to ensure defaults: %v\n", err)
		}

		logger = internal.NewLogger(config, os.Stderr)
		return nil
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := args[0]
		if internal.IsLikelyCommand(arg) {
			return unknownCommandError(arg)
		}
		return runProcess(cmd, arg)
	},
}

var availableCommands = []string{
	"process", "videos", "segments", "report", "cp", "export",
	"serve", "worker", "mcp", "paths", "version", "help",
}

func unknownCommandError(arg string) error {
	var suggestions []string
	for _, cmdName := range availableCommands {
		if strings.Contains(cmdName, arg) || (len(arg) <= len(cmdName) && strings.Contains(arg, cmdName[:len(arg)])) {
			suggestions = append(suggestions, cmdName)
		}
	}

	if len(suggestions) > 0 {
		return fmt.Errorf("'%s' doesn't look like a YouTube URL or video ID. Did you mean: %s?", arg, strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("'%s' doesn't look like a YouTube URL or video ID. Use --help to see available commands", arg)
}

// openApp opens the store and builds the App on top of it. Interactive
// commands get a progress bar and only warnings on stderr unless --verbose.
func openApp(cmd *cobra.Command, interactive bool, options ...internal.AppOption) (*internal.App, func(), error) {
	if interactive && !config.Verbose && logger.GetLevel() > logrus.WarnLevel {
		logger.SetLevel(logrus.WarnLevel)
	}
	log := logrus.NewEntry(logger)
	return openAppWithLogger(cmd, log, interactive, options...)
}

func openAppWithLogger(cmd *cobra.Command, log *logrus.Entry, interactive bool, options ...internal.AppOption) (*internal.App, func(), error) {
	st, err := store.Open(cmd.Context(), store.Options{
		Driver:         config.DatabaseDriver,
		DSN:            config.DatabaseDSN,
		ConnectTimeout: 30 * time.Second,
		Log:            log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	base := []internal.AppOption{internal.WithRepository(st), internal.WithLogger(log)}
	if interactive {
		ui := internal.NewUIManager(config.Verbose, config.Quiet)
		base = append(base, internal.WithUI(ui), internal.WithObserver(ui.StepProgress()))
	}

	app, err := internal.NewApp(config, append(base, options...)...)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return app, func() { _ = st.Close() }, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal. Cleaning up and shutting down...")
		cancel()

		// a second signal skips graceful shutdown
		if _, ok := <-sigCh; ok {
			fmt.Fprintln(os.Stderr, "Forcing exit")
			os.Exit(1)
		}
	}()

	rootCmd.SetContext(ctx)
	err := rootCmd.Execute()

	if config != nil {
		cleanupDone := make(chan struct{})
		go func() {
			if err := internal.CleanupTempDir(config.TempDir); err != nil {
				fmt.Fprintf(os.Stderr, "Error cleaning up temporary files: %v\n", err)
			}
			close(cleanupDone)
		}()

		select {
		case <-cleanupDone:
		case <-time.After(3 * time.Second):
			fmt.Fprintln(os.Stderr, "Warning: Cleanup timed out, forcing exit")
		}
	}

	return err
}

func init() {
	internal.AddTranscriptionFlags(rootCmd)
	internal.AddOpenAIFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $XDG_CONFIG_HOME/vidscope/config.toml)")
}
