package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume ingestion and report jobs from NATS JetStream",
	Long: `Run a worker that consumes jobs from NATS JetStream.

Subjects:
  ` + internal.SubjectIngest + `  {"url": ...}
  ` + internal.SubjectReport + `  {"video_id": ..., "format_type": ..., "custom_instructions": ...}

After each job an event is published on ` + internal.SubjectEvents + `.`,
	Example: `  vidscope worker
  vidscope worker --nats nats://nats:4222`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if url, _ := cmd.Flags().GetString("nats"); url != "" {
			config.NATSURL = url
		}
		if err := internal.ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
			return err
		}

		log := logrus.NewEntry(logger).WithField("service", internal.AppName)
		app, closeApp, err := openAppWithLogger(cmd, log, false)
		if err != nil {
			return err
		}
		defer closeApp()

		w, err := internal.NewWorker(config.NATSURL, app, log)
		if err != nil {
			return err
		}
		return w.Run(cmd.Context())
	},
}

func init() {
	workerCmd.Flags().String("nats", "", "NATS server URL (default from config)")
	rootCmd.AddCommand(workerCmd)
}
