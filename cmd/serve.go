package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Long: `Serve the video library over HTTP.

Routes:
  POST   /api/v1/videos            ingest {"url": ...}
  GET    /api/v1/videos            list (skip, limit)
  GET    /api/v1/videos/{id}       video with segments
  DELETE /api/v1/videos/{id}
  GET    /api/v1/segments/{id}
  DELETE /api/v1/segments/{id}
  POST   /api/v1/reports/generate  {"video_id", "format_type", "custom_instructions"}
  GET    /api/v1/reports           list (video_id, format_type, skip, limit)
  GET    /api/v1/reports/{id}
  DELETE /api/v1/reports/{id}
  GET    /health
  GET    /metrics                  Prometheus metrics`,
	Example: `  vidscope serve
  vidscope serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			config.ListenAddr = addr
		}

		log := logrus.NewEntry(logger).WithField("service", internal.AppName)
		if err := internal.ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
			log.WithError(err).Warn("ingestion and report generation will fail until an API key is configured")
		}

		app, closeApp, err := openAppWithLogger(cmd, log, false)
		if err != nil {
			return err
		}
		defer closeApp()

		return internal.NewAPIServer(app, log).ListenAndServe(cmd.Context(), config.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}
