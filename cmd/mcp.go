package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtzll/vidscope/internal"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server exposing the video library",
	Long: `Run a Model Context Protocol (MCP) server that exposes vidscope as tools.

Tools:
- process_youtube_video: ingest and analyze a video (PAID)
- generate_report: draft and store a report on a stored video (PAID)
- get_video: a stored video with its segments
- list_videos: stored videos, newest first

Logs go to mcp.log in the cache directory since stdout carries the protocol.

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  vidscope mcp

  # Run MCP server with HTTP transport on port 8080
  vidscope mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  vidscope mcp setup-claude`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout belongs to the protocol
		config.Verbose = false
		config.Quiet = true
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		fileLog, closer, err := internal.NewFileLogger(config, "mcp.log")
		if err != nil {
			return err
		}
		defer closer.Close()

		log := logrus.NewEntry(fileLog).WithField("transport", transport)
		app, closeApp, err := openAppWithLogger(cmd, log, false)
		if err != nil {
			return err
		}
		defer closeApp()

		log.Info("starting MCP server")
		return internal.NewMCPServer(app, version).Start(cmd.Context(), transport, port)
	},
}

var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Register the vidscope MCP server with Claude Desktop",
	Long: `Add vidscope to Claude Desktop's claude_desktop_config.json.

Existing servers and settings in the file are kept. The XDG base directories
are passed to the server so it uses the same config and database as the CLI.
With --print the entry is written to stdout instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := internal.SelfServer()
		if err != nil {
			return err
		}

		if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
			out, err := json.MarshalIndent(map[string]internal.DesktopServer{internal.AppName: server}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		path, err := internal.DesktopConfigPath()
		if err != nil {
			return err
		}
		if err := internal.RegisterDesktopServer(path, internal.AppName, server); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("Claude Desktop config not found at %s, start Claude Desktop once first", path)
			}
			return err
		}

		fmt.Printf("Registered %s in %s\n", internal.AppName, path)
		fmt.Println("Restart Claude Desktop to pick up the server.")
		return nil
	},
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	setupClaudeCmd.Flags().Bool("print", false, "Print the server entry instead of editing the config")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
