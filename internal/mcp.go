package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
	log       *logrus.Entry
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		AppName+"-server",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
		log:       app.Logger().WithField("component", "mcp"),
	}

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("process_youtube_video",
		mcp.WithDescription("Ingest a YouTube video: fetch metadata and captions, analyze the transcript into a summary, category, topics and time-bounded segments, and store the result. Returns the stored video id. Ingesting a video twice returns the existing id. Calls the OpenAI API (PAID)."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL"),
			mcp.Required(),
		),
	), s.handleProcessVideo)

	s.mcpServer.AddTool(mcp.NewTool("generate_report",
		mcp.WithDescription("Draft a report from a stored video analysis and save it. Calls the OpenAI API (PAID)."),
		mcp.WithNumber("video_id",
			mcp.Description("Stored video id returned by process_youtube_video or list_videos"),
			mcp.Required(),
		),
		mcp.WithString("format_type",
			mcp.Description("Report format"),
			mcp.Enum(FormatTypes()...),
			mcp.DefaultString(DefaultFormat),
		),
		mcp.WithString("custom_instructions",
			mcp.Description("Extra instructions appended to the report prompt"),
		),
	), s.handleGenerateReport)

	s.mcpServer.AddTool(mcp.NewTool("get_video",
		mcp.WithDescription("Get a stored video with its analysis and segments (FREE)."),
		mcp.WithNumber("video_id",
			mcp.Description("Stored video id"),
			mcp.Required(),
		),
	), s.handleGetVideo)

	s.mcpServer.AddTool(mcp.NewTool("list_videos",
		mcp.WithDescription("List stored videos, newest first (FREE)."),
		mcp.WithNumber("skip",
			mcp.Description("Number of videos to skip"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of videos to return (1-100)"),
		),
	), s.handleListVideos)
}

func (s *MCPServer) handleProcessVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}

	s.log.WithField("url", url).Info("process_youtube_video")
	result := s.app.Process(ctx, url)
	if !result.Success {
		return mcp.NewToolResultError(fmt.Sprintf("processing failed: %s", result.Error)), nil
	}
	return jsonResult(result)
}

func (s *MCPServer) handleGenerateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireFloat("video_id")
	if err != nil || id < 1 {
		return mcp.NewToolResultError("video_id parameter is required and must be a positive number"), nil
	}
	format := request.GetString("format_type", DefaultFormat)
	instructions := request.GetString("custom_instructions", "")

	s.log.WithFields(logrus.Fields{"video_id": uint(id), "format_type": format}).Info("generate_report")
	result := s.app.Generate(ctx, uint(id), format, instructions)
	if !result.Success {
		return mcp.NewToolResultError(fmt.Sprintf("report generation failed: %s", result.Error)), nil
	}

	report, err := s.app.Report(ctx, result.ReportID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("report saved but could not be loaded", err), nil
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "# %s\n\n", report.Title)
	fmt.Fprintf(&buf, "Report ID: %d, Video ID: %d, Format: %s\n\n", report.ID, report.VideoID, report.FormatType)
	buf.WriteString(report.Content)

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
	}, nil
}

func (s *MCPServer) handleGetVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireFloat("video_id")
	if err != nil || id < 1 {
		return mcp.NewToolResultError("video_id parameter is required and must be a positive number"), nil
	}

	video, err := s.app.Video(ctx, uint(id))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("video lookup failed", err), nil
	}
	return jsonResult(video)
}

func (s *MCPServer) handleListVideos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	skip := int(request.GetFloat("skip", 0))
	limit := int(request.GetFloat("limit", 20))

	videos, err := s.app.Videos(ctx, skip, limit)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("listing videos failed", err), nil
	}

	var buf strings.Builder
	if len(videos) == 0 {
		buf.WriteString("No videos stored yet.\n")
	}
	for _, v := range videos {
		fmt.Fprintf(&buf, "%d\t%s\t%s\t%s\n", v.ID, v.YouTubeID, v.Category, v.Title)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encoding result", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		errCh := make(chan error, 1)
		go func() {
			s.log.WithField("addr", addr).Info("serving MCP over HTTP")
			errCh <- httpServer.Start(addr)
		}()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return httpServer.Shutdown(context.Background())
		}
	}

	// Default to stdio transport
	return server.ServeStdio(s.mcpServer)
}
