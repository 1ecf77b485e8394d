package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ytscribe/ytscribe/pkg/batch"
	"github.com/ytscribe/ytscribe/pkg/config"
	"github.com/ytscribe/ytscribe/pkg/logging"
	"github.com/ytscribe/ytscribe/pkg/stream"
	"github.com/ytscribe/ytscribe/pkg/throttle"
	"github.com/ytscribe/ytscribe/pkg/utils"
	"github.com/ytscribe/ytscribe/pkg/youtube"
)

const (
	serverName = "ytscribe"
	// Version is reported during the MCP handshake and by the CLI.
	Version = "1.0.0"

	toolGetTranscript       = "get_transcript"
	toolGetBatchTranscripts = "get_batch_transcripts"
)

// Server exposes the transcript operations as MCP tools. Tool results go
// to the MCP channel; progress and cleanup notices go to the logger only.
type Server struct {
	mcp   *server.MCPServer
	coord *batch.Coordinator
	cfg   config.Config

	now func() time.Time
}

func New(cfg config.Config) (*Server, error) {
	return newServer(cfg, youtube.NewClient())
}

func newServer(cfg config.Config, fetcher batch.Fetcher) (*Server, error) {
	gate := throttle.NewGate(throttle.Config{
		MinDelay:          time.Duration(cfg.MinDelayMs) * time.Millisecond,
		MaxRetries:        cfg.MaxRetries,
		BackoffMultiplier: cfg.BackoffMultiplier,
		JitterFraction:    cfg.JitterFraction,
	}, throttle.NewState())

	coord := batch.NewCoordinator(fetcher, gate, cfg.MaxBatchSize, stream.Options{
		ChunkSize:        cfg.ChunkSize,
		ProgressInterval: cfg.ProgressInterval,
	})

	s := &Server{
		coord: coord,
		cfg:   cfg,
		now:   time.Now,
	}

	mcpServer := server.NewMCPServer(
		serverName,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	getSchema, err := toolSchema(getTranscriptArgs{})
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(
			toolGetTranscript,
			"Fetch the transcript of a YouTube video and save it to a text file.",
			getSchema,
		),
		s.handleGetTranscript,
	)

	batchSchema, err := toolSchema(batchTranscriptsArgs{})
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(
			toolGetBatchTranscripts,
			"Fetch transcripts for multiple YouTube videos, saving either one file per video or a single aggregated file.",
			batchSchema,
		),
		s.handleBatchTranscripts,
	)

	s.mcp = mcpServer
	return s, nil
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := logging.NewLogger(ctx)

	args := getTranscriptArgs{}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	if strings.TrimSpace(args.Video) == "" {
		return mcp.NewToolResultError("video is required"), nil
	}

	outputPath := strings.TrimSpace(args.OutputPath)
	if outputPath == "" {
		videoID, err := youtube.ParseVideoID(args.Video)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outputPath = filepath.Join(
			s.cfg.OutputDir,
			fmt.Sprintf("transcript_%s_%s.txt", videoID, s.now().Format("20060102-150405")),
		)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return mcp.NewToolResultError("creating output directory: " + err.Error()), nil
	}

	result, err := s.coord.RunSingle(ctx, args.Video, outputPath)
	if err != nil {
		log.Errorf("get_transcript %q failed: %v", args.Video, err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Saved transcript to %s (%d entries, %d bytes).",
		outputPath, result.EntriesProcessed, result.BytesWritten,
	)), nil
}

func (s *Server) handleBatchTranscripts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := logging.NewLogger(ctx)

	args := batchTranscriptsArgs{}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}

	mode := batch.Mode(strings.TrimSpace(args.Mode))
	if mode == "" {
		mode = batch.ModeIndividual
	}
	outputDir := strings.TrimSpace(args.OutputDirectory)
	if outputDir == "" {
		outputDir = s.cfg.OutputDir
	}

	result, err := s.coord.Run(ctx, args.Videos, mode, outputDir)
	if err != nil {
		log.Errorf("get_batch_transcripts failed: %v", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBatchSummary(result)), nil
}

func formatBatchSummary(result batch.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch complete: %d succeeded, %d failed.\n", result.Successes, result.Failures)
	for _, item := range result.Items {
		if item.Status == batch.StatusSuccess {
			fmt.Fprintf(&b, "- %s: success -> %s\n", item.Input, item.OutputPath)
		} else {
			fmt.Fprintf(&b, "- %s: failure: %s\n", item.Input, item.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
