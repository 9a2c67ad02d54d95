package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/ironsheep/image-token-encoder/internal/fetch"
	"github.com/ironsheep/image-token-encoder/internal/multimodal"
	"github.com/ironsheep/image-token-encoder/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(serve).Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newCommand builds the CLI; action receives the validated settings.
func newCommand(action func(ctx context.Context, s *settings) error) *cli.Command {
	var v flagValues

	return &cli.Command{
		Name:    "image-token-mcp",
		Usage:   "MCP server that encodes images into vision model input",
		Version: Version,
		Description: "Communicates via MCP protocol over stdin/stdout. " +
			"Configure it in your MCP client (e.g., Claude Desktop).",
		Flags: serverFlags(&v),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := v.settings()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return action(ctx, s)
		},
		Commands: []*cli.Command{
			versionCmd(),
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("image-token-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return nil
		},
	}
}

// serve runs the MCP server on stdio until stdin closes or ctx is cancelled.
func serve(ctx context.Context, s *settings) error {
	// Logs go to stderr (stdout is for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: s.LogLevel}))
	logger.Debug("starting image token MCP server",
		"version", Version,
		"build_time", BuildTime,
		"commit", GitCommit,
		"patch_size", s.Config.ImagePatchSize,
		"max_image_size", s.Config.MaxImageSize,
		"rounding", s.Config.Rounding.String())

	fetcher := fetch.NewHTTPFetcher(
		fetch.WithTimeout(s.FetchTimeout),
		fetch.WithBlockPrivate(s.BlockPrivate),
	)
	enc, err := multimodal.NewImageEncoder(s.Config, s.IDs, multimodal.WithFetcher(fetcher))
	if err != nil {
		return err
	}

	srv := server.New(enc, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
