package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/invoicekit/fapiao/internal/acquire"
	"github.com/invoicekit/fapiao/internal/batch"
	"github.com/invoicekit/fapiao/internal/cache"
	"github.com/invoicekit/fapiao/internal/config"
	"github.com/invoicekit/fapiao/internal/export"
	"github.com/invoicekit/fapiao/internal/mcp"
)

var (
	version   = "dev"     // set by build flags
	buildTime = "unknown" // set by build flags
	gitCommit = "unknown" // set by build flags
)

// setupLogging builds the process logger. Output always goes to stderr:
// in stdio mode stdout belongs to the MCP protocol, in batch mode to the
// result summary.
func setupLogging(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// runBatchMode processes the configured directory once and writes the
// export file.
func runBatchMode(ctx context.Context, cfg *config.Config, orchestrator *batch.Orchestrator, logger zerolog.Logger) error {
	files, err := mcp.ListPDFs(cfg.InvoiceDirectory)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PDF files found in %s", cfg.InvoiceDirectory)
	}

	result, err := orchestrator.ProcessBatch(ctx, files)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(cfg.OutputPath), ".xlsx") {
		err = export.WriteXLSXFile(cfg.OutputPath, result.Records)
	} else {
		err = export.WriteCSVFile(cfg.OutputPath, result.Records)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d documents: %d exported to %s, %d failed\n",
		len(files), len(result.Records), cfg.OutputPath, len(result.Failures))
	for _, f := range result.Failures {
		fmt.Printf("  FAILED %s: %v\n", f.File, f.Err)
	}
	if len(result.Failures) > 0 {
		logger.Warn().Int("failed", len(result.Failures)).Msg("some documents were not processed")
	}
	return nil
}

// runStdioMode serves MCP tools until the parent closes the transport.
func runStdioMode(ctx context.Context, server *mcp.Server) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case <-signalCh:
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func printVersion() {
	fmt.Printf("fapiao-extract %s\n", version)
	fmt.Printf("  build time: %s\n", buildTime)
	fmt.Printf("  git commit: %s\n", gitCommit)
	fmt.Printf("  go version: %s\n", runtime.Version())
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		logger.Debug().Str("config", cfg.String()).Msg("starting")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := acquire.NewPDFSource(cfg.MaxFileSize, nil, logger)
	orchestrator := batch.NewOrchestrator(source, cache.New(), cfg.Workers, logger)

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, orchestrator, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create MCP server")
		}
		if err := runStdioMode(ctx, server); err != nil {
			logger.Fatal().Err(err).Msg("server error")
		}
		return
	}

	if err := runBatchMode(ctx, cfg, orchestrator, logger); err != nil {
		logger.Fatal().Err(err).Msg("batch failed")
	}
}
