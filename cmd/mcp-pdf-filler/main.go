package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/mcp"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger builds the process logger. Output always goes to stderr so stdout
// stays reserved for MCP framing in stdio mode. In stdio mode without debug
// only warnings and errors are written
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.IsStdioMode() && !cfg.IsDebug() && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDebug() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("mode", cfg.Mode)), nil
}

// run serves until the transport stops or a signal arrives
func run(ctx context.Context, server *mcp.Server, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	err := server.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("shutdown requested")
	}
	return err
}

func main() {
	// Check for version flag before parsing other flags
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

	if version != "dev" {
		cfg.Version = version
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("starting", zap.Stringer("config", cfg))

	pdfService, err := pdf.NewService(pdf.Options{
		MaxFileSize: cfg.MaxFileSize,
		Directory:   cfg.PDFDirectory,
		DataDir:     cfg.DataDirectory,
		Matching:    cfg.Matching(),
		Workers:     cfg.Workers,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to create form service", zap.Error(err))
	}

	server, err := mcp.NewServer(cfg, pdfService, logger.Named("mcp"))
	if err != nil {
		logger.Fatal("failed to create MCP server", zap.Error(err))
	}

	if err := run(context.Background(), server, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Filler\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
