package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/mcp"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

// captureStdout returns what fn writes to stdout
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = originalStdout }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		w.Close()
	}()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = "1.2.3"
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	output := captureStdout(t, printVersion)

	for _, expected := range []string{
		"MCP PDF Filler",
		"Version: 1.2.3",
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		logLevel  string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "stdio info is quieted", mode: config.ModeStdio, logLevel: "info", wantLevel: zapcore.WarnLevel},
		{name: "stdio debug", mode: config.ModeStdio, logLevel: "debug", wantLevel: zapcore.DebugLevel},
		{name: "stdio error", mode: config.ModeStdio, logLevel: "error", wantLevel: zapcore.ErrorLevel},
		{name: "server info", mode: config.ModeServer, logLevel: "info", wantLevel: zapcore.InfoLevel},
		{name: "server warn", mode: config.ModeServer, logLevel: "warn", wantLevel: zapcore.WarnLevel},
		{name: "invalid level", mode: config.ModeServer, logLevel: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(&config.Config{Mode: tt.mode, LogLevel: tt.logLevel})
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for invalid level")
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			if !logger.Core().Enabled(tt.wantLevel) {
				t.Errorf("Expected level %s to be enabled", tt.wantLevel)
			}
			if tt.wantLevel > zapcore.DebugLevel && logger.Core().Enabled(tt.wantLevel-1) {
				t.Errorf("Expected level %s to be disabled", tt.wantLevel-1)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = dir
	cfg.DataDirectory = t.TempDir()

	service, err := pdf.NewService(pdf.Options{
		MaxFileSize: cfg.MaxFileSize,
		Directory:   dir,
		DataDir:     cfg.DataDirectory,
		Matching:    cfg.Matching(),
	})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	server, err := mcp.NewServer(cfg, service, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, server, zap.NewNop()); err != nil && !strings.Contains(err.Error(), "context") {
		t.Errorf("run() error = %v, expected nil or a context error", err)
	}
}
