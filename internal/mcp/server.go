package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/descriptions"
	"github.com/a3tai/mcp-pdf-filler/internal/matching"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/fill"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed at startup
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"provider_import",
		mcp.WithDescription(descriptions.GetToolDescription("provider_import")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the provider export (CSV, XLSX or JSON), relative to the forms directory or absolute"),
		),
		mcp.WithString("format",
			mcp.Description("Override format detection"),
			mcp.Enum("wide_csv", "tall_csv", "xlsx", "json"),
		),
	), s.handleProviderImport)

	s.mcpServer.AddTool(mcp.NewTool(
		"provider_list",
		mcp.WithDescription(descriptions.GetToolDescription("provider_list")),
		mcp.WithString("query",
			mcp.Description("Optional fuzzy search on provider names"),
		),
		mcp.WithString("state",
			mcp.Description("Optional two-letter state code; only providers licensed there are listed"),
		),
	), s.handleProviderList)

	s.mcpServer.AddTool(mcp.NewTool(
		"provider_clear",
		mcp.WithDescription(descriptions.GetToolDescription("provider_clear")),
	), s.handleProviderClear)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_analyze",
		mcp.WithDescription(descriptions.GetToolDescription("form_analyze")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF form"),
		),
	), s.handleFormAnalyze)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_map",
		mcp.WithDescription(descriptions.GetToolDescription("form_map")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF form"),
		),
		mcp.WithString("provider",
			mcp.Required(),
			mcp.Description("Provider name as listed by provider_list"),
		),
	), s.handleFormMap)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_fill",
		mcp.WithDescription(descriptions.GetToolDescription("form_fill")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF form"),
		),
		mcp.WithString("provider",
			mcp.Required(),
			mcp.Description("Provider name as listed by provider_list"),
		),
		mcp.WithString("mappings",
			mcp.Description(`Optional JSON object of PDF field to provider column overrides, e.g. {"Phone":"Cell Phone"}; an empty column leaves the field unfilled`),
		),
		mcp.WithString("output_dir",
			mcp.Description("Optional output directory (defaults to the form's directory)"),
		),
	), s.handleFormFill)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_fill_batch",
		mcp.WithDescription(descriptions.GetToolDescription("form_fill_batch")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF form"),
		),
		mcp.WithString("providers",
			mcp.Description("Optional comma-separated provider names (defaults to every provider)"),
		),
		mcp.WithString("state",
			mcp.Description("Optional two-letter state code; only providers licensed there are filled"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Optional output directory for the ZIP archive"),
		),
	), s.handleFormFillBatch)

	s.mcpServer.AddTool(mcp.NewTool(
		"filler_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("filler_server_info")),
	), s.handleServerInfo)
}

// stringArg returns an optional string argument, trimmed
func stringArg(request mcp.CallToolRequest, name string) string {
	if v, ok := request.GetArguments()[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// parseMappings decodes the overrides argument of form_fill
func parseMappings(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var mappings map[string]string
	if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
		return nil, fmt.Errorf("mappings must be a JSON object of field name to provider column: %w", err)
	}
	return mappings, nil
}

// splitList splits a comma-separated argument, dropping blanks
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Handler functions

func (s *Server) handleProviderImport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ImportProviders(pdf.ProviderImportRequest{
		Path:   path,
		Format: stringArg(request, "format"),
	})
	if err != nil {
		return s.toolError("provider_import", err), nil
	}

	return mcp.NewToolResultText(s.formatProviderImportResult(result)), nil
}

func (s *Server) handleProviderList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ListProviders(pdf.ProviderListRequest{
		Query: stringArg(request, "query"),
		State: stringArg(request, "state"),
	})
	if err != nil {
		return s.toolError("provider_list", err), nil
	}

	return mcp.NewToolResultText(s.formatProviderListResult(result)), nil
}

func (s *Server) handleProviderClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ClearProviders()
	if err != nil {
		return s.toolError("provider_clear", err), nil
	}

	if !result.Cleared {
		return mcp.NewToolResultText("No provider data stored"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d provider(s) from %s", result.Removed, result.Path)), nil
}

func (s *Server) handleFormAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.AnalyzeForm(pdf.FormAnalyzeRequest{Path: path})
	if err != nil {
		return s.toolError("form_analyze", err), nil
	}

	return mcp.NewToolResultText(s.formatFormAnalyzeResult(result)), nil
}

func (s *Server) handleFormMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	providerName, err := request.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.MapForm(pdf.FormMapRequest{Path: path, Provider: providerName})
	if err != nil {
		return s.toolError("form_map", err), nil
	}

	return mcp.NewToolResultText(s.formatFormMapResult(result)), nil
}

func (s *Server) handleFormFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	providerName, err := request.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mappings, err := parseMappings(stringArg(request, "mappings"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.FillForm(ctx, pdf.FormFillRequest{
		Path:      path,
		Provider:  providerName,
		Mappings:  mappings,
		OutputDir: stringArg(request, "output_dir"),
	})
	if err != nil {
		return s.toolError("form_fill", err), nil
	}

	return mcp.NewToolResultText(s.formatFormFillResult(result)), nil
}

func (s *Server) handleFormFillBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.FillBatch(ctx, pdf.FormFillBatchRequest{
		Path:      path,
		Providers: splitList(stringArg(request, "providers")),
		State:     stringArg(request, "state"),
		OutputDir: stringArg(request, "output_dir"),
	})
	if err != nil {
		return s.toolError("form_fill_batch", err), nil
	}

	return mcp.NewToolResultText(s.formatFormFillBatchResult(result)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ServerInfo(ctx, s.config.ServerName, s.config.Version)
	if err != nil {
		return s.toolError("filler_server_info", err), nil
	}

	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// toolError logs a failed call and turns it into a tool-level error result
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

// Formatting methods

func (s *Server) formatProviderImportResult(result *pdf.ProviderImportResult) string {
	text := fmt.Sprintf("Imported %d provider(s) from %s\n", result.Count, result.Path)
	text += fmt.Sprintf("Format: %s\n", result.Format)
	text += fmt.Sprintf("Distinct fields: %d\n", result.FieldCount)
	text += fmt.Sprintf("Updated: %s\n", result.LastUpdated.Format("2006-01-02 15:04:05 MST"))

	text += "\nProviders:\n"
	for i, name := range result.Providers {
		text += fmt.Sprintf("%d. %s\n", i+1, name)
	}
	return text
}

func (s *Server) formatProviderListResult(result *pdf.ProviderListResult) string {
	if result.Total == 0 {
		return fmt.Sprintf("No providers matched (%d stored)", result.Stored)
	}

	text := fmt.Sprintf("Found %d of %d provider(s)\n", result.Total, result.Stored)
	if result.LastUpdated != nil {
		text += fmt.Sprintf("Data updated: %s\n", result.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	}

	text += "\nProviders:\n"
	for i, p := range result.Providers {
		text += fmt.Sprintf("%d. %s (%d of %d fields with data)\n", i+1, p.Name, p.WithData, p.FieldCount)
	}

	if len(result.StateCounts) > 0 {
		states := make([]string, 0, len(result.StateCounts))
		for st := range result.StateCounts {
			states = append(states, st)
		}
		sort.Strings(states)

		text += "\nLicensed states:\n"
		for _, st := range states {
			text += fmt.Sprintf("  %s: %d\n", st, result.StateCounts[st])
		}
	}
	return text
}

func (s *Server) formatFormAnalyzeResult(result *pdf.FormAnalyzeResult) string {
	text := fmt.Sprintf("Form Analysis: %s\n", result.Path)

	if !result.OK() {
		text += fmt.Sprintf("\n⚠️  %s: %s\n", result.ErrorCode, result.Message)
		if result.XFAVariant != "" {
			text += fmt.Sprintf("XFA variant: %s\n", result.XFAVariant)
		}
		if result.Guidance != "" {
			text += fmt.Sprintf("\n💡 %s\n", result.Guidance)
		}
		return text
	}

	if result.PageCount > 0 {
		text += fmt.Sprintf("Pages: %d\n", result.PageCount)
	}
	text += fmt.Sprintf("Fields: %d\n", len(result.Fields))
	if result.IsXFA {
		text += fmt.Sprintf("XFA: %s (filled through its AcroForm fields)\n", result.XFAVariant)
	}

	text += "\nFields:\n"
	for i, f := range result.Fields {
		text += fmt.Sprintf("%d. %s [%s]", i+1, f.Name, f.Kind)
		if v := f.CurrentValue(); v != "" {
			text += fmt.Sprintf(" = %q", v)
		}
		text += "\n"
	}
	return text
}

func (s *Server) formatFormMapResult(result *pdf.FormMapResult) string {
	text := fmt.Sprintf("Field Mapping: %s for %s\n", result.Path, result.Provider)
	text += fmt.Sprintf("Coverage: %d%% (%d with data, %d missing data, %d unmapped)\n",
		result.Coverage.Percent, result.Coverage.WithData, result.Coverage.MissingData, result.Coverage.Unmapped)

	text += "\nMappings:\n"
	for i, m := range result.Mappings {
		switch {
		case m.Matched():
			text += fmt.Sprintf("%d. %s → %s (%s, %.0f%%)", i+1, m.PDFField, m.ProviderField,
				matching.ConfidenceLabel(m.Confidence), m.Confidence*100)
			if m.SuggestedValue != "" {
				text += fmt.Sprintf(" = %q", m.SuggestedValue)
			}
			text += "\n"
		case m.Candidate != "":
			text += fmt.Sprintf("%d. %s → no match (best: %s, %.0f%%)\n", i+1, m.PDFField, m.Candidate, m.Confidence*100)
		default:
			text += fmt.Sprintf("%d. %s → no match\n", i+1, m.PDFField)
		}
	}
	return text
}

func (s *Server) formatFormFillResult(result *pdf.FormFillResult) string {
	text := fmt.Sprintf("Filled %s for %s\n", result.Path, result.Provider)
	text += fmt.Sprintf("Output: %s\n", result.OutputPath)
	text += fmt.Sprintf("Filled %d of %d fields (%d%%)\n", len(result.Filled), result.TotalFields, result.FillPercent)
	if !result.Verified {
		text += "⚠️  The output could not be re-opened for verification\n"
	}

	if len(result.Filled) > 0 {
		text += "\nFilled:\n"
		for _, f := range result.Filled {
			text += fmt.Sprintf("  ✓ %s ← %s = %q\n", f.FieldName, f.ProviderField, f.Value)
		}
	}
	if len(result.Skipped) > 0 {
		text += "\nSkipped:\n"
		text += formatSkipped(result.Skipped)
	}
	return text
}

// formatSkipped lists skipped fields grouped by reason
func formatSkipped(skipped []fill.SkippedField) string {
	byReason := fill.SkipReasons(skipped)
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	var text string
	for _, reason := range reasons {
		for _, field := range byReason[reason] {
			text += fmt.Sprintf("  • %s: %s\n", field, reason)
		}
	}
	return text
}

func (s *Server) formatFormFillBatchResult(result *pdf.FormFillBatchResult) string {
	text := fmt.Sprintf("Batch fill of %s\n", result.Path)
	text += fmt.Sprintf("Run: %s\n", result.RunID)
	text += fmt.Sprintf("Archive: %s\n", result.ArchivePath)
	text += fmt.Sprintf("Succeeded: %d, Failed: %d\n\n", result.Succeeded, result.Failed)

	for i, e := range result.Entries {
		if e.Error != "" {
			text += fmt.Sprintf("%d. %s: failed: %s\n", i+1, e.Provider, e.Error)
			continue
		}
		text += fmt.Sprintf("%d. %s → %s (%d of %d fields)\n", i+1, e.Provider, e.Filename, e.Filled, e.TotalFields)
	}
	return text
}

func (s *Server) formatServerInfoResult(result *pdf.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("🗄️  Data Directory: %s\n", result.DataDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🎯 Match Threshold: %.0f%%, Category Boost: %.0f%%\n",
		result.MatchThreshold*100, result.CategoryBoost*100)

	if result.ProviderCount > 0 {
		text += fmt.Sprintf("👩‍⚕️ Providers: %d", result.ProviderCount)
		if result.ProvidersUpdated != nil {
			text += fmt.Sprintf(" (updated %s)", result.ProvidersUpdated.Format("2006-01-02 15:04"))
		}
		text += "\n\n"
	} else {
		text += "👩‍⚕️ Providers: none imported yet\n\n"
	}

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in default directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	if len(result.SupportedFormats) > 0 {
		text += "\n📄 Supported Provider Formats:\n"
		for _, format := range result.SupportedFormats {
			text += fmt.Sprintf("  • %s\n", format)
		}
	}

	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the MCP server in the configured mode and blocks until ctx is
// done or the transport fails
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode serves MCP over stdin/stdout. Nothing else may write to
// stdout in this mode
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting stdio transport", zap.String("directory", s.config.PDFDirectory))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting SSE transport", zap.String("address", addr))
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("stopping SSE transport")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop SSE server: %w", err)
		}
		return nil
	}
}
