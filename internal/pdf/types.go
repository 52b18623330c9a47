package pdf

import (
	"time"

	"github.com/a3tai/mcp-pdf-filler/internal/matching"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/fill"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// ProviderImportRequest represents a request to import a provider export
type ProviderImportRequest struct {
	Path string `json:"path"`
	// Format overrides detection: wide_csv, tall_csv, xlsx or json
	Format string `json:"format,omitempty"`
}

// ProviderListRequest represents a request to list stored providers
type ProviderListRequest struct {
	Query string `json:"query,omitempty"`
	State string `json:"state,omitempty"`
}

// FormAnalyzeRequest represents a request to analyze a PDF form
type FormAnalyzeRequest struct {
	Path string `json:"path"`
}

// FormMapRequest represents a request to preview field mappings
type FormMapRequest struct {
	Path     string `json:"path"`
	Provider string `json:"provider"`
}

// FormFillRequest represents a request to fill a form for one provider
type FormFillRequest struct {
	Path     string            `json:"path"`
	Provider string            `json:"provider"`
	Mappings map[string]string `json:"mappings,omitempty"`
	// OutputDir defaults to the directory of Path
	OutputDir string `json:"output_dir,omitempty"`
}

// FormFillBatchRequest represents a request to fill a form for many providers
type FormFillBatchRequest struct {
	Path string `json:"path"`
	// Providers are matched by name; empty means every stored provider
	Providers []string `json:"providers,omitempty"`
	State     string   `json:"state,omitempty"`
	OutputDir string   `json:"output_dir,omitempty"`
}

// Response Types

// ProviderImportResult represents the outcome of a provider import
type ProviderImportResult struct {
	Path        string    `json:"path"`
	Format      string    `json:"format"`
	Count       int       `json:"count"`
	Providers   []string  `json:"providers"`
	FieldCount  int       `json:"field_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// ProviderClearResult represents the outcome of clearing stored providers
type ProviderClearResult struct {
	Path    string `json:"path"`
	Cleared bool   `json:"cleared"`
	Removed int    `json:"removed"`
}

// ProviderSummary is a short description of a stored provider
type ProviderSummary struct {
	Name       string `json:"name"`
	FieldCount int    `json:"field_count"`
	WithData   int    `json:"with_data"`
}

// ProviderListResult represents stored providers
type ProviderListResult struct {
	Providers   []ProviderSummary `json:"providers"`
	Total       int               `json:"total"`
	Stored      int               `json:"stored"`
	StateCounts map[string]int    `json:"state_counts,omitempty"`
	LastUpdated *time.Time        `json:"last_updated,omitempty"`
}

// FormAnalyzeResult represents the analysis of a PDF form
type FormAnalyzeResult struct {
	Path string `json:"path"`
	forms.Analysis
	Message  string `json:"message,omitempty"`
	Guidance string `json:"guidance,omitempty"`
}

// FormMapResult represents a mapping preview for one provider
type FormMapResult struct {
	Path     string                  `json:"path"`
	Provider string                  `json:"provider"`
	Mappings []matching.FieldMapping `json:"mappings"`
	Coverage matching.Coverage       `json:"coverage"`
}

// FormFillResult represents a filled form written to disk
type FormFillResult struct {
	Path        string              `json:"path"`
	OutputPath  string              `json:"output_path"`
	Provider    string              `json:"provider"`
	Filled      []fill.FilledField  `json:"filled"`
	Skipped     []fill.SkippedField `json:"skipped"`
	TotalFields int                 `json:"total_fields"`
	FillPercent int                 `json:"fill_percent"`
	// Verified is set when the output re-opens with an independent reader
	Verified  bool `json:"verified"`
	PageCount int  `json:"page_count,omitempty"`
}

// BatchEntry is the outcome for one provider of a batch fill
type BatchEntry struct {
	Provider    string `json:"provider"`
	Filename    string `json:"filename,omitempty"`
	Filled      int    `json:"filled"`
	Skipped     int    `json:"skipped"`
	TotalFields int    `json:"total_fields"`
	Error       string `json:"error,omitempty"`
}

// FormFillBatchResult represents a batch fill bundled into a ZIP archive
type FormFillBatchResult struct {
	RunID       string       `json:"run_id"`
	Path        string       `json:"path"`
	ArchivePath string       `json:"archive_path"`
	Entries     []BatchEntry `json:"entries"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	DataDirectory     string     `json:"data_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	MatchThreshold    float64    `json:"match_threshold"`
	CategoryBoost     float64    `json:"category_boost"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	ProviderCount     int        `json:"provider_count"`
	ProvidersUpdated  *time.Time `json:"providers_updated,omitempty"`
	UsageGuidance     string     `json:"usage_guidance"`
	SupportedFormats  []string   `json:"supported_formats"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
