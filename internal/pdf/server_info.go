package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-filler/internal/descriptions"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

// LazyDirectoryScanner lists PDF forms with depth, count and time limits
type LazyDirectoryScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

// ScanResult represents the result of a directory scan
type ScanResult struct {
	Files     []FileInfo
	ScanTime  time.Duration
	Truncated bool
}

// NewLazyDirectoryScanner creates a scanner; zero limits mean unlimited
func NewLazyDirectoryScanner(maxDepth, fileLimit int, timeLimit time.Duration) *LazyDirectoryScanner {
	return &LazyDirectoryScanner{
		maxDepth:  maxDepth,
		fileLimit: fileLimit,
		timeLimit: timeLimit,
	}
}

// ScanDirectory walks root for PDF files. Hidden entries and symlinks are
// skipped. Hitting a limit truncates the result without an error
func (s *LazyDirectoryScanner) ScanDirectory(ctx context.Context, root string) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{Files: []FileInfo{}}

	if s.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeLimit)
		defer cancel()
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			result.Truncated = true
			return filepath.SkipAll
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			if s.maxDepth > 0 && path != root && depth(root, path) >= s.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		result.Files = append(result.Files, FileInfo{
			Name:         d.Name(),
			Path:         path,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		if s.fileLimit > 0 && len(result.Files) >= s.fileLimit {
			result.Truncated = true
			return filepath.SkipAll
		}
		return nil
	})

	result.ScanTime = time.Since(start)
	return result, err
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

// ServerInfo describes the server, its configuration and the forms it can see
func (s *Service) ServerInfo(ctx context.Context, serverName, version string) (*ServerInfoResult, error) {
	dir := s.pathValidator.GetConfiguredDirectory()

	files := []FileInfo{}
	scanner := NewLazyDirectoryScanner(5, 100, 3*time.Second)
	if scan, err := scanner.ScanDirectory(ctx, dir); err == nil {
		files = scan.Files
	}

	cfg := s.mapper.Config()
	result := &ServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  dir,
		DataDirectory:     filepath.Dir(s.store.Path()),
		MaxFileSize:       s.maxFileSize,
		MatchThreshold:    cfg.Threshold,
		CategoryBoost:     cfg.Boost,
		AvailableTools:    availableTools(),
		DirectoryContents: files,
		UsageGuidance:     s.usageGuidance(),
		SupportedFormats: []string{
			string(provider.FormatWideCSV),
			string(provider.FormatTallCSV),
			string(provider.FormatWideXLSX),
			string(provider.FormatJSON),
		},
	}

	if ds, err := s.store.Load(); err == nil && ds != nil {
		result.ProviderCount = len(ds.Providers)
	}
	if updated, ok, err := s.store.LastUpdated(); err == nil && ok {
		result.ProvidersUpdated = &updated
	}

	return result, nil
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "provider_import",
			Description: descriptions.GetToolDescription("provider_import"),
			Usage:       "Import the provider export before mapping or filling.",
			Parameters:  "path (required): provider file, format (optional): wide_csv, tall_csv, xlsx or json",
		},
		{
			Name:        "provider_list",
			Description: descriptions.GetToolDescription("provider_list"),
			Usage:       "Find provider names and licensed states.",
			Parameters:  "query (optional): fuzzy name search, state (optional): two-letter state code",
		},
		{
			Name:        "provider_clear",
			Description: descriptions.GetToolDescription("provider_clear"),
			Usage:       "Remove stored provider data.",
			Parameters:  "none",
		},
		{
			Name:        "form_analyze",
			Description: descriptions.GetToolDescription("form_analyze"),
			Usage:       "Check a form's fields and whether it can be filled.",
			Parameters:  "path (required): PDF form",
		},
		{
			Name:        "form_map",
			Description: descriptions.GetToolDescription("form_map"),
			Usage:       "Preview automatic matches and their confidence for one provider.",
			Parameters:  "path (required): PDF form, provider (required): provider name",
		},
		{
			Name:        "form_fill",
			Description: descriptions.GetToolDescription("form_fill"),
			Usage:       "Fill a form for one provider, with optional manual overrides.",
			Parameters: "path (required): PDF form, provider (required): provider name, " +
				"mappings (optional): JSON object of PDF field to provider column, output_dir (optional)",
		},
		{
			Name:        "form_fill_batch",
			Description: descriptions.GetToolDescription("form_fill_batch"),
			Usage:       "Fill a form for many providers into one ZIP archive.",
			Parameters: "path (required): PDF form, providers (optional): comma-separated names, " +
				"state (optional): only providers licensed there, output_dir (optional)",
		},
		{
			Name:        "filler_server_info",
			Description: descriptions.GetToolDescription("filler_server_info"),
			Usage:       "Discover forms and the state of provider data.",
			Parameters:  "none",
		},
	}
}

func (s *Service) usageGuidance() string {
	cfg := s.mapper.Config()
	return `PDF Form Filler Usage Guide:

1. LOAD PROVIDER DATA:
   - Use 'provider_import' with the compliance export (CSV, XLSX or JSON)
   - Use 'provider_list' to find exact provider names
   - Use 'provider_clear' to remove stored provider data

2. CHECK THE FORM:
   - Use 'form_analyze' on the PDF
   - XFA_FORM_DETECTED means the form must be converted to an AcroForm first
   - NO_FIELDS_DETECTED means the PDF has no interactive fields

3. REVIEW MATCHES:
   - Use 'form_map' to see each field's best provider column and confidence
   - Matches below ` + fmt.Sprintf("%d%%", int(cfg.Threshold*100)) + ` are not filled automatically
   - Organization and facility fields are never filled automatically

4. FILL:
   - Use 'form_fill' for one provider, passing 'mappings' to override matches
   - Use 'form_fill_batch' for many providers at once

IMPORTANT NOTES:
- Paths are resolved inside the configured directory
- The server can handle files up to ` + fmt.Sprintf("%d", s.maxFileSize/(1024*1024)) + `MB
- Every field is reported as filled or skipped with a reason`
}
