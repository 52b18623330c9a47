package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-filler/internal/matching"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/fill"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

// DefaultWorkers bounds concurrent fills in a batch when unset
const DefaultWorkers = 4

// ErrNoProviders is returned when an operation needs provider data and none
// has been imported
var ErrNoProviders = errors.New("no providers imported; run provider_import first")

// Options configures a Service
type Options struct {
	MaxFileSize int64
	Directory   string
	DataDir     string
	Matching    matching.Config
	Workers     int
	Logger      *zap.Logger
}

// Service handles form operations by orchestrating the analyzer, mapper,
// filler and provider store
type Service struct {
	maxFileSize   int64
	workers       int
	validator     *Validator
	analyzer      *forms.Analyzer
	mapper        *matching.Mapper
	filler        *fill.Filler
	store         *provider.Store
	pathValidator *security.PathValidator
	logger        *zap.Logger
}

// NewService creates a new form service with all components
func NewService(opts Options) (*Service, error) {
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("maxFileSize must be greater than 0")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.DataDir == "" {
		opts.DataDir = filepath.Join(opts.Directory, ".pdf-filler")
	}

	pathValidator, err := security.NewPathValidator(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	mapper, err := matching.NewMapper(opts.Matching)
	if err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	filler, err := fill.NewFiller(mapper, opts.Logger.Named("fill"))
	if err != nil {
		return nil, err
	}

	store, err := provider.NewStore(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open provider store: %w", err)
	}

	return &Service{
		maxFileSize:   opts.MaxFileSize,
		workers:       opts.Workers,
		validator:     NewValidator(opts.MaxFileSize),
		analyzer:      forms.NewAnalyzer(opts.Logger.Named("forms")),
		mapper:        mapper,
		filler:        filler,
		store:         store,
		pathValidator: pathValidator,
		logger:        opts.Logger,
	}, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// MatchingConfig returns the scoring constants in use
func (s *Service) MatchingConfig() matching.Config {
	return s.mapper.Config()
}

// ImportProviders parses a provider export and replaces the stored dataset
func (s *Service) ImportProviders(req ProviderImportRequest) (*ProviderImportResult, error) {
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.CheckProviderFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider file: %w", err)
	}

	format := provider.Format(req.Format)
	if format == "" {
		format = provider.DetectFormat(path, data)
	}

	ds, err := provider.Parse(format, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse providers: %w", err)
	}
	if len(ds.Providers) == 0 {
		return nil, fmt.Errorf("no providers found in %s", path)
	}

	if err := s.store.Save(ds); err != nil {
		return nil, err
	}

	updated, _, err := s.store.LastUpdated()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(ds.Providers))
	for i, p := range ds.Providers {
		names[i] = p.Name
	}

	s.logger.Info("imported providers",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("count", len(names)))

	return &ProviderImportResult{
		Path:        path,
		Format:      string(format),
		Count:       len(names),
		Providers:   names,
		FieldCount:  len(ds.AllFields),
		LastUpdated: updated,
	}, nil
}

// ListProviders returns stored providers, filtered by fuzzy name and state
func (s *Service) ListProviders(req ProviderListRequest) (*ProviderListResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	records := ds.Search(req.Query)
	if req.State != "" {
		records = provider.ByState(records, req.State)
	}

	result := &ProviderListResult{
		Providers:   make([]ProviderSummary, 0, len(records)),
		Total:       len(records),
		Stored:      len(ds.Providers),
		StateCounts: ds.StateCounts(),
	}
	for _, r := range records {
		summary := ProviderSummary{Name: r.Name, FieldCount: len(r.Data)}
		for col := range r.Data {
			if r.Has(col) {
				summary.WithData++
			}
		}
		result.Providers = append(result.Providers, summary)
	}

	if updated, ok, err := s.store.LastUpdated(); err == nil && ok {
		result.LastUpdated = &updated
	}

	return result, nil
}

// ClearProviders deletes the stored dataset. Clearing an empty store is not
// an error; Cleared then reports false
func (s *Service) ClearProviders() (*ProviderClearResult, error) {
	result := &ProviderClearResult{Path: s.store.Path()}
	if !s.store.Exists() {
		return result, nil
	}

	if ds, err := s.store.Load(); err == nil && ds != nil {
		result.Removed = len(ds.Providers)
	}
	if err := s.store.Clear(); err != nil {
		return nil, err
	}
	result.Cleared = true

	s.logger.Info("cleared providers", zap.String("path", result.Path), zap.Int("removed", result.Removed))
	return result, nil
}

// AnalyzeForm reports the fields of a PDF form. Document-level problems are
// returned in the result, not as an error
func (s *Service) AnalyzeForm(req FormAnalyzeRequest) (*FormAnalyzeResult, error) {
	path, data, err := s.readForm(req.Path)
	if err != nil {
		return nil, err
	}

	analysis := s.analyzer.Analyze(data)
	return &FormAnalyzeResult{
		Path:     path,
		Analysis: *analysis,
		Message:  analysis.ErrorCode.Message(),
		Guidance: analysis.ErrorCode.Guidance(),
	}, nil
}

// MapForm previews the automatic mapping of a form for one provider
func (s *Service) MapForm(req FormMapRequest) (*FormMapResult, error) {
	path, data, err := s.readForm(req.Path)
	if err != nil {
		return nil, err
	}

	rec, err := s.findProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	analysis, err := s.fillable(path, data)
	if err != nil {
		return nil, err
	}

	mappings := s.mapper.Map(analysis.Fields, rec)
	return &FormMapResult{
		Path:     path,
		Provider: rec.Name,
		Mappings: mappings,
		Coverage: matching.CoverageOf(mappings, rec),
	}, nil
}

// FillForm fills a form for one provider and writes the result to disk
func (s *Service) FillForm(ctx context.Context, req FormFillRequest) (*FormFillResult, error) {
	path, data, err := s.readForm(req.Path)
	if err != nil {
		return nil, err
	}

	rec, err := s.findProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	outDir, err := s.outputDir(req.OutputDir, path)
	if err != nil {
		return nil, err
	}

	analysis, err := s.fillable(path, data)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := s.filler.Fill(data, analysis.Fields, rec, req.Mappings)
	if err != nil {
		return nil, annotate(err, path)
	}

	outPath := filepath.Join(outDir, fill.OutputFilename(rec.Name, filepath.Base(path)))
	if err := writeFile(outPath, res.FilledBytes); err != nil {
		return nil, err
	}

	result := &FormFillResult{
		Path:        path,
		OutputPath:  outPath,
		Provider:    rec.Name,
		Filled:      res.Filled,
		Skipped:     res.Skipped,
		TotalFields: res.TotalFields,
		FillPercent: res.FillPercent(),
	}

	if pages, err := s.validator.Verify(res.FilledBytes); err != nil {
		s.logger.Warn("filled output failed verification", zap.String("output", outPath), zap.Error(err))
	} else {
		result.Verified = true
		result.PageCount = pages
	}

	s.logger.Info("filled form",
		zap.String("path", path),
		zap.String("provider", rec.Name),
		zap.String("output", outPath),
		zap.Int("filled", len(res.Filled)),
		zap.Int("total", res.TotalFields))

	return result, nil
}

// readForm confines, validates and reads a PDF form
func (s *Service) readForm(reqPath string) (string, []byte, error) {
	path, err := s.pathValidator.Resolve(reqPath)
	if err != nil {
		return "", nil, fmt.Errorf("security validation failed: %w", err)
	}

	data, err := s.validator.ReadPDF(path)
	if err != nil {
		return "", nil, err
	}
	return path, data, nil
}

// fillable analyzes data and turns an unusable document into a FormError
func (s *Service) fillable(path string, data []byte) (*forms.Analysis, error) {
	analysis := s.analyzer.Analyze(data)
	if !analysis.OK() {
		return nil, pdferrors.New(analysis.ErrorCode).WithFile(path)
	}
	return analysis, nil
}

func (s *Service) dataset() (*provider.Dataset, error) {
	if !s.store.Exists() {
		return nil, ErrNoProviders
	}
	ds, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if ds == nil || len(ds.Providers) == 0 {
		return nil, ErrNoProviders
	}
	return ds, nil
}

func (s *Service) findProvider(name string) (provider.Record, error) {
	if strings.TrimSpace(name) == "" {
		return provider.Record{}, fmt.Errorf("provider name cannot be empty")
	}
	ds, err := s.dataset()
	if err != nil {
		return provider.Record{}, err
	}
	return ds.Find(name)
}

// outputDir resolves the requested output directory, defaulting to the
// directory of the source form, and creates it
func (s *Service) outputDir(requested, source string) (string, error) {
	dir := filepath.Dir(source)
	if requested != "" {
		resolved, err := s.pathValidator.Resolve(requested)
		if err != nil {
			return "", fmt.Errorf("security validation failed: %w", err)
		}
		dir = resolved
	}

	if err := s.pathValidator.ValidateDirectory(dir); err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("cannot create output directory: %w", err)
	}
	return dir, nil
}

func annotate(err error, path string) error {
	var fe *pdferrors.FormError
	if errors.As(err, &fe) {
		return fe.WithFile(path)
	}
	return err
}

// writeFile writes data next to path and renames it into place
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
