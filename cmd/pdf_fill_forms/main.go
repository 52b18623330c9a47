package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-filler/internal/matching"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/fill"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

// options are the parsed command line flags
type options struct {
	providers string
	provider  string
	mappings  string
	out       string
	format    string
	threshold float64
	overlap   bool
	verbose   bool
	pdfPath   string
}

// Report is what the tool prints: the analysis, and the fill outcome when a
// provider was given
type Report struct {
	FilePath   string                  `json:"file_path"`
	Analysis   *forms.Analysis         `json:"analysis"`
	Message    string                  `json:"message,omitempty"`
	Guidance   string                  `json:"guidance,omitempty"`
	Mappings   []matching.FieldMapping `json:"mappings,omitempty"`
	Fill       *fill.Result            `json:"fill,omitempty"`
	OutputPath string                  `json:"output_path,omitempty"`
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	defer func() { _ = logger.Sync() }()

	report, err := execute(opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := writeReport(os.Stdout, report, opts.format); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
	if !report.Analysis.OK() {
		os.Exit(3)
	}
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pdf_fill_forms", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printUsage(output) }

	opts := &options{}
	fs.StringVar(&opts.providers, "providers", "", "Provider export (CSV, XLSX or JSON)")
	fs.StringVar(&opts.provider, "provider", "", "Provider name to fill for (requires -providers)")
	fs.StringVar(&opts.mappings, "mappings", "", "JSON object of PDF field to provider column overrides")
	fs.StringVar(&opts.out, "out", "", "Output directory (defaults to the form's directory)")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")
	fs.Float64Var(&opts.threshold, "threshold", matching.DefaultThreshold, "Match threshold (0-1)")
	fs.BoolVar(&opts.overlap, "word-overlap", false, "Score labels by shared words when neither contains the other")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, errors.New("exactly one PDF file path required")
	}
	opts.pdfPath = fs.Arg(0)

	if opts.format != "text" && opts.format != "json" {
		return nil, fmt.Errorf("unsupported output format: %s", opts.format)
	}
	if opts.provider != "" && opts.providers == "" {
		return nil, errors.New("-provider requires -providers")
	}
	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "PDF Fill Forms - Analyze a PDF form and fill it from provider data")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_fill_forms [OPTIONS] <pdf_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -providers     Provider export (CSV, XLSX or JSON)")
	fmt.Fprintln(w, "  -provider      Provider name to fill for; without it the form is only analyzed")
	fmt.Fprintln(w, "  -mappings      JSON overrides, e.g. '{\"Phone\":\"Cell Phone\"}'")
	fmt.Fprintln(w, "  -out           Output directory (defaults to the form's directory)")
	fmt.Fprintln(w, "  -format        Output format: text (default), json")
	fmt.Fprintln(w, "  -threshold     Match threshold (default 0.5)")
	fmt.Fprintln(w, "  -word-overlap  Score labels by shared words when neither contains the other")
	fmt.Fprintln(w, "  -verbose       Log progress to stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf_fill_forms credentialing.pdf")
	fmt.Fprintln(w, "  pdf_fill_forms -providers export.csv -provider \"Dr. Jane Doe\" credentialing.pdf")
	fmt.Fprintln(w, "  pdf_fill_forms -format json -providers export.xlsx -provider doe -out filled form.pdf")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXIT CODES:")
	fmt.Fprintln(w, "  1  error, 2  usage, 3  the form cannot be filled (XFA, no fields, load error)")
}

// execute analyzes the form and, when a provider is named, fills it
func execute(opts *options, logger *zap.Logger) (*Report, error) {
	absPath, err := filepath.Abs(opts.pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	analysis := forms.NewAnalyzer(logger).Analyze(data)
	report := &Report{
		FilePath: absPath,
		Analysis: analysis,
		Message:  analysis.ErrorCode.Message(),
		Guidance: analysis.ErrorCode.Guidance(),
	}
	if !analysis.OK() || opts.provider == "" {
		return report, nil
	}

	ds, err := provider.LoadFile(opts.providers)
	if err != nil {
		return nil, err
	}
	rec, err := ds.Find(opts.provider)
	if err != nil {
		return nil, err
	}

	var custom map[string]string
	if opts.mappings != "" {
		if err := json.Unmarshal([]byte(opts.mappings), &custom); err != nil {
			return nil, fmt.Errorf("invalid -mappings: %w", err)
		}
	}

	mapper, err := matching.NewMapper(matching.Config{
		Threshold:   opts.threshold,
		Boost:       matching.DefaultBoost,
		WordOverlap: opts.overlap,
	})
	if err != nil {
		return nil, err
	}
	filler, err := fill.NewFiller(mapper, logger)
	if err != nil {
		return nil, err
	}

	result, err := filler.Fill(data, analysis.Fields, rec, custom)
	if err != nil {
		return nil, err
	}

	outDir := opts.out
	if outDir == "" {
		outDir = filepath.Dir(absPath)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, fill.OutputFilename(rec.Name, filepath.Base(absPath)))
	if err := writeFile(outPath, result.FilledBytes); err != nil {
		return nil, err
	}

	report.Mappings = mapper.Map(analysis.Fields, rec)
	report.Fill = result
	report.OutputPath = outPath
	return report, nil
}

// writeFile writes data beside path and renames it into place
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func writeReport(w io.Writer, report *Report, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	return writeText(w, report)
}

func writeText(w io.Writer, report *Report) error {
	a := report.Analysis
	fmt.Fprintf(w, "📄 %s\n", report.FilePath)

	if !a.OK() {
		fmt.Fprintf(w, "❌ %s: %s\n", a.ErrorCode, report.Message)
		if a.XFAVariant != "" {
			fmt.Fprintf(w, "   XFA variant: %s\n", a.XFAVariant)
		}
		fmt.Fprintf(w, "\n%s\n", report.Guidance)
		return nil
	}

	fmt.Fprintf(w, "✅ %d form fields", len(a.Fields))
	if a.IsXFA {
		fmt.Fprintf(w, " (hybrid XFA, %s)", a.XFAVariant)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if report.Fill == nil {
		for i, f := range a.Fields {
			fmt.Fprintf(w, "[%d] %s\n", i+1, f.Name)
			fmt.Fprintf(w, "    Type: %s\n", f.Kind)
			if v := f.CurrentValue(); v != "" {
				fmt.Fprintf(w, "    Value: %s\n", v)
			}
		}
		return nil
	}

	res := report.Fill
	fmt.Fprintf(w, "Provider: %s\n", res.Provider)
	fmt.Fprintf(w, "Output:   %s\n", report.OutputPath)
	fmt.Fprintf(w, "Filled %d of %d fields (%d%%)\n\n", len(res.Filled), res.TotalFields, res.FillPercent())

	for _, f := range res.Filled {
		fmt.Fprintf(w, "  ✓ %s ← %s = %q\n", f.FieldName, f.ProviderField, f.Value)
	}
	byReason := fill.SkipReasons(res.Skipped)
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  • %s: %s\n", reason, strings.Join(byReason[reason], ", "))
	}
	return nil
}
