package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/matching"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/fill"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

const providersCSV = `Name,Dr. Jane Doe,Dr. John Roe,Old Doc TERM>
Phone Number,555-0100,555-0199,555-0000
NPI #,1234567890,9876543210,111
Clinic Name,Test Clinic,Other Clinic,X
TX License,TX-123,,TX-9
CA License,,CA-9,
`

type fixture struct {
	dir     string
	form    string
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	form := filepath.Join(dir, "form.pdf")
	data := pdftest.New().
		Text("NPI Number", "").
		Text("Phone", "").
		Text("Clinic Name", "").
		Build()
	require.NoError(t, os.WriteFile(form, data, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers.csv"), []byte(providersCSV), 0o600))

	service, err := NewService(Options{
		MaxFileSize: 10 * 1024 * 1024,
		Directory:   dir,
		DataDir:     t.TempDir(),
		Matching:    matching.DefaultConfig(),
		Workers:     2,
	})
	require.NoError(t, err)

	return &fixture{dir: dir, form: form, service: service}
}

func (f *fixture) importProviders(t *testing.T) {
	t.Helper()
	_, err := f.service.ImportProviders(ProviderImportRequest{Path: "providers.csv"})
	require.NoError(t, err)
}

func TestNewService(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{
			name: "valid",
			opts: Options{MaxFileSize: 1024, Directory: dir, DataDir: t.TempDir(), Matching: matching.DefaultConfig()},
		},
		{
			name:    "zero max file size",
			opts:    Options{MaxFileSize: 0, Directory: dir, Matching: matching.DefaultConfig()},
			wantErr: true,
		},
		{
			name:    "empty directory",
			opts:    Options{MaxFileSize: 1024, DataDir: t.TempDir(), Matching: matching.DefaultConfig()},
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			opts:    Options{MaxFileSize: 1024, Directory: dir, DataDir: t.TempDir(), Matching: matching.Config{Threshold: 1.5, Boost: 0.85}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewService(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.opts.MaxFileSize, service.GetMaxFileSize())
			assert.Equal(t, DefaultWorkers, service.workers)
			assert.Equal(t, matching.DefaultConfig(), service.MatchingConfig())
		})
	}
}

func TestService_ImportAndListProviders(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.ImportProviders(ProviderImportRequest{Path: "providers.csv"})
	require.NoError(t, err)
	assert.Equal(t, "wide_csv", result.Format)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{"Dr. Jane Doe", "Dr. John Roe"}, result.Providers)
	assert.False(t, result.LastUpdated.IsZero())

	all, err := f.service.ListProviders(ProviderListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)
	assert.Equal(t, 2, all.Stored)
	require.NotNil(t, all.LastUpdated)
	assert.Equal(t, map[string]int{"TX": 1, "CA": 1}, all.StateCounts)

	byName, err := f.service.ListProviders(ProviderListRequest{Query: "john"})
	require.NoError(t, err)
	require.Len(t, byName.Providers, 1)
	assert.Equal(t, "Dr. John Roe", byName.Providers[0].Name)

	byState, err := f.service.ListProviders(ProviderListRequest{State: "tx"})
	require.NoError(t, err)
	require.Len(t, byState.Providers, 1)
	assert.Equal(t, "Dr. Jane Doe", byState.Providers[0].Name)
	assert.Equal(t, 4, byState.Providers[0].WithData)
}

func TestService_ImportProviders_Errors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "empty.csv"), []byte("Name,A\nFoo,1\n"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"outside directory", "/etc/passwd"},
		{"wrong extension", "notes.txt"},
		{"missing", "missing.csv"},
		{"no attribute rows", "empty.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.ImportProviders(ProviderImportRequest{Path: tt.path})
			assert.Error(t, err)
		})
	}
}

func TestService_ListProviders_NoData(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ListProviders(ProviderListRequest{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestService_ClearProviders(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.ClearProviders()
	require.NoError(t, err)
	assert.False(t, result.Cleared)

	f.importProviders(t)
	result, err = f.service.ClearProviders()
	require.NoError(t, err)
	assert.True(t, result.Cleared)
	assert.Equal(t, 2, result.Removed)
	assert.NoFileExists(t, result.Path)

	_, err = f.service.ListProviders(ProviderListRequest{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestService_FillForm_AmbiguousProvider(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "smiths.csv"), []byte(
		"Name,Dr. Jane Smith,Dr. John Smith\nPhone Number,555-0001,555-0002\nNPI #,111,222\n"), 0o600))
	_, err := f.service.ImportProviders(ProviderImportRequest{Path: "smiths.csv"})
	require.NoError(t, err)

	_, err = f.service.FillForm(context.Background(), FormFillRequest{Path: "form.pdf", Provider: "Smith"})
	assert.ErrorIs(t, err, provider.ErrAmbiguous)
	assert.NoFileExists(t, filepath.Join(f.dir, "Dr__Jane_Smith_form.pdf"))

	_, err = f.service.FillBatch(context.Background(), FormFillBatchRequest{Path: "form.pdf", Providers: []string{"Smith"}})
	assert.ErrorIs(t, err, provider.ErrAmbiguous)

	result, err := f.service.FillForm(context.Background(), FormFillRequest{Path: "form.pdf", Provider: "john smith"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. John Smith", result.Provider)
}

func TestService_AnalyzeForm(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.AnalyzeForm(FormAnalyzeRequest{Path: f.form})
	require.NoError(t, err)
	assert.Equal(t, f.form, result.Path)
	assert.True(t, result.OK())
	assert.Equal(t, []string{"NPI Number", "Phone", "Clinic Name"}, result.FieldNames())
	assert.Empty(t, result.Message)

	xfa := filepath.Join(f.dir, "xfa.pdf")
	require.NoError(t, os.WriteFile(xfa, pdftest.New().XFA("<template xmlns=\"x\"><subform/></template>").Build(), 0o600))

	result, err = f.service.AnalyzeForm(FormAnalyzeRequest{Path: "xfa.pdf"})
	require.NoError(t, err)
	assert.Equal(t, pdferrors.CodeXFAFormDetected, result.ErrorCode)
	assert.NotEmpty(t, result.Message)
	assert.Contains(t, result.Guidance, "AcroForm")
}

func TestService_AnalyzeForm_InvalidFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "empty.pdf"), nil, 0o600))

	for _, path := range []string{"", "missing.pdf", "empty.pdf", "providers.csv", "../outside.pdf"} {
		_, err := f.service.AnalyzeForm(FormAnalyzeRequest{Path: path})
		assert.Error(t, err, path)
	}
}

func TestService_MapForm(t *testing.T) {
	f := newFixture(t)
	f.importProviders(t)

	result, err := f.service.MapForm(FormMapRequest{Path: "form.pdf", Provider: "jane doe"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Jane Doe", result.Provider)
	require.Len(t, result.Mappings, 3)

	byField := make(map[string]matching.FieldMapping)
	for _, m := range result.Mappings {
		byField[m.PDFField] = m
	}
	assert.Equal(t, "NPI #", byField["NPI Number"].ProviderField)
	assert.Equal(t, "Phone Number", byField["Phone"].ProviderField)
	assert.Equal(t, "", byField["Clinic Name"].ProviderField)
	assert.Equal(t, "Clinic Name", result.Mappings[2].PDFField, "excluded field sorts last")

	assert.Equal(t, matching.Coverage{WithData: 2, Unmapped: 1, Percent: 67}, result.Coverage)
}

func TestService_FillForm(t *testing.T) {
	f := newFixture(t)
	f.importProviders(t)

	result, err := f.service.FillForm(context.Background(), FormFillRequest{Path: "form.pdf", Provider: "Dr. Jane Doe"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "Dr__Jane_Doe_form.pdf"), result.OutputPath)
	assert.FileExists(t, result.OutputPath)
	assert.Len(t, result.Filled, 2)
	assert.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.TotalFields)
	assert.Equal(t, 67, result.FillPercent)
	if result.Verified {
		assert.Equal(t, 1, result.PageCount)
	}

	filled, err := f.service.AnalyzeForm(FormAnalyzeRequest{Path: result.OutputPath})
	require.NoError(t, err)
	values := make(map[string]string)
	for _, field := range filled.Fields {
		values[field.Name] = field.CurrentValue()
	}
	assert.Equal(t, "1234567890", values["NPI Number"])
	assert.Equal(t, "555-0100", values["Phone"])
}

func TestService_FillForm_Overrides(t *testing.T) {
	f := newFixture(t)
	f.importProviders(t)

	result, err := f.service.FillForm(context.Background(), FormFillRequest{
		Path:      "form.pdf",
		Provider:  "Dr. John Roe",
		Mappings:  map[string]string{"Phone": "", "Clinic Name": "Clinic Name"},
		OutputDir: "out",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "out", "Dr__John_Roe_form.pdf"), result.OutputPath)
	filled := make(map[string]string)
	for _, ff := range result.Filled {
		filled[ff.FieldName] = ff.Value
	}
	assert.Equal(t, map[string]string{"NPI Number": "9876543210", "Clinic Name": "Other Clinic"}, filled)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, fill.SkippedField{FieldName: "Phone", Reason: fill.ReasonNoMatch}, result.Skipped[0])
}

func TestService_FillForm_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.FillForm(context.Background(), FormFillRequest{Path: "form.pdf", Provider: "Dr. Jane Doe"})
	assert.ErrorIs(t, err, ErrNoProviders)

	f.importProviders(t)

	_, err = f.service.FillForm(context.Background(), FormFillRequest{Path: "form.pdf"})
	assert.Error(t, err)

	_, err = f.service.FillForm(context.Background(), FormFillRequest{Path: "form.pdf", Provider: "Dr. Jane Doe", OutputDir: "/etc"})
	assert.Error(t, err)

	noFields := filepath.Join(f.dir, "flat.pdf")
	require.NoError(t, os.WriteFile(noFields, pdftest.New().WithoutAcroForm().Build(), 0o600))
	_, err = f.service.FillForm(context.Background(), FormFillRequest{Path: noFields, Provider: "Dr. Jane Doe"})
	require.Error(t, err)
	assert.True(t, pdferrors.Is(err, pdferrors.CodeNoFieldsDetected))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.service.FillForm(ctx, FormFillRequest{Path: "form.pdf", Provider: "Dr. Jane Doe"})
	assert.ErrorIs(t, err, context.Canceled)
}
