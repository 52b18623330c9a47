package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/pdftest"
)

func writeFixtures(t *testing.T) (form, providers string) {
	t.Helper()
	dir := t.TempDir()

	form = filepath.Join(dir, "form.pdf")
	require.NoError(t, os.WriteFile(form, pdftest.New().
		Text("NPI Number", "").
		Text("Phone", "").
		Text("Employer", "").
		Build(), 0o600))

	providers = filepath.Join(dir, "providers.csv")
	require.NoError(t, os.WriteFile(providers, []byte(
		"provider,field,value\nDr. Jane Doe,NPI #,1234567890\nDr. Jane Doe,Phone Number,555-0100\n"), 0o600))
	return form, providers
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-providers", "p.csv", "-provider", "Doe", "-format", "json", "form.pdf"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "p.csv", opts.providers)
	assert.Equal(t, "Doe", opts.provider)
	assert.Equal(t, "json", opts.format)
	assert.Equal(t, "form.pdf", opts.pdfPath)
	assert.Equal(t, 0.5, opts.threshold)
	assert.False(t, opts.overlap)

	opts, err = parseFlags([]string{"-word-overlap", "form.pdf"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, opts.overlap)

	for _, args := range [][]string{
		{},
		{"a.pdf", "b.pdf"},
		{"-format", "xml", "a.pdf"},
		{"-provider", "Doe", "a.pdf"},
		{"-unknown", "a.pdf"},
	} {
		_, err := parseFlags(args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
}

func TestExecute_AnalyzeOnly(t *testing.T) {
	form, _ := writeFixtures(t)

	report, err := execute(&options{pdfPath: form, format: "text", threshold: 0.5}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, report.Fill)
	assert.Equal(t, []string{"NPI Number", "Phone", "Employer"}, report.Analysis.FieldNames())

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report, "text"))
	assert.Contains(t, buf.String(), "✅ 3 form fields")
	assert.Contains(t, buf.String(), "[2] Phone")
}

func TestExecute_Fill(t *testing.T) {
	form, providers := writeFixtures(t)
	out := filepath.Join(t.TempDir(), "filled")

	report, err := execute(&options{
		pdfPath:   form,
		providers: providers,
		provider:  "jane",
		mappings:  `{"Phone": ""}`,
		out:       out,
		format:    "json",
		threshold: 0.5,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "Dr__Jane_Doe_form.pdf"), report.OutputPath)
	assert.FileExists(t, report.OutputPath)
	require.NotNil(t, report.Fill)
	assert.Len(t, report.Fill.Filled, 1)
	assert.Len(t, report.Fill.Skipped, 2)
	assert.True(t, report.Fill.Consistent())

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report, "json"))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.OutputPath, decoded["output_path"])
	assert.NoFileExists(t, report.OutputPath+".tmp")

	buf.Reset()
	require.NoError(t, writeText(&buf, report))
	assert.Contains(t, buf.String(), "  • excluded organization/facility field: Employer\n  • no matching field in provider data: Phone\n")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "out.pdf")
	require.NoError(t, writeFile(path, []byte("%PDF")))
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".tmp")

	blocked := filepath.Join(dir, "blocked.pdf")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "occupied"), 0o750))
	assert.Error(t, writeFile(blocked, []byte("%PDF")))
	assert.NoFileExists(t, blocked+".tmp")
}

func TestExecute_Errors(t *testing.T) {
	form, providers := writeFixtures(t)

	_, err := execute(&options{pdfPath: filepath.Join(t.TempDir(), "missing.pdf")}, zap.NewNop())
	assert.Error(t, err)

	_, err = execute(&options{pdfPath: form, providers: providers, provider: "zzz", threshold: 0.5}, zap.NewNop())
	assert.Error(t, err)

	_, err = execute(&options{pdfPath: form, providers: providers, provider: "jane", mappings: "{", threshold: 0.5}, zap.NewNop())
	assert.Error(t, err)
}

func TestExecute_Unfillable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.New().WithoutAcroForm().Build(), 0o600))

	report, err := execute(&options{pdfPath: path, provider: "ignored", providers: "ignored.csv"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, report.Analysis.OK())

	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, report))
	assert.Contains(t, buf.String(), "NO_FIELDS_DETECTED")
}
