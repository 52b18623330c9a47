package pdf

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/fill"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

// BatchArchiveName names the archive for a batch over form with n providers
func BatchArchiveName(form string, n int) string {
	base := filepath.Base(form)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("batch_%s_%d_providers.zip", base, n)
}

type batchOutput struct {
	entry BatchEntry
	data  []byte
}

// FillBatch fills a form for several providers and bundles the filled copies
// into one ZIP archive. Each provider gets its own load of the document; one
// provider failing does not stop the others. Cancelling ctx stops the batch
// and nothing is written
func (s *Service) FillBatch(ctx context.Context, req FormFillBatchRequest) (*FormFillBatchResult, error) {
	path, data, err := s.readForm(req.Path)
	if err != nil {
		return nil, err
	}

	records, err := s.batchProviders(req)
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

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("starting batch fill", zap.String("path", path), zap.Int("providers", len(records)))

	outputs, err := s.fillAll(ctx, data, analysis.Fields, records, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	archive, err := buildArchive(outputs)
	if err != nil {
		return nil, err
	}

	archivePath := filepath.Join(outDir, BatchArchiveName(path, len(records)))
	if err := writeFile(archivePath, archive); err != nil {
		return nil, err
	}

	result := &FormFillBatchResult{
		RunID:       runID,
		Path:        path,
		ArchivePath: archivePath,
		Entries:     make([]BatchEntry, len(outputs)),
	}
	for i, out := range outputs {
		result.Entries[i] = out.entry
		if out.entry.Error != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	logger.Info("finished batch fill",
		zap.String("archive", archivePath),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	return result, nil
}

// fillAll runs the fills with at most s.workers in flight. Results keep the
// order of records
func (s *Service) fillAll(ctx context.Context, data []byte, fields []forms.Field, records []provider.Record, form string) ([]batchOutput, error) {
	outputs := make([]batchOutput, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			entry := BatchEntry{Provider: rec.Name, Filename: fill.OutputFilename(rec.Name, form)}
			res, err := s.filler.Fill(data, fields, rec, nil)
			if err != nil {
				entry.Error = err.Error()
				outputs[i] = batchOutput{entry: entry}
				return nil
			}

			entry.Filled = len(res.Filled)
			entry.Skipped = len(res.Skipped)
			entry.TotalFields = res.TotalFields
			outputs[i] = batchOutput{entry: entry, data: res.FilledBytes}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch fill cancelled: %w", err)
	}
	return outputs, nil
}

// buildArchive zips the successful outputs. Colliding file names get a
// numeric suffix so no provider's copy is overwritten
func buildArchive(outputs []batchOutput) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	used := make(map[string]int)
	for i := range outputs {
		out := &outputs[i]
		if out.data == nil {
			continue
		}

		name := out.entry.Filename
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
		}
		used[out.entry.Filename]++
		out.entry.Filename = name

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := w.Write(out.data); err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// batchProviders selects the providers named in req, or all of them, then
// narrows by state when one is given
func (s *Service) batchProviders(req FormFillBatchRequest) ([]provider.Record, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	records := ds.Providers
	if len(req.Providers) > 0 {
		records = make([]provider.Record, 0, len(req.Providers))
		seen := make(map[string]bool)
		for _, name := range req.Providers {
			rec, err := ds.Find(name)
			if err != nil {
				return nil, err
			}
			if !seen[rec.Name] {
				seen[rec.Name] = true
				records = append(records, rec)
			}
		}
	}

	if req.State != "" {
		records = provider.ByState(records, req.State)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no providers selected for batch fill")
	}
	return records, nil
}
