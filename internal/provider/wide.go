package provider

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoDataRows is returned when a wide export has no recognizable first
// attribute row
var ErrNoDataRows = errors.New("no attribute rows found in provider export")

// dataStartMarkers are the first-column labels that open the attribute block of
// a compliance export. Rows above the first of them hold provider names
var dataStartMarkers = map[string]bool{
	"notes":        true,
	"address":      true,
	"phone number": true,
}

// ParseWideCSV reads the compliance dashboard layout, where each provider is a
// column and each attribute is a row
func ParseWideCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read provider CSV: %w", err)
	}
	return ParseWideRows(rows)
}

// ParseWideRows turns a wide grid into provider records. Header rows above the
// attribute block are concatenated into provider names; columns marked as
// terminated ("TERM>") are dropped
func ParseWideRows(rows [][]string) (*Dataset, error) {
	start := -1
	for i, row := range rows {
		if len(row) > 0 && dataStartMarkers[strings.ToLower(strings.TrimSpace(row[0]))] {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoDataRows
	}

	width := 0
	for _, row := range rows[:start] {
		width = max(width, len(row))
	}

	var providers []Record
	for col := 1; col < width; col++ {
		name := headerName(rows[:start], col)
		if name == "" || strings.Contains(strings.ToLower(name), "term") {
			continue
		}

		rec := Record{Name: name}
		for _, row := range rows[start:] {
			field := cell(row, 0)
			value := cell(row, col)
			if field != "" && value != "" {
				rec.Set(field, value)
			}
		}
		if len(rec.Data) > 0 {
			providers = append(providers, rec)
		}
	}

	return NewDataset(providers), nil
}

func headerName(header [][]string, col int) string {
	var parts []string
	for _, row := range header {
		v := cell(row, col)
		if v != "" && !strings.Contains(v, "TERM>") {
			parts = append(parts, v)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
