package provider

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// TallRow is one line of the long export layout: provider,field,value
type TallRow struct {
	Provider string `csv:"provider"`
	Field    string `csv:"field"`
	Value    string `csv:"value"`
}

// ParseTallCSV reads the long layout, one attribute per line. Providers appear
// in first-seen order; blank fields or values are ignored
func ParseTallCSV(r io.Reader) (*Dataset, error) {
	var rows []TallRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse provider CSV: %w", err)
	}

	index := make(map[string]int)
	var providers []Record
	for _, row := range rows {
		name := strings.Join(strings.Fields(row.Provider), " ")
		field := strings.TrimSpace(row.Field)
		value := strings.TrimSpace(row.Value)
		if name == "" || field == "" || value == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(providers)
			index[name] = i
			providers = append(providers, Record{Name: name})
		}
		providers[i].Set(field, value)
	}

	return NewDataset(providers), nil
}
