package provider

import (
	"errors"
	"sort"
	"strings"
)

// Record is one provider from the compliance export: a display name and a flat
// column → value map. Columns keeps the source order of the keys in Data
type Record struct {
	Name    string            `json:"name"`
	Data    map[string]string `json:"data"`
	Columns []string          `json:"columns,omitempty"`
}

// NewRecord builds a record whose column order is the order of the pairs
func NewRecord(name string, pairs ...[2]string) Record {
	rec := Record{Name: name, Data: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		rec.Set(p[0], p[1])
	}
	return rec
}

// Set stores a value, appending the column to the order on first sight
func (r *Record) Set(column, value string) {
	if r.Data == nil {
		r.Data = make(map[string]string)
	}
	if _, seen := r.Data[column]; !seen {
		r.Columns = append(r.Columns, column)
	}
	r.Data[column] = value
}

// Value returns the column's value, or "" when absent
func (r Record) Value(column string) string {
	return r.Data[column]
}

// Has reports whether the column holds a non-blank value
func (r Record) Has(column string) bool {
	return strings.TrimSpace(r.Data[column]) != ""
}

// FieldNames returns the data columns in source order. Records built without
// an order (e.g. decoded from older JSON) fall back to sorted keys so matching
// stays deterministic
func (r Record) FieldNames() []string {
	if len(r.Columns) == len(r.Data) {
		names := make([]string, 0, len(r.Columns))
		for _, c := range r.Columns {
			if _, ok := r.Data[c]; ok {
				names = append(names, c)
			}
		}
		if len(names) == len(r.Data) {
			return names
		}
	}
	names := make([]string, 0, len(r.Data))
	for k := range r.Data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the record invariants
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("provider name cannot be empty")
	}
	return nil
}

// Dataset is the parsed export: providers plus the sorted union of columns
type Dataset struct {
	Providers []Record `json:"providers"`
	AllFields []string `json:"all_fields"`
}

// NewDataset collects the column union of the given providers
func NewDataset(providers []Record) *Dataset {
	seen := make(map[string]struct{})
	for _, p := range providers {
		for k := range p.Data {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return &Dataset{Providers: providers, AllFields: fields}
}
