package matching

import (
	"fmt"
	"sort"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

const (
	// DefaultThreshold is the lowest score that still counts as a match
	DefaultThreshold = 0.5
	// DefaultBoost is the floor score for a pair sharing a category
	DefaultBoost = 0.85
)

// Config holds the tunable scoring constants
type Config struct {
	Threshold float64
	Boost     float64
	// WordOverlap scores labels without containment by their shared words
	// (WordSimilarity) instead of Similarity, which scores them 0
	WordOverlap bool
}

// DefaultConfig returns the historical constants
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Boost: DefaultBoost}
}

// Validate checks that both constants are probabilities
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("match threshold must be within [0,1], got %v", c.Threshold)
	}
	if c.Boost < 0 || c.Boost > 1 {
		return fmt.Errorf("category boost must be within [0,1], got %v", c.Boost)
	}
	return nil
}

// FieldMapping pairs one PDF field with its best provider column
type FieldMapping struct {
	PDFField string `json:"pdf_field"`
	// ProviderField is empty when no candidate reached the threshold
	ProviderField  string  `json:"provider_field"`
	Confidence     float64 `json:"confidence"`
	SuggestedValue string  `json:"suggested_value"`
	// Candidate is the best-scoring column regardless of the threshold, kept
	// so a reviewer can accept a low-confidence suggestion
	Candidate string `json:"candidate,omitempty"`
}

// Matched reports whether the mapping carries a confident provider field
func (m FieldMapping) Matched() bool {
	return m.ProviderField != ""
}

// Mapper produces field mappings for a provider record
type Mapper struct {
	config     Config
	categories *CategoryMatcher
}

// NewMapper creates a mapper over the built-in category tables
func NewMapper(cfg Config) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{config: cfg, categories: DefaultCategoryMatcher()}, nil
}

// Config returns the scoring constants in use
func (m *Mapper) Config() Config {
	return m.config
}

// Excluded reports whether the PDF field is kept out of automatic matching
func (m *Mapper) Excluded(pdfField string) bool {
	return m.categories.Excluded(pdfField)
}

// Score rates a single PDF field / provider column pair. Vetoed pairs score 0
// and report ok=false
func (m *Mapper) Score(pdfField, providerField string) (score float64, ok bool) {
	if m.categories.Conflicts(pdfField, providerField) {
		return 0, false
	}
	if m.config.WordOverlap {
		score = WordSimilarity(pdfField, providerField)
	} else {
		score = Similarity(pdfField, providerField)
	}
	if score < m.config.Boost && m.categories.Boosts(pdfField, providerField) {
		score = m.config.Boost
	}
	return score, true
}

// candidate is the running maximum of the fold in best
type candidate struct {
	field string
	score float64
}

// best folds over the provider's non-empty columns and keeps the first column
// reaching the highest score
func (m *Mapper) best(pdfField string, rec provider.Record) candidate {
	var top candidate
	for _, col := range rec.FieldNames() {
		if !rec.Has(col) {
			continue
		}
		score, ok := m.Score(pdfField, col)
		if !ok {
			continue
		}
		if score > top.score {
			top = candidate{field: col, score: score}
		}
	}
	return top
}

// MapField computes the mapping of a single PDF field
func (m *Mapper) MapField(pdfField string, rec provider.Record) FieldMapping {
	mapping := FieldMapping{PDFField: pdfField}
	if m.categories.Excluded(pdfField) {
		return mapping
	}

	top := m.best(pdfField, rec)
	mapping.Confidence = top.score
	mapping.Candidate = top.field
	if top.field != "" && top.score >= m.config.Threshold {
		mapping.ProviderField = top.field
		mapping.SuggestedValue = rec.Value(top.field)
	}
	return mapping
}

// Map returns one mapping per PDF field, most confident first. Fields with
// equal confidence keep their extraction order
func (m *Mapper) Map(fields []forms.Field, rec provider.Record) []FieldMapping {
	mappings := make([]FieldMapping, 0, len(fields))
	for _, f := range fields {
		mappings = append(mappings, m.MapField(f.Name, rec))
	}
	sort.SliceStable(mappings, func(i, j int) bool {
		return mappings[i].Confidence > mappings[j].Confidence
	})
	return mappings
}

// Coverage summarizes how much of a form a provider can fill
type Coverage struct {
	WithData    int `json:"with_data"`
	MissingData int `json:"missing_data"`
	Unmapped    int `json:"unmapped"`
	Percent     int `json:"percent"`
}

// CoverageOf counts mapped fields with a value, mapped fields whose column is
// blank, and unmapped fields. Percent is the share of fields with data
func CoverageOf(mappings []FieldMapping, rec provider.Record) Coverage {
	var c Coverage
	for _, mp := range mappings {
		switch {
		case !mp.Matched():
			c.Unmapped++
		case rec.Has(mp.ProviderField):
			c.WithData++
		default:
			c.MissingData++
		}
	}
	if len(mappings) > 0 {
		c.Percent = int(float64(c.WithData)/float64(len(mappings))*100 + 0.5)
	}
	return c
}

// ConfidenceLabel buckets a score as High, Medium or Low for display
func ConfidenceLabel(score float64) string {
	switch {
	case score >= 0.8:
		return "High"
	case score >= DefaultThreshold:
		return "Medium"
	default:
		return "Low"
	}
}
