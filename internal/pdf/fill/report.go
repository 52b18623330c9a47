package fill

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Skip reasons reported for fields that were left untouched
const (
	ReasonExcluded    = "excluded organization/facility field"
	ReasonNoMatch     = "no matching field in provider data"
	ReasonNotInOpts   = "value not in dropdown options"
	ReasonUnsupported = "unsupported field type"
	ReasonError       = "error filling field"
)

// ReasonLowConfidence formats the skip reason for a match below the threshold
func ReasonLowConfidence(confidence float64) string {
	return fmt.Sprintf("low confidence match (%d%%)", int(math.Round(confidence*100)))
}

// ReasonNoData formats the skip reason for a mapped column without a value
func ReasonNoData(providerField string) string {
	return fmt.Sprintf("provider has no data for '%s'", providerField)
}

// FilledField records a field that received a value
type FilledField struct {
	FieldName     string `json:"field_name"`
	ProviderField string `json:"provider_field"`
	Value         string `json:"value"`
}

// SkippedField records a field that was left untouched and why
type SkippedField struct {
	FieldName string `json:"field_name"`
	Reason    string `json:"reason"`
}

// Result is the outcome of one fill run. Every input field ends up in exactly
// one of Filled or Skipped
type Result struct {
	Provider    string         `json:"provider"`
	FilledBytes []byte         `json:"-"`
	Filled      []FilledField  `json:"filled"`
	Skipped     []SkippedField `json:"skipped"`
	TotalFields int            `json:"total_fields"`
}

// Consistent reports whether the filled and skipped counts add up to the total
func (r *Result) Consistent() bool {
	return len(r.Filled)+len(r.Skipped) == r.TotalFields
}

// FillPercent is the rounded share of fields that were filled
func (r *Result) FillPercent() int {
	if r.TotalFields == 0 {
		return 0
	}
	return int(math.Round(float64(len(r.Filled)) / float64(r.TotalFields) * 100))
}

// SkipReasons groups skipped field names by reason, keeping their order
func SkipReasons(skipped []SkippedField) map[string][]string {
	out := make(map[string][]string)
	for _, s := range skipped {
		out[s.Reason] = append(out[s.Reason], s.FieldName)
	}
	return out
}

// SanitizeName replaces every character outside [A-Za-z0-9] with '_'
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// OutputFilename names the filled copy of original for a provider, e.g.
// "Dr__Jane_Doe_form.pdf"
func OutputFilename(providerName, original string) string {
	return SanitizeName(providerName) + "_" + filepath.Base(original)
}
