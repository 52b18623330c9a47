package fill

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-filler/internal/matching"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

// checkedValues are the provider values that check a checkbox
var checkedValues = map[string]bool{
	"yes":     true,
	"true":    true,
	"1":       true,
	"checked": true,
	"x":       true,
}

// Filler writes provider data into PDF form fields
type Filler struct {
	mapper *matching.Mapper
	logger *zap.Logger
}

// NewFiller creates a filler that derives automatic mappings from mapper
func NewFiller(mapper *matching.Mapper, logger *zap.Logger) (*Filler, error) {
	if mapper == nil {
		return nil, errors.New("mapper cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{mapper: mapper, logger: logger}, nil
}

// Fill loads pdfBytes, writes the provider's values into fields and returns the
// new document with a per-field report. custom maps PDF field names to provider
// columns and takes precedence over automatic matches; a blank entry removes
// the field's mapping. Only document load and save failures are returned as
// errors
func (f *Filler) Fill(pdfBytes []byte, fields []forms.Field, rec provider.Record, custom map[string]string) (*Result, error) {
	doc, err := forms.Load(pdfBytes)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.CodePDFLoadError, err)
	}

	auto := f.mapper.Map(fields, rec)
	autoByField := make(map[string]matching.FieldMapping, len(auto))
	for _, m := range auto {
		autoByField[m.PDFField] = m
	}
	effective := EffectiveMapping(auto, custom)

	result := &Result{
		Provider:    rec.Name,
		Filled:      []FilledField{},
		Skipped:     []SkippedField{},
		TotalFields: len(fields),
	}

	for _, field := range fields {
		providerField, mapped := effective[field.Name]
		if !mapped {
			result.skip(field.Name, f.unmappedReason(field.Name, autoByField[field.Name]))
			continue
		}

		value := rec.Value(providerField)
		if strings.TrimSpace(value) == "" {
			result.skip(field.Name, ReasonNoData(providerField))
			continue
		}

		reported, reason := f.write(doc, field, value)
		if reason != "" {
			result.skip(field.Name, reason)
			continue
		}
		result.Filled = append(result.Filled, FilledField{
			FieldName:     field.Name,
			ProviderField: providerField,
			Value:         reported,
		})
	}

	out, err := doc.Save()
	if err != nil {
		return nil, fmt.Errorf("failed to save filled form: %w", err)
	}
	result.FilledBytes = out

	f.logger.Debug("filled form",
		zap.String("provider", rec.Name),
		zap.Int("filled", len(result.Filled)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("total", result.TotalFields))

	return result, nil
}

// EffectiveMapping merges confident automatic mappings with custom overrides.
// Overrides always win; a blank override clears the field
func EffectiveMapping(auto []matching.FieldMapping, custom map[string]string) map[string]string {
	effective := make(map[string]string, len(auto)+len(custom))
	for _, m := range auto {
		if m.Matched() {
			effective[m.PDFField] = m.ProviderField
		}
	}
	for pdfField, providerField := range custom {
		if strings.TrimSpace(providerField) == "" {
			delete(effective, pdfField)
			continue
		}
		effective[pdfField] = providerField
	}
	return effective
}

func (f *Filler) unmappedReason(pdfField string, auto matching.FieldMapping) string {
	switch {
	case f.mapper.Excluded(pdfField):
		return ReasonExcluded
	case auto.Confidence > 0 && auto.Confidence < f.mapper.Config().Threshold:
		return ReasonLowConfidence(auto.Confidence)
	default:
		return ReasonNoMatch
	}
}

// write dispatches on the field kind. It returns the value to report, or a
// skip reason. A panic while writing one field only skips that field
func (f *Filler) write(doc *forms.Document, field forms.Field, value string) (reported, reason string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("panic while filling field", zap.String("field", field.Name), zap.Any("panic", r))
			reported, reason = "", ReasonError
		}
	}()

	if !field.Kind.Fillable() {
		return "", ReasonUnsupported
	}

	node, ok := doc.Node(field.Name)
	if !ok {
		f.logger.Debug("field not present in document", zap.String("field", field.Name))
		return "", ReasonError
	}

	switch field.Kind {
	case forms.KindText:
		if err := doc.SetText(node, value); err != nil {
			return "", f.failed(field.Name, err)
		}
		return value, ""

	case forms.KindCheckbox:
		checked := checkedValues[strings.ToLower(strings.TrimSpace(value))]
		if err := doc.SetChecked(node, checked); err != nil {
			return "", f.failed(field.Name, err)
		}
		if checked {
			return "Checked", ""
		}
		return "Unchecked", ""

	case forms.KindDropdown:
		if _, err := doc.Select(node, value); err != nil {
			if errors.Is(err, forms.ErrOptionNotFound) {
				return "", ReasonNotInOpts
			}
			return "", f.failed(field.Name, err)
		}
		return value, ""

	default:
		return "", ReasonUnsupported
	}
}

func (f *Filler) failed(field string, err error) string {
	if errors.Is(err, forms.ErrUnsupportedKind) {
		return ReasonUnsupported
	}
	f.logger.Debug("failed to fill field", zap.String("field", field), zap.Error(err))
	return ReasonError
}

func (r *Result) skip(field, reason string) {
	r.Skipped = append(r.Skipped, SkippedField{FieldName: field, Reason: reason})
}
