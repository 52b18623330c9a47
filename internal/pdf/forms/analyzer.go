package forms

import (
	"go.uber.org/zap"

	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// Analyzer inspects PDF forms
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer. A nil logger discards output
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Analyze reports the fields of the document in data and whether it can be
// filled. Failures are expressed through Analysis.ErrorCode; Analyze never
// panics on malformed input
func (a *Analyzer) Analyze(data []byte) *Analysis {
	xfa := DetectXFA(data)

	doc, err := Load(data)
	if err != nil {
		a.logger.Debug("form load failed", zap.Bool("xfa_markers", xfa), zap.Error(err))
		result := &Analysis{Fields: []Field{}, ErrorCode: pdferrors.CodePDFLoadError}
		if xfa {
			result.IsXFA = true
			result.XFAVariant = ClassifyXFA(data)
			result.ErrorCode = pdferrors.CodeXFAFormDetected
		}
		return result
	}

	if doc.ValidationErr != nil {
		a.logger.Debug("relaxed validation reported problems", zap.Error(doc.ValidationErr))
	}

	return a.decide(data, doc, xfa || doc.HasXFAEntry())
}

// decide applies the XFA/fillable decision table to a loaded document
func (a *Analyzer) decide(data []byte, doc *Document, xfa bool) *Analysis {
	fields := doc.Fields()
	result := &Analysis{
		Fields:            fields,
		IsXFA:             xfa,
		HasFillableFields: len(fields) > 0,
		PageCount:         doc.PageCount(),
		KindCounts:        make(map[FieldKind]int),
	}

	for _, f := range fields {
		result.KindCounts[f.Kind]++
	}

	if xfa {
		result.XFAVariant = ClassifyXFA(data)
	}

	switch {
	case xfa && !result.HasFillableFields:
		result.ErrorCode = pdferrors.CodeXFAFormDetected
	case !xfa && !result.HasFillableFields:
		result.ErrorCode = pdferrors.CodeNoFieldsDetected
	}

	if !result.HasFillableFields {
		result.Fields = []Field{}
		result.KindCounts = nil
	}

	a.logger.Debug("analyzed form",
		zap.Int("fields", len(result.Fields)),
		zap.Bool("xfa", result.IsXFA),
		zap.String("variant", string(result.XFAVariant)),
		zap.String("error_code", result.ErrorCode.String()))

	return result
}
