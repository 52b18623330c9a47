package forms

import (
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// FieldKind is the coarse type of an AcroForm field
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindCheckbox FieldKind = "checkbox"
	KindDropdown FieldKind = "dropdown"
	KindRadio    FieldKind = "radio"
	KindUnknown  FieldKind = "unknown"
)

// Fillable reports whether the filler knows how to write this kind
func (k FieldKind) Fillable() bool {
	switch k {
	case KindText, KindCheckbox, KindDropdown:
		return true
	default:
		return false
	}
}

// Field describes one terminal form field as found in the document
type Field struct {
	Name  string    `json:"name"`
	Kind  FieldKind `json:"type"`
	Value *string   `json:"value,omitempty"`
}

// CurrentValue returns the field's value, or "" when none was retrieved
func (f Field) CurrentValue() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}

// XFAVariant classifies an XFA form
type XFAVariant string

const (
	XFANone    XFAVariant = ""
	XFADynamic XFAVariant = "dynamic"
	XFAStatic  XFAVariant = "static"
	XFAHybrid  XFAVariant = "hybrid"
)

// Analysis is the outcome of inspecting a PDF form
type Analysis struct {
	Fields            []Field           `json:"fields"`
	IsXFA             bool              `json:"is_xfa"`
	HasFillableFields bool              `json:"has_fillable_fields"`
	XFAVariant        XFAVariant        `json:"xfa_variant,omitempty"`
	ErrorCode         pdferrors.Code    `json:"error_code,omitempty"`
	PageCount         int               `json:"page_count,omitempty"`
	KindCounts        map[FieldKind]int `json:"kind_counts,omitempty"`
}

// OK reports whether the analysis produced fields that can be mapped
func (a *Analysis) OK() bool {
	return a.ErrorCode == pdferrors.CodeNone
}

// Err returns the analysis failure as an error, or nil
func (a *Analysis) Err() error {
	if a.OK() {
		return nil
	}
	return pdferrors.New(a.ErrorCode)
}

// FieldNames returns the names of the analyzed fields in extraction order
func (a *Analysis) FieldNames() []string {
	names := make([]string, len(a.Fields))
	for i, f := range a.Fields {
		names[i] = f.Name
	}
	return names
}
