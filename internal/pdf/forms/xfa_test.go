package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectXFA(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"xfa key", "<< /AcroForm << /XFA 12 0 R >> >>", true},
		{"xfa namespace prefix", "<xfa:datasets>", true},
		{"xfa namespace declaration", `<xdp:xdp xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/">`, true},
		{"template", `<template xmlns="http://www.xfa.org/schema/xfa-template/3.3/">`, true},
		{"foreground", "XFA Foreground", true},
		{"plain acroform", "<< /AcroForm << /Fields [] >> >>", false},
		{"empty", "", false},
		{"lowercase key", "/xfa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectXFA([]byte(tt.data)))
		})
	}
}

func TestClassifyXFA(t *testing.T) {
	tests := []struct {
		name string
		data string
		want XFAVariant
	}{
		{"dynamic render", "/XFA <dynamicRender>required</dynamicRender>", XFADynamic},
		{"subform", "<template xmlns=\"x\"><subform/></template>", XFADynamic},
		{"dynamic wins over hybrid", "/XFA <acroForm> <subform/>", XFADynamic},
		{"hybrid", "/XFA <acroForm>", XFAHybrid},
		{"acroform marker alone", "<acroForm>", XFAStatic},
		{"static", "/XFA", XFAStatic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyXFA([]byte(tt.data)))
		})
	}
}
