package forms

import (
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// The XFA scan is a heuristic: it looks for marker strings in the raw file
// bytes without parsing anything. Compressed XFA streams are only caught
// through the /XFA key, which is why the hybrid rule below keys on it. Keep it
// loose; real hybrid documents depend on that

var xfaMarkers = []string{
	"/XFA",
	"<xfa:",
	"xmlns:xfa",
	"<template xmlns",
	"XFA Foreground",
}

const (
	markerXFAKey = iota
	markerDynamicRender
	markerSubform
	markerAcroForm
)

var variantMarkers = []string{
	markerXFAKey:        "/XFA",
	markerDynamicRender: "<dynamicRender>",
	markerSubform:       "subform",
	markerAcroForm:      "<acroForm>",
}

type byteScanner struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

func (s *byteScanner) hits(data []byte) map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[int]bool)
	for _, i := range s.matcher.Match(data) {
		found[i] = true
	}
	return found
}

var (
	xfaScanner     = &byteScanner{matcher: ahocorasick.NewStringMatcher(xfaMarkers)}
	variantScanner = &byteScanner{matcher: ahocorasick.NewStringMatcher(variantMarkers)}
)

// DetectXFA reports whether the raw document bytes carry any XFA marker
func DetectXFA(data []byte) bool {
	return len(xfaScanner.hits(data)) > 0
}

// ClassifyXFA guesses the XFA flavor from the raw bytes: dynamic render or
// subform markers mean dynamic, an XFA template next to an AcroForm means
// hybrid, anything else is static
func ClassifyXFA(data []byte) XFAVariant {
	found := variantScanner.hits(data)
	switch {
	case found[markerDynamicRender] || found[markerSubform]:
		return XFADynamic
	case found[markerAcroForm] && found[markerXFAKey]:
		return XFAHybrid
	default:
		return XFAStatic
	}
}
