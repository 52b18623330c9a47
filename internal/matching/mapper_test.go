package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/forms"
	"github.com/a3tai/mcp-pdf-filler/internal/provider"
)

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper(DefaultConfig())
	require.NoError(t, err)
	return m
}

func testRecord() provider.Record {
	return provider.NewRecord("Dr. Jane Doe",
		[2]string{"Phone Number", "555-0100"},
		[2]string{"NPI #", "1234567890"},
		[2]string{"Email", "jane@example.com"},
		[2]string{"Fax", ""},
		[2]string{"Board Certification Expiration Status", "Active"},
	)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Threshold: 0, Boost: 1}.Validate())
	assert.Error(t, Config{Threshold: -0.1, Boost: 0.85}.Validate())
	assert.Error(t, Config{Threshold: 0.5, Boost: 1.1}.Validate())

	_, err := NewMapper(Config{Threshold: 2})
	assert.Error(t, err)
}

func TestMapper_Score(t *testing.T) {
	m := newTestMapper(t)

	score, ok := m.Score("Phone", "Phone Number")
	assert.True(t, ok)
	assert.Equal(t, DefaultBoost, score, "shared category lifts containment to the boost")

	score, ok = m.Score("Phone Number", "Phone Number")
	assert.True(t, ok)
	assert.Equal(t, 1.0, score, "boost never lowers a score")

	score, ok = m.Score("Contact Email", "Phone Number")
	assert.False(t, ok)
	assert.Zero(t, score)

	score, ok = m.Score("Primary Board Certification", "Board Certification Expiration Status")
	assert.True(t, ok)
	assert.Zero(t, score)

	score, ok = m.Score("Medicare Provider Number", "Medicaid Provider Number")
	assert.True(t, ok)
	assert.Zero(t, score, "labels one word apart are not a match")
}

func TestMapper_Score_WordOverlap(t *testing.T) {
	m, err := NewMapper(Config{Threshold: DefaultThreshold, Boost: DefaultBoost, WordOverlap: true})
	require.NoError(t, err)

	score, ok := m.Score("Primary Board Certification", "Board Certification Expiration Status")
	assert.True(t, ok)
	assert.InDelta(t, 0.4, score, 1e-9)

	score, _ = m.Score("Medicare Provider Number", "Medicaid Provider Number")
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestMapper_MapField(t *testing.T) {
	m := newTestMapper(t)
	rec := testRecord()

	npi := m.MapField("NPI Number", rec)
	assert.True(t, npi.Matched())
	assert.Equal(t, "NPI #", npi.ProviderField)
	assert.Equal(t, "1234567890", npi.SuggestedValue)
	assert.Equal(t, DefaultBoost, npi.Confidence)

	email := m.MapField("Contact Email", rec)
	assert.Equal(t, "Email", email.ProviderField, "the veto keeps phone columns away from email fields")

	none := m.MapField("Primary Board Certification", rec)
	assert.False(t, none.Matched())
	assert.Empty(t, none.Candidate)
	assert.Zero(t, none.Confidence)

	medicare := m.MapField("Medicare Provider Number", provider.NewRecord("Dr. A",
		[2]string{"Medicaid Provider Number", "M-1"}))
	assert.False(t, medicare.Matched())

	clinic := m.MapField("Clinic Name", rec)
	assert.Equal(t, FieldMapping{PDFField: "Clinic Name"}, clinic)

	fax := m.MapField("Fax", rec)
	assert.NotEqual(t, "Fax", fax.ProviderField, "blank columns are never candidates")
}

func TestMapper_MapField_WordOverlap(t *testing.T) {
	m, err := NewMapper(Config{Threshold: DefaultThreshold, Boost: DefaultBoost, WordOverlap: true})
	require.NoError(t, err)

	low := m.MapField("Primary Board Certification", testRecord())
	assert.False(t, low.Matched())
	assert.Empty(t, low.SuggestedValue)
	assert.Equal(t, "Board Certification Expiration Status", low.Candidate)
	assert.InDelta(t, 0.4, low.Confidence, 1e-9)

	m, err = NewMapper(Config{Threshold: 0.4, Boost: DefaultBoost, WordOverlap: true})
	require.NoError(t, err)

	mapping := m.MapField("Primary Board Certification", testRecord())
	assert.True(t, mapping.Matched())
	assert.Equal(t, "Active", mapping.SuggestedValue)
}

func TestMapper_MapField_TieKeepsFirstColumn(t *testing.T) {
	m := newTestMapper(t)
	rec := provider.NewRecord("Dr. A",
		[2]string{"Work Phone", "1"},
		[2]string{"Cell Phone", "2"},
	)

	mapping := m.MapField("Phone", rec)
	assert.Equal(t, "Work Phone", mapping.ProviderField)
	assert.Equal(t, "1", mapping.SuggestedValue)
}

func TestMapper_Map(t *testing.T) {
	m := newTestMapper(t)
	fields := []forms.Field{
		{Name: "Clinic Name", Kind: forms.KindText},
		{Name: "Zebra", Kind: forms.KindText},
		{Name: "Phone", Kind: forms.KindText},
		{Name: "Phone Number", Kind: forms.KindText},
	}

	mappings := m.Map(fields, testRecord())
	require.Len(t, mappings, len(fields))

	var names []string
	for i, mp := range mappings {
		names = append(names, mp.PDFField)
		if i > 0 {
			assert.GreaterOrEqual(t, mappings[i-1].Confidence, mp.Confidence)
		}
	}
	assert.Equal(t, []string{"Phone Number", "Phone", "Clinic Name", "Zebra"}, names)
	assert.Empty(t, m.Map(nil, testRecord()))
}

func TestCoverageOf(t *testing.T) {
	rec := testRecord()
	mappings := []FieldMapping{
		{PDFField: "a", ProviderField: "Phone Number"},
		{PDFField: "b", ProviderField: "Fax"},
		{PDFField: "c"},
	}

	assert.Equal(t, Coverage{WithData: 1, MissingData: 1, Unmapped: 1, Percent: 33}, CoverageOf(mappings, rec))
	assert.Equal(t, Coverage{}, CoverageOf(nil, rec))
}

func TestConfidenceLabel(t *testing.T) {
	assert.Equal(t, "High", ConfidenceLabel(1))
	assert.Equal(t, "High", ConfidenceLabel(0.8))
	assert.Equal(t, "Medium", ConfidenceLabel(0.6))
	assert.Equal(t, "Medium", ConfidenceLabel(DefaultThreshold))
	assert.Equal(t, "Low", ConfidenceLabel(0.4))
}
