package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wideExport = `Name,Dr. Jane,Dr. John,Old Doc TERM>,Terminated Smith
,Doe MD,Roe DO,,
Notes,n1,,,
Phone Number,555-0100,555-0199,555-0000,555-1111
TX License,TX-1,,TX-9,
Blank Row,,,,
`

func TestParseWideCSV(t *testing.T) {
	ds, err := ParseWideCSV(strings.NewReader(wideExport))
	require.NoError(t, err)
	require.Len(t, ds.Providers, 2)

	jane := ds.Providers[0]
	assert.Equal(t, "Dr. Jane Doe MD", jane.Name)
	assert.Equal(t, []string{"Notes", "Phone Number", "TX License"}, jane.FieldNames())
	assert.Equal(t, "555-0100", jane.Value("Phone Number"))

	john := ds.Providers[1]
	assert.Equal(t, "Dr. John Roe DO", john.Name)
	assert.Equal(t, map[string]string{"Phone Number": "555-0199"}, john.Data)

	assert.Equal(t, []string{"Notes", "Phone Number", "TX License"}, ds.AllFields)
}

func TestParseWideCSV_RaggedRows(t *testing.T) {
	data := "Name,A,B,C\nAddress,1 Main\nPhone Number,,,555\n"

	ds, err := ParseWideCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, ds.Providers, 2)
	assert.Equal(t, "A", ds.Providers[0].Name)
	assert.Equal(t, "1 Main", ds.Providers[0].Value("Address"))
	assert.Equal(t, "C", ds.Providers[1].Name)
	assert.Equal(t, "555", ds.Providers[1].Value("Phone Number"))
}

func TestParseWideCSV_NoDataRows(t *testing.T) {
	_, err := ParseWideCSV(strings.NewReader("Name,A\nFoo,1\n"))
	assert.ErrorIs(t, err, ErrNoDataRows)

	_, err = ParseWideCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoDataRows)
}
