package provider

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format names a provider export layout
type Format string

const (
	FormatWideCSV  Format = "wide_csv"
	FormatTallCSV  Format = "tall_csv"
	FormatWideXLSX Format = "xlsx"
	FormatJSON     Format = "json"
)

// DetectFormat picks a layout from the file extension and, for CSV, the header
// line: a "provider,field,value" header means the long layout
func DetectFormat(path string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatWideXLSX
	case ".json":
		return FormatJSON
	}

	line, _, _ := bufio.NewReader(bytes.NewReader(head)).ReadLine()
	header := strings.ToLower(strings.ReplaceAll(string(bytes.TrimPrefix(line, []byte("\xef\xbb\xbf"))), " ", ""))
	if strings.HasPrefix(header, "provider,field,value") {
		return FormatTallCSV
	}
	return FormatWideCSV
}

// Parse decodes data in the given layout
func Parse(format Format, data []byte) (*Dataset, error) {
	switch format {
	case FormatWideCSV:
		return ParseWideCSV(bytes.NewReader(data))
	case FormatTallCSV:
		return ParseTallCSV(bytes.NewReader(data))
	case FormatWideXLSX:
		return ParseWideXLSX(bytes.NewReader(data))
	case FormatJSON:
		var ds Dataset
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("failed to decode provider JSON: %w", err)
		}
		return NewDataset(ds.Providers), nil
	default:
		return nil, fmt.Errorf("unsupported provider format: %s", format)
	}
}

// LoadFile reads and parses a provider export, detecting its layout
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open provider file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider file: %w", err)
	}
	return Parse(DetectFormat(path, data), data)
}
