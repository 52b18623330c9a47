package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Validator checks input files and verifies filled output
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new validator with the specified size limit
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ReadPDF validates a form file and returns its bytes. The content itself is
// not parsed here; the analyzer reports structural problems as error codes
func (v *Validator) ReadPDF(filePath string) ([]byte, error) {
	if err := v.checkFile(filePath, ".pdf"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	return data, nil
}

// CheckProviderFile validates a provider export before import
func (v *Validator) CheckProviderFile(filePath string) error {
	return v.checkFile(filePath, ".csv", ".xlsx", ".xlsm", ".json")
}

func (v *Validator) checkFile(filePath string, extensions ...string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !hasExtension(filePath, extensions) {
		return fmt.Errorf("unsupported file type %s (expected %s)", filePath, strings.Join(extensions, ", "))
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}

func hasExtension(filePath string, extensions []string) bool {
	lower := strings.ToLower(filePath)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Verify re-opens filled output with an independent reader and returns its
// page count. A failure does not invalidate the output, it only means the
// second reader could not parse it
func (v *Validator) Verify(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("output is not readable: %w", err)
	}

	pages = reader.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("output has no pages")
	}
	return pages, nil
}
