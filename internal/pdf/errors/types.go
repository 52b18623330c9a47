package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Code identifies a document-level failure. Codes are plain strings so callers
// can branch on them without matching Go error types
type Code string

const (
	CodeNone             Code = ""
	CodeXFAFormDetected  Code = "XFA_FORM_DETECTED"
	CodeNoFieldsDetected Code = "NO_FIELDS_DETECTED"
	CodePDFLoadError     Code = "PDF_LOAD_ERROR"
)

// String returns the wire form of the code
func (c Code) String() string {
	return string(c)
}

// IsRecoverable reports whether the caller can succeed by supplying another
// file. Every document-level code is, the operation itself never corrupts state
func (c Code) IsRecoverable() bool {
	switch c {
	case CodeXFAFormDetected, CodeNoFieldsDetected, CodePDFLoadError:
		return true
	default:
		return false
	}
}

// Message returns a short human-readable explanation of the code
func (c Code) Message() string {
	switch c {
	case CodeXFAFormDetected:
		return "This PDF uses XFA forms (common in government documents) which cannot be filled directly"
	case CodeNoFieldsDetected:
		return "No fillable form fields were found in this PDF"
	case CodePDFLoadError:
		return "The PDF could not be loaded; it may be corrupt or use unsupported encryption"
	default:
		return ""
	}
}

// Guidance returns what the user can do about the code
func (c Code) Guidance() string {
	switch c {
	case CodeXFAFormDetected:
		return "Open the PDF in Adobe Acrobat Pro and use File > Save As Other > Reader Extended PDF " +
			"or print it to PDF to convert the XFA form into a standard AcroForm, then upload the converted file. " +
			"Acrobat Reader users can print to a PDF printer; online converters work for non-sensitive forms."
	case CodeNoFieldsDetected:
		return "Make sure the PDF has interactive form fields. Scanned or flattened forms must be made " +
			"fillable first (for example with Acrobat's Prepare Form tool)."
	case CodePDFLoadError:
		return "Try re-saving the PDF from a viewer, remove password protection, or use a different copy of the form."
	default:
		return ""
	}
}

// FormError is a document-level failure carrying its code
type FormError struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// Error implements the error interface
func (e *FormError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *FormError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether retrying with a different file can succeed
func (e *FormError) Recoverable() bool {
	return e.Code.IsRecoverable()
}

// New creates a FormError with the code's default message
func New(code Code) *FormError {
	return &FormError{
		Code:      code,
		Message:   code.Message(),
		Timestamp: time.Now(),
	}
}

// Wrap creates a FormError caused by err
func Wrap(code Code, err error) *FormError {
	e := New(code)
	e.Err = err
	return e
}

// WithContext adds context to an existing FormError
func (e *FormError) WithContext(context string) *FormError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing FormError
func (e *FormError) WithFile(filePath string) *FormError {
	e.FilePath = filePath
	return e
}

// CodeOf extracts the code from err, or CodeNone when err carries none
func CodeOf(err error) Code {
	var fe *FormError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return CodeNone
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
