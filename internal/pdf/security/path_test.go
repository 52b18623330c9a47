package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathValidator(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		wantError bool
	}{
		{name: "valid directory", dir: t.TempDir()},
		{name: "empty directory", dir: "", wantError: true},
		{name: "non-existent directory", dir: "/non/existent/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewPathValidator(tt.dir)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if validator == nil {
				t.Error("Expected validator but got nil")
			}
		})
	}
}

func TestPathValidator_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "forms")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{name: "file in root", path: filepath.Join(tempDir, "form.pdf")},
		{name: "file in subdirectory", path: filepath.Join(subDir, "form.pdf")},
		{name: "root itself", path: tempDir},
		{name: "parent traversal", path: filepath.Join(subDir, "..", "..", "etc", "passwd"), wantError: true},
		{name: "outside", path: "/etc/passwd", wantError: true},
		{name: "sibling prefix", path: tempDir + "-other/form.pdf", wantError: true},
		{name: "empty", path: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidatePath(tt.path)
			if tt.wantError && err == nil {
				t.Errorf("Expected error for %s", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("Unexpected error for %s: %v", tt.path, err)
			}
		})
	}
}

func TestPathValidator_ValidatePath_MissingRoot(t *testing.T) {
	validator, err := NewPathValidator(filepath.Join(t.TempDir(), "not-created"))
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := validator.ValidatePath("/anywhere/form.pdf"); err != nil {
		t.Errorf("Expected no confinement before the directory exists, got %v", err)
	}
}

func TestPathValidator_Symlink(t *testing.T) {
	tempDir := t.TempDir()
	outside := t.TempDir()

	target := filepath.Join(outside, "secret.pdf")
	if err := os.WriteFile(target, []byte("%PDF-1.7"), 0o600); err != nil {
		t.Fatalf("Failed to write target: %v", err)
	}

	link := filepath.Join(tempDir, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	ok, err := validator.IsPathWithinDirectory(link)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected symlink pointing outside the directory to be rejected")
	}
}

func TestPathValidator_Resolve(t *testing.T) {
	tempDir := t.TempDir()
	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		want      string
		wantError bool
	}{
		{name: "relative", path: "form.pdf", want: filepath.Join(tempDir, "form.pdf")},
		{name: "absolute", path: filepath.Join(tempDir, "a", "b.pdf"), want: filepath.Join(tempDir, "a", "b.pdf")},
		{name: "null bytes removed", path: "fo\x00rm.pdf", want: filepath.Join(tempDir, "form.pdf")},
		{name: "escapes", path: "../outside.pdf", wantError: true},
		{name: "blank", path: "  ", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.Resolve(tt.path)
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathValidator_ValidateDirectory(t *testing.T) {
	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "form.pdf")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := validator.ValidateDirectory(tempDir); err != nil {
		t.Errorf("Unexpected error for root: %v", err)
	}
	if err := validator.ValidateDirectory(filepath.Join(tempDir, "later")); err != nil {
		t.Errorf("Unexpected error for missing subdirectory: %v", err)
	}
	if err := validator.ValidateDirectory(file); err == nil {
		t.Error("Expected error for a file")
	}
	if err := validator.ValidateDirectory(os.TempDir()); err == nil {
		t.Error("Expected error for a directory outside the root")
	}
}
