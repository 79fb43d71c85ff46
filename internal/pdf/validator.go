package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/observability"
)

// Validator provides input validation for PDF files
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidatePDFPath checks that a file path points to a readable PDF.
// An unusable source is a conversion failure, not an input error.
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ConversionError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ConversionError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ConversionError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ConversionError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.ConversionError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	// Large documents are allowed; every page is held in memory until saved.
	const maxSize = 100 * 1024 * 1024
	if info.Size() > maxSize {
		v.logger.Warn().Int("size_mb", int(info.Size()/(1024*1024))).
			Msg("PDF file is very large, consider lowering the DPI")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ConversionError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateDPI validates the rasterization resolution
func (v *Validator) ValidateDPI(dpi int) error {
	if dpi < 1 || dpi > 1200 {
		return domain.ValidationError(fmt.Sprintf("dpi must be between 1 and 1200, got %d", dpi), nil)
	}
	return nil
}
