package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/observability"
)

// DefaultDPI keeps memory use moderate for multi-page documents
const DefaultDPI = 150

// Converter implements PDF rasterization using go-fitz
type Converter struct {
	validator *Validator
	logger    *observability.Logger
}

// NewConverter creates a new PDF converter instance
func NewConverter(logger *observability.Logger) *Converter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Converter{
		validator: NewValidator(logger),
		logger:    logger.WithComponent("rasterizer"),
	}
}

// Convert renders every page of a PDF to an in-memory bitmap, in document order.
// On any failure it returns a nil slice; callers treat that as nothing to save.
func (c *Converter) Convert(ctx context.Context, pdfPath string, dpi int) ([]domain.PageImage, error) {
	if err := c.validator.ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateDPI(dpi); err != nil {
		return nil, err
	}

	doc, err := open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ConversionError("PDF has no pages", nil)
	}

	c.logger.Debug().Str("path", pdfPath).Int("pages", pageCount).Int("dpi", dpi).Msg("Rasterizing PDF")

	images := make([]domain.PageImage, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, float64(dpi))
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to render page %d", pageNum+1), err)
		}

		images = append(images, domain.PageImage{Index: pageNum, Image: img})
	}

	return images, nil
}

// PageCount opens the PDF and reports its number of pages without rendering.
func (c *Converter) PageCount(pdfPath string) (int, error) {
	if err := c.validator.ValidatePDFPath(pdfPath); err != nil {
		return 0, err
	}

	doc, err := open(pdfPath)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

func open(pdfPath string) (*fitz.Document, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, domain.ConversionError("PDF is password protected", err)
		}
		return nil, domain.ConversionError("Failed to open PDF", err)
	}
	return doc, nil
}
