// Package testutil builds synthetic pages and documents for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/stretchr/testify/require"
)

// Page dimensions roughly matching a small scan.
const (
	PageWidth  = 420
	PageHeight = 560
)

// BlankPage returns a white page.
func BlankPage() *image.NRGBA {
	return imaging.New(PageWidth, PageHeight, color.White)
}

// QRPage returns a white page with a QR code encoding text.
func QRPage(t testing.TB, text string) *image.NRGBA {
	t.Helper()
	code, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)
	return imaging.Paste(BlankPage(), code, image.Pt(100, 120))
}

// Code128Page returns a white page with a Code 128 barcode encoding text.
func Code128Page(t testing.TB, text string) *image.NRGBA {
	t.Helper()
	code, err := oned.NewCode128Writer().Encode(text, gozxing.BarcodeFormat_CODE_128, 320, 90, nil)
	require.NoError(t, err)
	return imaging.Paste(BlankPage(), code, image.Pt(50, 200))
}

// EAN13Page returns a white page with an EAN-13 barcode for digits.
func EAN13Page(t testing.TB, digits string) *image.NRGBA {
	t.Helper()
	return onedPage(t, oned.NewEAN13Writer(), gozxing.BarcodeFormat_EAN_13, digits, 300)
}

// EAN8Page returns a white page with an EAN-8 barcode for digits.
func EAN8Page(t testing.TB, digits string) *image.NRGBA {
	t.Helper()
	return onedPage(t, oned.NewEAN8Writer(), gozxing.BarcodeFormat_EAN_8, digits, 240)
}

// UPCAPage returns a white page with a UPC-A barcode for digits.
func UPCAPage(t testing.TB, digits string) *image.NRGBA {
	t.Helper()
	return onedPage(t, oned.NewUPCAWriter(), gozxing.BarcodeFormat_UPC_A, digits, 300)
}

// UPCEPage returns a white page with a UPC-E barcode for digits.
func UPCEPage(t testing.TB, digits string) *image.NRGBA {
	t.Helper()
	return onedPage(t, oned.NewUPCEWriter(), gozxing.BarcodeFormat_UPC_E, digits, 220)
}

// Code39Page returns a white page with a Code 39 barcode encoding text.
func Code39Page(t testing.TB, text string) *image.NRGBA {
	t.Helper()
	return onedPage(t, oned.NewCode39Writer(), gozxing.BarcodeFormat_CODE_39, text, 340)
}

func onedPage(t testing.TB, w gozxing.Writer, format gozxing.BarcodeFormat, text string, width int) *image.NRGBA {
	t.Helper()
	code, err := w.Encode(text, format, width, 100, nil)
	require.NoError(t, err)
	return imaging.Paste(BlankPage(), code, image.Pt((PageWidth-width)/2, 200))
}

// Pages wraps images as an ordered page sequence.
func Pages(images ...image.Image) []domain.PageImage {
	pages := make([]domain.PageImage, len(images))
	for i, img := range images {
		pages[i] = domain.PageImage{Index: i, Image: img}
	}
	return pages
}

// pdfBuilder writes numbered objects and the cross-reference table of a
// minimal uncompressed PDF.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets []int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

func (b *pdfBuilder) obj(body string) {
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", len(b.offsets), body)
}

func (b *pdfBuilder) write(t testing.TB, path string) string {
	t.Helper()
	xref := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", len(b.offsets)+1)
	for _, off := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.offsets)+1, xref)

	require.NoError(t, os.WriteFile(path, b.buf.Bytes(), 0644))
	return path
}

func pageKids(first, step, pages int) string {
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", first+i*step)
	}
	return strings.Join(kids, " ")
}

// WriteBlankPDF writes a minimal PDF with the given number of 1x1 inch pages
// and returns its path.
func WriteBlankPDF(t testing.TB, dir string, pages int) string {
	t.Helper()

	b := newPDFBuilder()
	b.obj("<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", pageKids(3, 1, pages), pages))
	for i := 0; i < pages; i++ {
		b.obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 72 72] >>")
	}

	return b.write(t, filepath.Join(dir, fmt.Sprintf("blank-%d.pdf", pages)))
}

// WriteImagePDF writes a PDF with one page per image. Each page measures one
// point per pixel and shows the image in grayscale, so rendering at 72 dpi
// gives back the original dimensions.
func WriteImagePDF(t testing.TB, dir string, images ...image.Image) string {
	t.Helper()

	b := newPDFBuilder()
	b.obj("<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", pageKids(3, 3, len(images)), len(images)))

	for i, img := range images {
		page := 3 + i*3
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", w, h)

		b.obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>",
			w, h, page+2, page+1))
		b.obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

		pix := grayPixels(img)
		b.obj(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream",
			w, h, len(pix), pix))
	}

	return b.write(t, filepath.Join(dir, fmt.Sprintf("pages-%d.pdf", len(images))))
}

func grayPixels(img image.Image) []byte {
	bounds := img.Bounds()
	pix := make([]byte, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pix = append(pix, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return pix
}
