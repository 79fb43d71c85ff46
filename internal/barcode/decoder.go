// Package barcode reads one- and two-dimensional barcodes from page images.
package barcode

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/observability"
)

// Symbology is a barcode standard the decoder tries.
type Symbology struct {
	Name      string
	newReader func() gozxing.Reader
}

// Supported symbologies in the order they are tried.
var (
	QRCode  = Symbology{"QR_CODE", func() gozxing.Reader { return qrcode.NewQRCodeReader() }}
	Code128 = Symbology{"CODE_128", func() gozxing.Reader { return oned.NewCode128Reader() }}
	EAN13   = Symbology{"EAN_13", func() gozxing.Reader { return oned.NewEAN13Reader() }}
	EAN8    = Symbology{"EAN_8", func() gozxing.Reader { return oned.NewEAN8Reader() }}
	UPCA    = Symbology{"UPC_A", func() gozxing.Reader { return oned.NewUPCAReader() }}
	UPCE    = Symbology{"UPC_E", func() gozxing.Reader { return oned.NewUPCEReader() }}
	Code39  = Symbology{"CODE_39", func() gozxing.Reader { return oned.NewCode39Reader() }}
)

// DefaultSymbologies is the fixed recognition order.
var DefaultSymbologies = []Symbology{QRCode, Code128, EAN13, EAN8, UPCA, UPCE, Code39}

// Decoder tries each symbology in order and returns the first match.
// Readers are created per call so a Decoder is safe for concurrent use.
type Decoder struct {
	symbologies []Symbology
	hints       map[gozxing.DecodeHintType]interface{}
	logger      *observability.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithTryHarder toggles the slower, more thorough scan.
func WithTryHarder(on bool) Option {
	return func(d *Decoder) {
		if on {
			d.hints[gozxing.DecodeHintType_TRY_HARDER] = true
		} else {
			delete(d.hints, gozxing.DecodeHintType_TRY_HARDER)
		}
	}
}

// WithSymbologies replaces the recognition order.
func WithSymbologies(s ...Symbology) Option {
	return func(d *Decoder) {
		d.symbologies = s
	}
}

// WithLogger sets the logger used for per-reader diagnostics.
func WithLogger(l *observability.Logger) Option {
	return func(d *Decoder) {
		d.logger = l.WithComponent("decoder")
	}
}

// NewDecoder creates a decoder for DefaultSymbologies with try-harder enabled.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		symbologies: DefaultSymbologies,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
		logger: observability.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode returns the first barcode found, or nil when none of the symbologies match.
// Reader misses (not found, checksum, format) are not errors.
func (d *Decoder) Decode(img image.Image) (*domain.DecodeResult, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, domain.DecodeError("Failed to binarize image", err)
	}

	for _, sym := range d.symbologies {
		result, err := sym.newReader().Decode(bmp, d.hints)
		if err != nil {
			d.logger.Debug().Str("symbology", sym.Name).Err(err).Msg("No match")
			continue
		}
		return &domain.DecodeResult{Text: result.GetText(), Format: sym.Name}, nil
	}

	return nil, nil
}
