// Package enhance prepares rasterized pages for barcode recognition.
package enhance

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Fixed enhancement chain parameters.
const (
	ContrastFactor   = 1.5
	SharpnessFactor  = 1.5
	ScaleFactor      = 1.2
	BrightnessFactor = 1.1
)

// smoothKernel is the 3x3 smoothing filter used as the sharpness baseline.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// Enhancer applies grayscale, contrast, sharpness, upscale and brightness, in that order.
type Enhancer struct{}

// New creates an Enhancer.
func New() *Enhancer {
	return &Enhancer{}
}

// Enhance returns a new image; the input is not modified.
// Output dimensions are int(w*1.2) x int(h*1.2).
func (e *Enhancer) Enhance(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = Contrast(out, ContrastFactor)
	out = Sharpness(out, SharpnessFactor)

	b := out.Bounds()
	width := int(float64(b.Dx()) * ScaleFactor)
	height := int(float64(b.Dy()) * ScaleFactor)
	out = imaging.Resize(out, width, height, imaging.Lanczos)

	return Brightness(out, BrightnessFactor)
}

// Contrast scales each channel away from the image's mean gray level.
// A factor of 1 returns an identical image, 0 a flat gray one.
func Contrast(img *image.NRGBA, factor float64) *image.NRGBA {
	mean := meanLuminance(img)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: blend(mean, float64(c.R), factor),
			G: blend(mean, float64(c.G), factor),
			B: blend(mean, float64(c.B), factor),
			A: c.A,
		}
	})
}

// Sharpness extrapolates each pixel away from a smoothed copy of the image.
// Border pixels are left as they are.
func Sharpness(img *image.NRGBA, factor float64) *image.NRGBA {
	smooth := imaging.Convolve3x3(img, smoothKernel, &imaging.ConvolveOptions{Normalize: true})
	out := imaging.Clone(img)

	w, h := out.Rect.Dx(), out.Rect.Dy()
	for y := 1; y < h-1; y++ {
		row := y * out.Stride
		for x := 1; x < w-1; x++ {
			i := row + x*4
			for ch := 0; ch < 3; ch++ {
				out.Pix[i+ch] = blend(float64(smooth.Pix[i+ch]), float64(img.Pix[i+ch]), factor)
			}
		}
	}
	return out
}

// Brightness multiplies every channel by factor.
func Brightness(img *image.NRGBA, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: blend(0, float64(c.R), factor),
			G: blend(0, float64(c.G), factor),
			B: blend(0, float64(c.B), factor),
			A: c.A,
		}
	})
}

// blend interpolates from base toward v by factor and clamps to a byte.
func blend(base, v, factor float64) uint8 {
	out := math.Round(base + factor*(v-base))
	if out < 0 {
		return 0
	}
	if out > 255 {
		return 255
	}
	return uint8(out)
}

func meanLuminance(img *image.NRGBA) float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sum float64
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			sum += 0.299*float64(img.Pix[i]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
		}
	}
	return math.Round(sum / float64(w*h))
}
