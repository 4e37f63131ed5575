package phash

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"golang.org/x/image/bmp"
)

// makePNG encodes img as PNG.
func makePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// makeBMP encodes img as BMP, which decodes to the same pixels as PNG but
// with entirely different bytes.
func makeBMP(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}
	return buf.Bytes()
}

// makeJPEG returns a JPEG of img at maximum quality.
func makeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

// solidImage returns a w×h image filled with c.
func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// grayImage builds a 64×64 opaque gray image from f(x, y) in [0,1].
func grayImage(f func(x, y int) float64) *image.NRGBA {
	const side = 64
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y := range side {
		for x := range side {
			v := uint8(f(x, y)*255 + 0.5)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// diagonalImage is a two-axis luminance ramp with well separated DCT
// coefficients, so small perturbations cannot flip bits.
func diagonalImage() *image.NRGBA {
	return grayImage(func(x, y int) float64 {
		return 0.1 + 0.4*float64(x)/63 + 0.3*float64(y)/63
	})
}

// blobImage is a bright off-centre blob on a dim vertical ramp.
func blobImage() *image.NRGBA {
	return grayImage(func(x, y int) float64 {
		dx, dy := float64(x-20), float64(y-40)
		return 0.2 + 0.6*math.Exp(-(dx*dx+dy*dy)/300) + 0.1*float64(y)/63
	})
}

// jitter returns a copy of img with ±2 added to every 25th pixel (4% of them).
func jitter(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	w := img.Bounds().Dx()
	for n, i := 0, 0; i < w*img.Bounds().Dy(); n, i = n+1, i+25 {
		delta := 2
		if n%2 == 1 {
			delta = -2
		}
		x, y := i%w, i/w
		c := out.NRGBAAt(x, y)
		v := clampByte(int(c.R) + delta)
		out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
	}
	return out
}

// brighten returns a copy of img with every channel raised by delta.
func brighten(img *image.NRGBA, delta int) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := range 3 {
			out.Pix[i+c] = clampByte(int(out.Pix[i+c]) + delta)
		}
	}
	return out
}

func clampByte(v int) uint8 {
	return uint8(max(0, min(255, v)))
}

// newTestEngine returns an engine with the given config or fails the test.
func newTestEngine(t testing.TB, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}
