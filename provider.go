package phash

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// BT.601 luma weights. Every provider must use them or hashes stop being
// comparable across providers.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// ComputeProvider resizes an image to a size×size square and converts it to
// single-channel luminance. Implementations must be deterministic and safe
// for concurrent use.
type ComputeProvider interface {
	Luminance(img image.Image, size int) (*PixelGrid, error)
}

// DrawProvider is the default portable provider. It scales with the bilinear
// kernel from golang.org/x/image/draw into a 16-bit RGBA buffer.
type DrawProvider struct{}

// Luminance implements ComputeProvider.
func (DrawProvider) Luminance(img image.Image, size int) (*PixelGrid, error) {
	if err := checkImage(img, size); err != nil {
		return nil, err
	}
	dst := image.NewRGBA64(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return gridFrom(dst, size), nil
}

// ResizeProvider scales with the bilinear filter from github.com/nfnt/resize.
// Tokens are close to, but not bit-identical with, DrawProvider tokens.
type ResizeProvider struct{}

// Luminance implements ComputeProvider.
func (ResizeProvider) Luminance(img image.Image, size int) (*PixelGrid, error) {
	if err := checkImage(img, size); err != nil {
		return nil, err
	}
	scaled := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := scaled.Bounds()
	if b.Dx() != size || b.Dy() != size {
		return nil, fmt.Errorf("%w: resize produced %dx%d, want %dx%d", ErrConversion, b.Dx(), b.Dy(), size, size)
	}
	return gridFrom(scaled, size), nil
}

// checkImage rejects images that carry no usable colour data.
func checkImage(img image.Image, size int) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrConversion)
	}
	if img.ColorModel() == nil {
		return fmt.Errorf("%w: image has no colour model", ErrConversion)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty bounds %v", ErrConversion, b)
	}
	if size <= 0 {
		return fmt.Errorf("%w: target size %d", ErrConfiguration, size)
	}
	return nil
}

// Luma returns the BT.601 luminance of alpha-premultiplied channels in [0,1].
func Luma(r, g, b float64) float64 {
	return lumaR*r + lumaG*g + lumaB*b
}

// gridFrom reads a size×size luminance grid starting at img.Bounds().Min.
func gridFrom(img image.Image, size int) *PixelGrid {
	const maxChannel = 0xffff
	grid := newPixelGrid(size)
	origin := img.Bounds().Min

	if src, ok := img.(image.RGBA64Image); ok {
		for y := range size {
			for x := range size {
				c := src.RGBA64At(origin.X+x, origin.Y+y)
				grid.Pix[y*size+x] = Luma(float64(c.R)/maxChannel, float64(c.G)/maxChannel, float64(c.B)/maxChannel)
			}
		}
		return grid
	}

	for y := range size {
		for x := range size {
			r, g, b, _ := img.At(origin.X+x, origin.Y+y).RGBA()
			grid.Pix[y*size+x] = Luma(float64(r)/maxChannel, float64(g)/maxChannel, float64(b)/maxChannel)
		}
	}
	return grid
}
