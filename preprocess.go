package phash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PixelGrid is a Size×Size luminance grid in [0,1], stored row-major.
// It is created per hash computation and never mutated after creation.
type PixelGrid struct {
	Size int
	Pix  []float64
}

func newPixelGrid(size int) *PixelGrid {
	return &PixelGrid{Size: size, Pix: make([]float64, size*size)}
}

// At returns the luminance at row y, column x.
func (g *PixelGrid) At(y, x int) float64 {
	return g.Pix[y*g.Size+x]
}

// Mean returns the average luminance of the grid.
func (g *PixelGrid) Mean() float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range g.Pix {
		sum += v
	}
	return sum / float64(len(g.Pix))
}

// decodeImage probes the dimensions first so oversized sources are rejected
// before their pixels are allocated, then decodes the full image.
func decodeImage(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, format, nil
}

// Preprocess decodes data and normalises it into a ResizedSize×ResizedSize
// luminance grid.
func (e *Engine) Preprocess(data []byte) (*PixelGrid, error) {
	img, format, err := decodeImage(data, e.cfg.MaxPixels)
	if err != nil {
		return nil, err
	}
	if e.cfg.AutoOrient {
		img = orient(img, ExtractOrientation(data, format))
	}
	return e.normalize(img)
}

// normalize runs the configured provider and checks its output shape.
func (e *Engine) normalize(img image.Image) (*PixelGrid, error) {
	grid, err := e.cfg.Provider.Luminance(img, e.cfg.ResizedSize)
	if err != nil {
		return nil, err
	}
	if grid == nil || grid.Size != e.cfg.ResizedSize || len(grid.Pix) != grid.Size*grid.Size {
		return nil, fmt.Errorf("%w: provider returned a malformed grid", ErrConversion)
	}
	return grid, nil
}
