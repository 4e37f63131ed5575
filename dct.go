package phash

import (
	"fmt"
	"math"
)

// CoefficientBlock holds the retained low-frequency DCT-II coefficients of a
// PixelGrid, row-major: Coeffs[u*Size+v], u the vertical and v the horizontal
// frequency. Coeffs[0] is the DC term.
type CoefficientBlock struct {
	Size   int
	Coeffs []float64

	// Luminance is the mean luminance of the source grid. The encoder only
	// reads it for flat images, which have no AC structure to threshold.
	Luminance float64
}

// At returns the coefficient for frequencies (u, v).
func (b *CoefficientBlock) At(u, v int) float64 {
	return b.Coeffs[u*b.Size+v]
}

// dctTable holds the cosine basis for an n-point transform truncated to the
// first d frequencies. It is read-only after construction and shared by all
// goroutines of an Engine.
type dctTable struct {
	n, d     int
	additive bool
	cos      []float64 // cos[k*n+i] = cos(π(2i+1)k / 2n)
}

func newDCTTable(n, d int, additive bool) *dctTable {
	t := &dctTable{n: n, d: d, additive: additive, cos: make([]float64, d*n)}
	for k := range d {
		for i := range n {
			t.cos[k*n+i] = math.Cos(math.Pi * float64(2*i+1) * float64(k) / float64(2*n))
		}
	}
	return t
}

// scale applies the normalisation of one axis to a partial sum.
func (t *dctTable) scale(sum float64, k int) float64 {
	if k > 0 {
		return sum * math.Sqrt(2/float64(t.n))
	}
	if t.additive {
		return sum + math.Sqrt(1/float64(t.n))
	}
	return sum * math.Sqrt(1/float64(t.n))
}

// transform computes the d×d low-frequency block of the 2D DCT-II of g.
// The sum is evaluated separably, rows first, which equals the direct double
// sum up to floating-point rounding.
func (t *dctTable) transform(g *PixelGrid) *CoefficientBlock {
	n, d := t.n, t.d

	// rows[i*d+v] = Σ_j g(i,j)·cos(π(2j+1)v / 2n)
	rows := make([]float64, n*d)
	for i := range n {
		line := g.Pix[i*n : (i+1)*n]
		for v := range d {
			basis := t.cos[v*n : (v+1)*n]
			var sum float64
			for j, p := range line {
				sum += p * basis[j]
			}
			rows[i*d+v] = sum
		}
	}

	block := &CoefficientBlock{Size: d, Coeffs: make([]float64, d*d), Luminance: g.Mean()}
	for u := range d {
		basis := t.cos[u*n : (u+1)*n]
		for v := range d {
			var sum float64
			for i := range n {
				sum += basis[i] * rows[i*d+v]
			}
			block.Coeffs[u*d+v] = t.scale(t.scale(sum, u), v)
		}
	}
	return block
}

// Transform computes the DCTSize×DCTSize low-frequency coefficient block of grid.
func (e *Engine) Transform(grid *PixelGrid) (*CoefficientBlock, error) {
	if grid == nil || grid.Size != e.table.n || len(grid.Pix) != grid.Size*grid.Size {
		return nil, fmt.Errorf("%w: grid does not match resized size %d", ErrConfiguration, e.table.n)
	}
	return e.table.transform(grid), nil
}
