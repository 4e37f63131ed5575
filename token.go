package phash

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strings"

	"github.com/corona10/goimagehash"
)

// noiseFloor is the magnitude below which a coefficient is treated as zero.
// Flat regions leave ±1e-16 residue whose sign depends on rounding, not content.
const noiseFloor = 1e-9

// flatLevels is the number of luminance levels encoded for flat images.
const flatLevels = 255

// HashToken is a fixed-length bit string. Bit 0 is the most significant bit of
// the integer rendered by String and Hex.
type HashToken struct {
	n     int
	words []uint64 // bit i lives at words[i/64], bit 63-i%64
}

func newToken(n int) HashToken {
	return HashToken{n: n, words: make([]uint64, (n+63)/64)}
}

func (t HashToken) set(i int) {
	t.words[i/64] |= 1 << (63 - uint(i%64))
}

// Len returns the number of bits in the token.
func (t HashToken) Len() int {
	return t.n
}

// IsZero reports whether t is the zero value (no bits at all).
func (t HashToken) IsZero() bool {
	return t.n == 0
}

// Bit reports whether bit i is set.
func (t HashToken) Bit(i int) bool {
	return t.words[i/64]&(1<<(63-uint(i%64))) != 0
}

// Bits returns the raw bit string, e.g. "0110…", of length Len().
func (t HashToken) Bits() string {
	var sb strings.Builder
	sb.Grow(t.n)
	for i := range t.n {
		if t.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Int returns the bit string interpreted as an unsigned big-endian integer.
func (t HashToken) Int() *big.Int {
	z := new(big.Int)
	for i := range t.n {
		z.Lsh(z, 1)
		if t.Bit(i) {
			z.SetBit(z, 0, 1)
		}
	}
	return z
}

// String returns the canonical base-36 text of the token.
func (t HashToken) String() string {
	return t.Int().Text(36)
}

// Hex returns the token in hexadecimal, zero-padded to ceil(Len/4) digits.
func (t HashToken) Hex() string {
	s := t.Int().Text(16)
	if pad := (t.n+3)/4 - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

// Equal reports whether both tokens hold the same bits.
func (t HashToken) Equal(o HashToken) bool {
	if t.n != o.n {
		return false
	}
	for i, w := range t.words {
		if o.words[i] != w {
			return false
		}
	}
	return true
}

// ExtImageHash exposes the token as a goimagehash extended perceptual hash.
func (t HashToken) ExtImageHash() *goimagehash.ExtImageHash {
	words := make([]uint64, len(t.words))
	copy(words, t.words)
	return goimagehash.NewExtImageHash(words, goimagehash.PHash, t.n)
}

// ImageHash converts a 64-bit token to a goimagehash.ImageHash so it can be
// compared with hashes produced by that library's tooling.
func (t HashToken) ImageHash() (*goimagehash.ImageHash, error) {
	if t.n != 64 {
		return nil, fmt.Errorf("%w: token has %d bits, want 64", ErrEncoding, t.n)
	}
	return goimagehash.NewImageHash(t.words[0], goimagehash.PHash), nil
}

// Distance returns the Hamming distance between two tokens of equal length.
func (t HashToken) Distance(o HashToken) (int, error) {
	d, err := t.ExtImageHash().Distance(o.ExtImageHash())
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return d, nil
}

// OnesCount returns the number of set bits.
func (t HashToken) OnesCount() int {
	var c int
	for _, w := range t.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// ParseToken decodes the base-36 text produced by String back into an n-bit token.
func ParseToken(s string, n int) (HashToken, error) {
	if n <= 0 {
		return HashToken{}, fmt.Errorf("%w: token length %d", ErrEncoding, n)
	}
	z, ok := new(big.Int).SetString(strings.ToLower(s), 36)
	if !ok || z.Sign() < 0 {
		return HashToken{}, fmt.Errorf("%w: invalid base-36 token %q", ErrEncoding, s)
	}
	if z.BitLen() > n {
		return HashToken{}, fmt.Errorf("%w: token %q needs %d bits, have %d", ErrEncoding, s, z.BitLen(), n)
	}
	t := newToken(n)
	for i := range n {
		if z.Bit(n-1-i) == 1 {
			t.set(i)
		}
	}
	return t, nil
}

// Encode thresholds the coefficients of block against their mean, with the DC
// term zeroed first, and packs one bit per coefficient in row-major order.
func Encode(block *CoefficientBlock) (HashToken, error) {
	if block == nil || block.Size <= 0 {
		return HashToken{}, fmt.Errorf("%w: empty coefficient block", ErrEncoding)
	}
	n := block.Size * block.Size
	if len(block.Coeffs) != n {
		return HashToken{}, fmt.Errorf("%w: block has %d coefficients, want %d", ErrEncoding, len(block.Coeffs), n)
	}

	vals := make([]float64, n)
	flat := true
	for i, c := range block.Coeffs {
		if i == 0 || math.Abs(c) < noiseFloor {
			continue
		}
		vals[i] = c
		flat = false
	}
	if flat {
		return flatToken(n, block.Luminance), nil
	}

	var sum float64
	for _, c := range vals {
		sum += c
	}
	mean := sum / float64(n)

	t := newToken(n)
	for i, c := range vals {
		if c > mean {
			t.set(i)
		}
	}
	return t, nil
}

// flatToken encodes the 8-bit mean luminance in the lowest bits, so solid
// fills of different brightness get different tokens.
func flatToken(n int, luminance float64) HashToken {
	level := uint64(math.Round(math.Max(0, math.Min(1, luminance)) * flatLevels))
	width := 8
	if n < width {
		level >>= uint(width - n)
		width = n
	}
	t := newToken(n)
	for k := range width {
		if level&(1<<uint(width-1-k)) != 0 {
			t.set(n - width + k)
		}
	}
	return t
}
