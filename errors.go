package phash

import (
	"context"
	"errors"
)

// Sentinel errors. Every error returned by this package wraps exactly one of
// them, so callers can branch with errors.Is or map an error with Kind.
var (
	ErrDecode        = errors.New("phash: decode failed")
	ErrConversion    = errors.New("phash: luminance conversion failed")
	ErrConfiguration = errors.New("phash: invalid configuration")
	ErrEncoding      = errors.New("phash: degenerate hash length")
	ErrRead          = errors.New("phash: source read failed")
	ErrPanic         = errors.New("phash: worker panic")
)

// ErrorKind classifies a per-source failure.
type ErrorKind int

const (
	KindUnknown       ErrorKind = iota
	KindDecode                  // malformed or unsupported image bytes
	KindConversion              // invalid pixel or channel data
	KindConfiguration           // invalid size parameters
	KindEncoding                // degenerate hash length
	KindRead                    // source provider could not deliver bytes
	KindPanic                   // worker recovered from a panic
	KindCancelled               // context cancelled before the source finished
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindConversion:
		return "conversion"
	case KindConfiguration:
		return "configuration"
	case KindEncoding:
		return "encoding"
	case KindRead:
		return "read"
	case KindPanic:
		return "panic"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Kind maps err to its ErrorKind. Unrecognised errors map to KindUnknown.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrConversion):
		return KindConversion
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrRead):
		return KindRead
	case errors.Is(err, ErrPanic):
		return KindPanic
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindUnknown
	}
}
