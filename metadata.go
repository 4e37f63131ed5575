package phash

import (
	"bytes"
	"image"

	"github.com/bep/imagemeta"
	"github.com/disintegration/imaging"
)

// OrientationNormal is the EXIF orientation of an image that needs no transform.
const OrientationNormal = 1

// metaFormats maps image.Decode format names to imagemeta formats.
// Formats missing here carry no orientation we can read.
var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"tiff": imagemeta.TIFF,
	"webp": imagemeta.WebP,
}

// ExtractOrientation returns the EXIF Orientation (1..8) stored in data.
// format is the name reported by image.Decode.
// Returns OrientationNormal if the tag is absent or cannot be parsed.
// Graceful degradation: never returns an error.
func ExtractOrientation(data []byte, format string) int {
	imgFormat, ok := metaFormats[format]
	if len(data) == 0 || !ok {
		return OrientationNormal
	}

	orientation := OrientationNormal
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imgFormat,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF && ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := tagValueInt(ti.Value); ok && v >= 1 && v <= 8 {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return OrientationNormal
	}
	return orientation
}

// tagValueInt extracts an integer from a tag value.
// EXIF SHORT values usually arrive as uint16, but decoders differ.
func tagValueInt(v any) (int, bool) {
	switch val := v.(type) {
	case uint16:
		return int(val), true
	case uint32:
		return int(val), true
	case uint8:
		return int(val), true
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case []uint16:
		if len(val) > 0 {
			return int(val[0]), true
		}
	case []any:
		if len(val) > 0 {
			return tagValueInt(val[0])
		}
	}
	return 0, false
}

// orient applies an EXIF orientation so the result is displayed upright.
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
