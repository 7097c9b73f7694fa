// Package sizing bounds enhancement cost with deterministic pre- and
// post-shaping transforms around the opaque enhancer call.
package sizing

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrDegenerateImage is returned when capping an extreme-aspect input
// floors a dimension to zero. Resampling such an image cannot honor the
// pixel cap, so it is refused instead.
var ErrDegenerateImage = errors.New("image dimensions too extreme to resize")

// EnhancerFactor is the fixed upscale factor the enhancer applies to its
// input: the restored image comes back at exactly 2x the pre-shaped
// dimensions.
const EnhancerFactor = 2

// Policy holds the process-wide sizing constants. They never change per
// request.
type Policy struct {
	// MaxInputPixels caps w*h before enhancement, bounding worst-case cost
	// independent of uploaded resolution.
	MaxInputPixels int
	// MinHeight is the height below which face detection gets unreliable;
	// shorter inputs are pre-upsampled 2x.
	MinHeight int
}

// PreShape applies the two input rules in fixed order: cap the pixel
// count first (area-average downscale, dimensions floored), then 2x
// Lanczos upsample if the result is still shorter than MinHeight. A
// huge-but-short image is first capped, then re-upsampled.
//
// An image already under the cap and at or above MinHeight is returned
// unchanged. A sliver so extreme that capping floors one side to zero is
// rejected with ErrDegenerateImage: a zero dimension would make the
// resampler preserve aspect ratio instead, silently busting the cap.
func (p Policy) PreShape(img image.Image) (image.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if pixels := w * h; pixels > p.MaxInputPixels {
		ratio := math.Sqrt(float64(p.MaxInputPixels) / float64(pixels))
		w = int(float64(w) * ratio)
		h = int(float64(h) * ratio)
		if w < 1 || h < 1 {
			return nil, ErrDegenerateImage
		}
		img = imaging.Resize(img, w, h, imaging.Box)
	}

	if h < p.MinHeight {
		img = imaging.Resize(img, w*2, h*2, imaging.Lanczos)
	}

	return img, nil
}

// PostShape resizes the enhancer output to the caller's requested scale,
// relative to the pre-shaped dimensions. The enhancer already delivers
// EnhancerFactor, so that scale passes through untouched; otherwise the
// net adjustment uses Lanczos when growing and area averaging when
// shrinking.
func PostShape(enhanced image.Image, preWidth, preHeight, scale int) image.Image {
	if scale == EnhancerFactor {
		return enhanced
	}

	targetW := preWidth * scale
	targetH := preHeight * scale

	filter := imaging.Box
	if scale > EnhancerFactor {
		filter = imaging.Lanczos
	}
	return imaging.Resize(enhanced, targetW, targetH, filter)
}

// ValidScale reports whether a requested final scale is supported.
func ValidScale(scale int) bool {
	return scale == 2 || scale == 4
}
