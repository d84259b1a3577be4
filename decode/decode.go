// Package decode turns fetched or stored bytes into bitmaps, down-sampling
// large images so their resident size stays bounded.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/unkn0wn-root/imgload/bitmap"
)

// DefaultMaxPixels caps the source resolution Image will decode, about
// 256 MiB of RGBA.
const DefaultMaxPixels = 64 << 20

var (
	ErrEmpty    = errors.New("decode: empty payload")
	ErrTooLarge = errors.New("decode: payload exceeds limit")
)

// Decoder must be safe for concurrent use.
type Decoder interface {
	// Decode returns a bitmap no larger than roughly maxW x maxH. A zero or
	// negative bound disables down-sampling on that axis.
	Decode(b []byte, maxW, maxH int) (*bitmap.Bitmap, error)
}

// Image decodes any format registered with the image package (png, jpeg,
// gif, bmp and webp are linked in).
type Image struct {
	// Interp scales down-sampled images. Defaults to draw.ApproxBiLinear.
	Interp draw.Interpolator
	// MaxPixels rejects sources whose width*height exceeds it before any
	// pixel is decoded. Zero means DefaultMaxPixels, negative means no cap.
	MaxPixels int
}

var _ Decoder = Image{}

func (d Image) Decode(b []byte, maxW, maxH int) (*bitmap.Bitmap, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode: config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode: %s has empty bounds: %w", format, ErrEmpty)
	}
	if limit := d.maxPixels(); limit > 0 && int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, fmt.Errorf("%w: %s is %dx%d, over %d pixels", ErrTooLarge, format, cfg.Width, cfg.Height, limit)
	}

	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode: %s: %w", format, err)
	}

	ss := SampleSize(cfg.Width, cfg.Height, maxW, maxH)
	if ss > 1 {
		img = d.scale(img, max(cfg.Width/ss, 1), max(cfg.Height/ss, 1))
	}

	bmp := bitmap.New(img)
	if !bmp.Valid() {
		return nil, ErrEmpty
	}
	return bmp, nil
}

func (d Image) maxPixels() int64 {
	if d.MaxPixels == 0 {
		return DefaultMaxPixels
	}
	return int64(d.MaxPixels)
}

func (d Image) scale(src image.Image, w, h int) image.Image {
	interp := d.Interp
	if interp == nil {
		interp = draw.ApproxBiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SampleSize returns the integer factor both dimensions are divided by.
// When either dimension exceeds its bound the factor is the rounded ratio of
// the shorter side to its bound, never less than 1.
func SampleSize(w, h, maxW, maxH int) int {
	if maxW <= 0 || maxH <= 0 {
		return 1
	}
	ss := 1
	if h > maxH || w > maxW {
		if w > h {
			ss = int(math.Round(float64(h) / float64(maxH)))
		} else {
			ss = int(math.Round(float64(w) / float64(maxW)))
		}
	}
	return max(ss, 1)
}

// Limit rejects payloads over MaxBytes before handing them to Inner.
type Limit struct {
	Inner    Decoder
	MaxBytes int
}

func (l Limit) Decode(b []byte, maxW, maxH int) (*bitmap.Bitmap, error) {
	if l.MaxBytes > 0 && len(b) > l.MaxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), l.MaxBytes)
	}
	return l.Inner.Decode(b, maxW, maxH)
}
