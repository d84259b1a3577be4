// Package bitmap holds decoded images as they travel between the decoder,
// the memory cache and the consumers.
package bitmap

import (
	"image"
	"sync/atomic"
)

// BytesPerPixel is the footprint used for sizing (RGBA, 8 bits per channel).
const BytesPerPixel = 4

// Bitmap is a decoded image with an explicit lifetime. Once Release is called
// the bitmap is no longer valid and caches drop it on the next lookup.
type Bitmap struct {
	img      image.Image
	size     int64
	released atomic.Bool
}

// New wraps img. Its size is width*height*BytesPerPixel.
func New(img image.Image) *Bitmap {
	b := &Bitmap{img: img}
	if img != nil {
		r := img.Bounds()
		b.size = int64(r.Dx()) * int64(r.Dy()) * BytesPerPixel
	}
	return b
}

func (b *Bitmap) Image() image.Image { return b.img }

func (b *Bitmap) Bounds() image.Rectangle {
	if b == nil || b.img == nil {
		return image.Rectangle{}
	}
	return b.img.Bounds()
}

// SizeBytes is the resident footprint used by byte-budgeted caches.
func (b *Bitmap) SizeBytes() int64 {
	if b == nil {
		return 0
	}
	return b.size
}

// Release marks the bitmap as no longer usable. Safe to call more than once.
func (b *Bitmap) Release() {
	if b != nil {
		b.released.Store(true)
	}
}

// Valid reports whether the bitmap can still be displayed: non-nil, not
// released and with a non-empty area.
func (b *Bitmap) Valid() bool {
	return b != nil && b.img != nil && !b.released.Load() && b.size > 0
}
