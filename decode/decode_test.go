package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0x80, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSampleSize(t *testing.T) {
	cases := []struct {
		w, h, mw, mh, want int
	}{
		{100, 100, 1024, 1024, 1},
		{2048, 2048, 1024, 1024, 2},
		{4000, 3000, 1024, 1024, 3}, // landscape: round(3000/1024)
		{3000, 4000, 1024, 1024, 3}, // portrait: round(3000/1024)
		{2000, 100, 1024, 1024, 1},  // round(100/1024) = 0, clamped
		{5000, 5000, 0, 0, 1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SampleSize(tc.w, tc.h, tc.mw, tc.mh), "%+v", tc)
	}
}

func TestDecodeKeepsSmallImages(t *testing.T) {
	b, err := Image{}.Decode(pngBytes(t, 16, 8), 1024, 1024)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 16, 8), b.Bounds())
	require.EqualValues(t, 16*8*4, b.SizeBytes())
}

func TestDecodeDownsamples(t *testing.T) {
	b, err := Image{}.Decode(pngBytes(t, 64, 64), 16, 16)
	require.NoError(t, err)
	require.Equal(t, 16, b.Bounds().Dx())
	require.Equal(t, 16, b.Bounds().Dy())
}

func TestDecodeRejectsEmptyAndGarbage(t *testing.T) {
	_, err := Image{}.Decode(nil, 1, 1)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Image{}.Decode([]byte("<html>not an image</html>"), 1024, 1024)
	require.Error(t, err)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	full := pngBytes(t, 32, 32)
	_, err := Image{}.Decode(full[:len(full)/2], 1024, 1024)
	require.Error(t, err)
}

func TestDecodeRejectsTooManyPixels(t *testing.T) {
	b := pngBytes(t, 64, 32)

	_, err := Image{MaxPixels: 64*32 - 1}.Decode(b, 16, 16)
	require.ErrorIs(t, err, ErrTooLarge)

	bmp, err := Image{MaxPixels: 64 * 32}.Decode(b, 16, 16)
	require.NoError(t, err)
	require.Equal(t, 32, bmp.Bounds().Dx())

	_, err = Image{MaxPixels: -1}.Decode(b, 16, 16)
	require.NoError(t, err)
}

func TestDefaultPixelCapRejectsHugeHeader(t *testing.T) {
	// a tiny payload whose header claims 12000x12000 must fail before the
	// pixel data is touched
	b := pngBytes(t, 1, 1)
	binary.BigEndian.PutUint32(b[16:20], 12000)
	binary.BigEndian.PutUint32(b[20:24], 12000)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29])) // IHDR crc
	_, err := Image{}.Decode(b, 1024, 1024)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestLimit(t *testing.T) {
	b := pngBytes(t, 4, 4)
	d := Limit{Inner: Image{}, MaxBytes: len(b) - 1}
	_, err := d.Decode(b, 1024, 1024)
	require.True(t, errors.Is(err, ErrTooLarge))

	d.MaxBytes = len(b)
	_, err = d.Decode(b, 1024, 1024)
	require.NoError(t, err)
}
