package memcache

import (
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/imgload/bitmap"
)

func bmp(w, h int) *bitmap.Bitmap {
	return bitmap.New(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func TestTieredGetAfterPut(t *testing.T) {
	c := NewTiered(2, 2)
	b := bmp(2, 2)
	c.Put("k", b)

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Same(t, b, got)
}

func TestTieredDemotesThenDiscards(t *testing.T) {
	c := NewTiered(2, 2)
	for i := range 5 {
		c.Put(fmt.Sprintf("k%d", i), bmp(1, 1))
	}

	// k0 fell off the cold tier; k1,k2 are cold; k3,k4 are hot
	_, ok := c.Get("k0")
	require.False(t, ok)
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		_, ok := c.Get(k)
		require.True(t, ok, k)
	}
	require.Equal(t, 2, c.HotLen())
	require.Equal(t, 2, c.ColdLen())
	require.Equal(t, 4, c.Len())
}

func TestTieredColdHitIsNotPromoted(t *testing.T) {
	c := NewTiered(1, 1)
	c.Put("a", bmp(1, 1))
	c.Put("b", bmp(1, 1)) // a demoted

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", bmp(1, 1)) // b demoted, a discarded
	_, ok = c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestTieredReplaceMovesToHotTail(t *testing.T) {
	c := NewTiered(2, 0)
	c.Put("a", bmp(1, 1))
	c.Put("b", bmp(1, 1))
	c.Put("a", bmp(1, 1))
	c.Put("c", bmp(1, 1)) // b is oldest now

	_, ok := c.Get("b")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestTieredEvictsReleased(t *testing.T) {
	c := NewTiered(2, 2)
	b := bmp(1, 1)
	c.Put("k", b)
	b.Release()

	_, ok := c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestTieredResizeShrinks(t *testing.T) {
	c := NewTiered(3, 3)
	for i := range 6 {
		c.Put(fmt.Sprintf("k%d", i), bmp(1, 1))
	}
	c.Resize(Budget{HotItems: 1, ColdItems: 1})
	require.Equal(t, 2, c.Len())
	_, ok := c.Get("k5")
	require.True(t, ok)
	_, ok = c.Get("k4")
	require.True(t, ok)
}

func TestBytesBudgetEvictsOldest(t *testing.T) {
	// 2x2 RGBA = 16 bytes
	c := NewBytes(40)
	c.Put("a", bmp(2, 2))
	c.Put("b", bmp(2, 2))
	require.EqualValues(t, 32, c.Used())

	c.Put("c", bmp(2, 2))
	require.EqualValues(t, 32, c.Used())
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestBytesOversizeNotCached(t *testing.T) {
	c := NewBytes(16)
	c.Put("small", bmp(2, 2))
	c.Put("big", bmp(4, 4))

	_, ok := c.Get("big")
	require.False(t, ok)
	_, ok = c.Get("small")
	require.True(t, ok)
}

func TestBytesReplaceAdjustsUsage(t *testing.T) {
	c := NewBytes(1 << 10)
	c.Put("k", bmp(2, 2))
	c.Put("k", bmp(4, 4))
	require.EqualValues(t, 64, c.Used())
	require.Equal(t, 1, c.Len())

	c.Remove("k")
	require.EqualValues(t, 0, c.Used())
}

func TestBytesResize(t *testing.T) {
	c := NewBytes(64)
	c.Put("a", bmp(2, 2))
	c.Put("b", bmp(2, 2))
	c.Put("c", bmp(2, 2))

	c.Resize(Budget{Bytes: 16})
	require.Equal(t, 1, c.Len())
	_, ok := c.Get("c")
	require.True(t, ok)
}

func TestBytesSkipsInvalid(t *testing.T) {
	c := NewBytes(64)
	c.Put("nil", nil)
	c.Put("empty", bmp(0, 0))
	require.Equal(t, 0, c.Len())
}
