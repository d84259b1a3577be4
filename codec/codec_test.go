package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type record struct {
	Key      string    `json:"key" msgpack:"key" cbor:"key"`
	Size     int64     `json:"size" msgpack:"size" cbor:"size"`
	StoredAt time.Time `json:"stored_at" msgpack:"stored_at" cbor:"stored_at"`
}

func TestByName(t *testing.T) {
	in := record{Key: "0cc175b9c0f1b6a831c399e269772661", Size: 42, StoredAt: time.Unix(1700000000, 0).UTC()}
	for _, name := range []string{"", "msgpack", "cbor", "json"} {
		c, err := ByName[record](name)
		require.NoError(t, err, name)

		b, err := c.Encode(in)
		require.NoError(t, err, name)
		out, err := c.Decode(b)
		require.NoError(t, err, name)
		require.Equal(t, in.Key, out.Key, name)
		require.Equal(t, in.Size, out.Size, name)
		require.True(t, in.StoredAt.Equal(out.StoredAt), name)
	}

	_, err := ByName[record]("protobuf")
	require.Error(t, err)
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	a, err := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	b, err := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Msgpack[record]{}.Decode([]byte{0xc1})
	require.Error(t, err)
	_, err = JSON[record]{}.Decode([]byte("{"))
	require.Error(t, err)
}
