package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/unkn0wn-root/imgload/codec"
	"github.com/unkn0wn-root/imgload/internal/wire"
)

// Meta is written in front of every framed entry.
type Meta struct {
	Key         string    `json:"key" msgpack:"key" cbor:"key"`
	ContentType string    `json:"content_type" msgpack:"content_type" cbor:"content_type"`
	Size        int64     `json:"size" msgpack:"size" cbor:"size"`
	StoredAt    time.Time `json:"stored_at" msgpack:"stored_at" cbor:"stored_at"`
}

// Framed wraps a Store so every value carries a checksummed header and a
// metadata record. Reads of truncated, foreign or mismatched entries delete
// the entry and return ErrCorrupt.
type Framed struct {
	inner Store
	codec codec.Codec[Meta]
	now   func() time.Time
}

var _ Store = (*Framed)(nil)

// NewFramed wraps inner. A nil codec selects msgpack.
func NewFramed(inner Store, c codec.Codec[Meta]) *Framed {
	if c == nil {
		c = codec.Msgpack[Meta]{}
	}
	return &Framed{inner: inner, codec: c, now: time.Now}
}

func (f *Framed) Read(ctx context.Context, key string) ([]byte, error) {
	_, payload, err := f.read(ctx, key)
	return payload, err
}

// ReadMeta returns only the metadata record of an entry.
func (f *Framed) ReadMeta(ctx context.Context, key string) (Meta, error) {
	m, _, err := f.read(ctx, key)
	return m, err
}

func (f *Framed) read(ctx context.Context, key string) (Meta, []byte, error) {
	raw, err := f.inner.Read(ctx, key)
	if err != nil {
		return Meta{}, nil, err
	}
	mb, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		return Meta{}, nil, f.heal(ctx, key, err)
	}
	m, err := f.codec.Decode(mb)
	if err != nil {
		return Meta{}, nil, f.heal(ctx, key, err)
	}
	if m.Key != key || m.Size != int64(len(payload)) {
		return Meta{}, nil, f.heal(ctx, key, fmt.Errorf("meta mismatch: key=%q size=%d", m.Key, m.Size))
	}
	return m, payload, nil
}

func (f *Framed) heal(ctx context.Context, key string, cause error) error {
	derr := f.inner.Delete(ctx, key)
	return errors.Join(fmt.Errorf("%w: %s: %w", ErrCorrupt, key, cause), derr)
}

func (f *Framed) Write(ctx context.Context, key string, b []byte) error {
	mb, err := f.codec.Encode(Meta{
		Key:         key,
		ContentType: http.DetectContentType(b),
		Size:        int64(len(b)),
		StoredAt:    f.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("store: encode meta: %w", err)
	}
	return f.inner.Write(ctx, key, wire.EncodeEntry(mb, b))
}

func (f *Framed) Delete(ctx context.Context, key string) error { return f.inner.Delete(ctx, key) }
func (f *Framed) Close(ctx context.Context) error              { return f.inner.Close(ctx) }
