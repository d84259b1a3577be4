// Package imgload loads remote images into UI slots through a request
// coalescing scheduler and a tiered cache.
//
// For every (locator, slot) request the loader decides whether to serve from
// memory, serve from the persistent store, queue a network fetch, merge with
// an in-flight fetch for the same key, or cancel a fetch the slot no longer
// wants.
//
// Components:
//   - memcache.Cache: decoded bitmaps in process memory (hot/cold tiers by
//     default, byte budgeted or ristretto backed as alternatives).
//   - store.Store: durable key -> bytes (fs, badger, redis, bigcache, minio),
//     optionally framed with checksummed metadata by store.Framed.
//   - transport.Fetcher: redirect-following GET.
//   - decode.Decoder: bytes -> bitmap, down-sampled to MaxWidth x MaxHeight.
//   - GenStore: generation per key so Invalidate wins over fetches already
//     running.
//
// Guarantees:
//
//	at most one fetch in flight per key
//	|running| <= MaxConcurrency, backlog served FIFO
//	a slot only ever receives the image for the key it currently wants
//
// Keys:
//
//	Key = hex(md5(locator))     memory and store key
//	img:<ns>:<key>              shared stores (redis, badger)
//	<prefix>/<key[:2]>/<key>    file and object stores
package imgload

// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/imgload"
//	asynchook "github.com/unkn0wn-root/imgload/hooks/async"
//	"github.com/unkn0wn-root/imgload/sloghooks"
//	"github.com/unkn0wn-root/imgload/store"
//	fsstore "github.com/unkn0wn-root/imgload/store/fs"
//	"github.com/unkn0wn-root/imgload/transport"
//
// )
//
//	disk, _ := fsstore.New(fsstore.Config{Dir: "/var/cache/imgload"})
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{CorruptEvery: 1})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	loader, _ := imgload.New(imgload.Options{
//	    Transport: transport.NewHTTP(transport.HTTPConfig{Timeout: 30 * time.Second}),
//	    Store:     store.NewFramed(disk, nil),
//	    Hooks:     hooks,
//	})
//	defer loader.Close(ctx)
//
//	_ = loader.Request("https://example.com/a.png", slot) // slot.Deliver(Result) later
