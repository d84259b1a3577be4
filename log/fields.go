// Package log holds helpers shared by the logger adapters in its
// sub-packages.
package log

import (
	"slices"

	"github.com/unkn0wn-root/imgload"
)

// Each calls fn for every field in key order, so adapters emit fields
// deterministically. imgload.Key values are passed as plain strings.
func Each(f imgload.Fields, fn func(k string, v any)) {
	if len(f) == 0 {
		return
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := f[k]
		if key, ok := v.(imgload.Key); ok {
			v = string(key)
		}
		fn(k, v)
	}
}
