package util

import (
	"crypto/md5"
	"encoding/hex"
	"path"
)

// Digest returns the lowercase hex MD5 of s (32 chars, filesystem safe).
func Digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// StorageKey isolates key by namespace for shared byte stores: img:<ns>:<key>.
func StorageKey(ns, key string) string {
	if ns == "" {
		return "img:" + key
	}
	return "img:" + ns + ":" + key
}

// FanoutPath spreads keys over 256 sub-directories using the first two hex chars.
func FanoutPath(prefix, key string) string {
	if len(key) < 3 {
		return path.Join(prefix, key)
	}
	return path.Join(prefix, key[:2], key)
}
