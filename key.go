package imgload

import (
	"strings"

	"github.com/unkn0wn-root/imgload/internal/util"
)

// Key identifies an image in every cache tier: the lowercase hex MD5 of its
// locator. It is safe to use as a file name.
type Key string

// HashLocator derives the Key for locator. It is pure and deterministic.
// Empty or whitespace-only locators fail with ErrInvalidKeyInput.
func HashLocator(locator string) (Key, error) {
	if strings.TrimSpace(locator) == "" {
		return "", ErrInvalidKeyInput
	}
	return Key(util.Digest(locator)), nil
}
