package imgload

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKeyInput is returned by Request before any request is created.
	ErrInvalidKeyInput = errors.New("imgload: invalid locator")
	// ErrTransportFailure classifies non-2xx responses and network errors.
	ErrTransportFailure = errors.New("imgload: transport failure")
	// ErrCorruptPayload classifies bytes that do not decode to a usable image.
	// It is always delivered together with ErrTransportFailure.
	ErrCorruptPayload = errors.New("imgload: corrupt payload")
	// ErrCancelled is never delivered; it tags cancellations in logs and hooks.
	ErrCancelled = errors.New("imgload: cancelled")
	ErrClosed    = errors.New("imgload: loader closed")
)

// FetchError is delivered in Result.Err when a fetch fails. errors.Is matches
// its class (ErrTransportFailure, ErrCorruptPayload) and its cause.
type FetchError struct {
	Key     Key
	Locator string
	Status  int // HTTP status, 0 if no response was received
	Corrupt bool
	Cause   error
}

func (e *FetchError) Error() string {
	switch {
	case e.Corrupt:
		return fmt.Sprintf("imgload: fetch %q: corrupt payload: %v", e.Locator, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("imgload: fetch %q: status %d", e.Locator, e.Status)
	default:
		return fmt.Sprintf("imgload: fetch %q: %v", e.Locator, e.Cause)
	}
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, 3)
	errs = append(errs, ErrTransportFailure)
	if e.Corrupt {
		errs = append(errs, ErrCorruptPayload)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

type InvalidateError struct {
	Key     Key
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("imgload: invalidate %q: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("imgload: invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("imgload: invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("imgload: invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
