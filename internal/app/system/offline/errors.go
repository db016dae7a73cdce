package offline

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports an invalid offline configuration.
	ErrConfig = errors.New("offline: invalid config")

	// ErrInstall reports an install that stored nothing.
	ErrInstall = errors.New("offline: install failed")

	// ErrUnavailable reports a request that neither the network nor any
	// fallback could answer.
	ErrUnavailable = errors.New("offline: resource unavailable")
)

// StatusError is returned when an asset fetched during install does not come
// back with a 2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("offline: %s responded with status %d", e.URL, e.Status)
}
