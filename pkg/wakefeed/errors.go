package wakefeed

import (
	"errors"
	"fmt"
)

// ErrShuffleEnabled is returned by order-sensitive accessors when the
// dataset reshuffles between epochs and no stable order can be promised.
var ErrShuffleEnabled = errors.New("order may not be correct due to shuffling being enabled")

// LoadError reports which record failed while a dataset was preloading.
// Key is empty when the store could not even be enumerated.
type LoadError struct {
	Store string
	Key   string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("loading dataset from %s: %v", e.Store, e.Err)
	}
	return fmt.Sprintf("loading record %q from %s: %v", e.Key, e.Store, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
