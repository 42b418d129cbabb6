package store

import (
	"errors"

	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// ErrNoRecord reports a key that is not present in a store.
var ErrNoRecord = errors.New("record not found")

// Entry is one utterance staged for a bulk write.
type Entry struct {
	Key        string
	Attributes models.Attributes
	Features   [][]float32
}
