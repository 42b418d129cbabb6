package wakefeed

import (
	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// Sequence is the batch-wise view a training loop drives: Len reports how
// many full batches are available, Batch materializes one, and OnEpochEnd
// runs between epochs.
type Sequence interface {
	Len() int
	Batch(index int) ([][][]float32, []uint8, error)
	OnEpochEnd()
}

// FeatureStore is a read-only source of labeled feature sequences keyed by
// utterance name. Keys must list names in the store's stable order; the
// loader visits them exactly in that order.
type FeatureStore interface {
	Name() string
	Keys() ([]string, error)
	Attributes(key string) (models.Attributes, error)
	Features(key string) ([][]float32, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
