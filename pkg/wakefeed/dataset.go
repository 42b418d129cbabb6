package wakefeed

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/WakeFeed/pkg/logger"
	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// SequenceDataset feeds fixed-count, equal-size batches of labeled feature
// sequences to a training loop. Every record is pulled into memory when the
// dataset is constructed and stays there for the dataset's lifetime.
type SequenceDataset struct {
	records      []models.Record
	batchSize    int
	numFeatures  int
	numBatches   int
	numWakewords int
	shuffle      bool
	rng          *rand.Rand
	log          Logger
}

var _ Sequence = (*SequenceDataset)(nil)

// New eagerly loads every record from store and returns a dataset over
// them. Any store failure aborts the whole load; there are no partially
// loaded datasets.
func New(store FeatureStore, opts ...Option) (*SequenceDataset, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if store == nil {
		return nil, errors.New("feature store is nil")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	records, wakewords, err := preload(store, cfg)
	if err != nil {
		return nil, err
	}

	return &SequenceDataset{
		records:      records,
		batchSize:    cfg.BatchSize,
		numFeatures:  cfg.NumFeatures,
		numBatches:   len(records) / cfg.BatchSize,
		numWakewords: wakewords,
		shuffle:      cfg.Shuffle,
		rng:          cfg.Rand,
		log:          cfg.Logger,
	}, nil
}

// preload walks the store's keys in order and materializes one record per
// key. The wakeword count it returns is the load-time baseline the dataset
// keeps for the rest of its life.
func preload(store FeatureStore, cfg *Config) ([]models.Record, int, error) {
	keys, err := store.Keys()
	if err != nil {
		return nil, 0, &LoadError{Store: store.Name(), Err: err}
	}
	cfg.Logger.Infof("Preloading %d records from %s", len(keys), store.Name())

	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if cfg.Progress {
		progress = mpb.New(mpb.WithWidth(64))
		bar = progress.AddBar(int64(len(keys)),
			mpb.PrependDecorators(
				decor.Name("Preloading: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
	}
	fail := func(key string, err error) ([]models.Record, int, error) {
		if bar != nil {
			bar.Abort(true)
			progress.Wait()
		}
		return nil, 0, &LoadError{Store: store.Name(), Key: key, Err: err}
	}

	records := make([]models.Record, 0, len(keys))
	wakewords := 0
	for _, key := range keys {
		attrs, err := store.Attributes(key)
		if err != nil {
			return fail(key, err)
		}
		features, err := store.Features(key)
		if err != nil {
			return fail(key, err)
		}

		records = append(records, models.Record{
			FileName:    key,
			Label:       uint8(attrs.IsHotword),
			StartSpeech: int16(attrs.SpeechStartTS),
			EndSpeech:   int16(attrs.SpeechEndTS),
			Features:    features,
		})
		if attrs.IsHotword == 1 {
			wakewords++
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if progress != nil {
		progress.Wait()
	}

	cfg.Logger.Infof("Loaded %d records (%d wakewords)", len(records), wakewords)
	return records, wakewords, nil
}

// Len returns the number of full batches the dataset can serve. Records
// past the last full batch are loaded but never served.
func (d *SequenceDataset) Len() int {
	return d.numBatches
}

// Batch materializes batch index as a zero-padded feature tensor plus the
// batch's labels. Records keep their current dataset order; batch i covers
// records [i*batchSize, (i+1)*batchSize).
func (d *SequenceDataset) Batch(index int) ([][][]float32, []uint8, error) {
	if index < 0 || index >= d.numBatches {
		return nil, nil, fmt.Errorf("batch index %d out of range [0, %d)", index, d.numBatches)
	}

	start := index * d.batchSize
	features := make([][][]float32, d.batchSize)
	labels := make([]uint8, d.batchSize)
	for i := 0; i < d.batchSize; i++ {
		rec := d.records[start+i]
		features[i] = rec.Features
		labels[i] = rec.Label
	}

	return PadFeatures(features), labels, nil
}

// OnEpochEnd reshuffles the record order when shuffling is enabled and is
// a no-op otherwise. Call it between epochs.
func (d *SequenceDataset) OnEpochEnd() {
	if !d.shuffle {
		return
	}
	d.rng.Shuffle(len(d.records), func(i, j int) {
		d.records[i], d.records[j] = d.records[j], d.records[i]
	})
	d.log.Debugf("Reshuffled %d records", len(d.records))
}

// Labels returns every record's label in current dataset order, including
// records beyond the last full batch.
func (d *SequenceDataset) Labels() ([]uint8, error) {
	if d.shuffle {
		return nil, ErrShuffleEnabled
	}
	labels := make([]uint8, len(d.records))
	for i, rec := range d.records {
		labels[i] = rec.Label
	}
	return labels, nil
}

// Filenames returns every record's store key in current dataset order,
// including records beyond the last full batch.
func (d *SequenceDataset) Filenames() ([]string, error) {
	if d.shuffle {
		return nil, ErrShuffleEnabled
	}
	names := make([]string, len(d.records))
	for i, rec := range d.records {
		names[i] = rec.FileName
	}
	return names, nil
}

// NumRecords returns the number of records currently held, served or not.
func (d *SequenceDataset) NumRecords() int {
	return len(d.records)
}

// NumWakewords returns the wakeword count observed at load time. Pruning
// does not update it.
func (d *SequenceDataset) NumWakewords() int {
	return d.numWakewords
}

// BatchSize returns the fixed per-batch record count.
func (d *SequenceDataset) BatchSize() int {
	return d.batchSize
}

// NumFeatures returns the advisory feature width the dataset was opened
// with.
func (d *SequenceDataset) NumFeatures() int {
	return d.numFeatures
}
