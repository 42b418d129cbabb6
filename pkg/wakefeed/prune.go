package wakefeed

import (
	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// PruneWakewords discards wakeword records at random until keepRatio of
// the load-time wakeword count remains, then reshuffles the dataset and
// recomputes the batch count.
//
// The retained count is always taken against the load-time baseline, never
// the current population, so repeated prunes compound against that fixed
// figure. Ratios outside [0, 1] are not validated: they clamp the way
// slice bounds do, so an oversized ratio keeps every wakeword still
// present and a negative one counts back from the end of the removed set.
func (d *SequenceDataset) PruneWakewords(keepRatio float64) {
	kept, removed := splitWakewords(d.records)

	d.rng.Shuffle(len(removed), func(i, j int) {
		removed[i], removed[j] = removed[j], removed[i]
	})

	keep := int(keepRatio * float64(d.numWakewords))
	if keep > len(removed) {
		keep = len(removed)
	}
	if keep < 0 {
		keep += len(removed)
		if keep < 0 {
			keep = 0
		}
	}

	d.records = append(kept, removed[:keep]...)
	d.rng.Shuffle(len(d.records), func(i, j int) {
		d.records[i], d.records[j] = d.records[j], d.records[i]
	})
	d.numBatches = len(d.records) / d.batchSize

	d.log.Infof("Pruned wakewords: kept %d of %d, %d records remain in %d batches",
		keep, len(removed), len(d.records), d.numBatches)
}

// splitWakewords partitions records into the non-wakeword survivors, with
// their relative order intact, and the pulled wakeword records in
// descending index order. No record is visited twice and none is dropped.
func splitWakewords(records []models.Record) (kept, removed []models.Record) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].IsWakeword() {
			removed = append(removed, records[i])
		}
	}
	kept = make([]models.Record, 0, len(records)-len(removed))
	for _, rec := range records {
		if !rec.IsWakeword() {
			kept = append(kept, rec)
		}
	}
	return kept, removed
}
