package models

// Record is one labeled utterance held in memory for the lifetime of a
// dataset. Features holds one feature vector per frame, oldest frame first.
type Record struct {
	FileName    string      // Store key the record was loaded under
	Label       uint8       // 1 for a wakeword utterance, 0 otherwise
	StartSpeech int16       // Frame index where speech starts
	EndSpeech   int16       // Frame index where speech ends
	Features    [][]float32 // Per-frame feature vectors
}

// IsWakeword reports whether the record is labeled as a wakeword utterance.
func (r Record) IsWakeword() bool {
	return r.Label == 1
}

// TimeSteps returns the number of feature frames in the record.
func (r Record) TimeSteps() int {
	return len(r.Features)
}
