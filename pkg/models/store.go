package models

// Attributes is the per-utterance metadata a feature store keeps alongside
// the feature matrix.
type Attributes struct {
	IsHotword     int64 // 1 if the utterance contains the wakeword
	SpeechStartTS int64 // Frame index where speech starts
	SpeechEndTS   int64 // Frame index where speech ends
}

// StoreInfo summarizes an opened feature store.
type StoreInfo struct {
	Name      string // Backing path or identifier of the store
	DatasetID string // UUID stamped into the store when it was written
	Records   int    // Number of utterances in the store
}
