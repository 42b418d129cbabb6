package store

import (
	"fmt"

	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// MemoryStore is an in-memory feature store that preserves insertion
// order. It backs tests and synthetic pipelines where no file is wanted.
type MemoryStore struct {
	name    string
	keys    []string
	entries map[string]memoryEntry
}

type memoryEntry struct {
	attrs    models.Attributes
	features [][]float32
}

func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:    name,
		entries: make(map[string]memoryEntry),
	}
}

// Put stores or replaces an utterance. The first insertion of a key
// decides its position in the key order.
func (m *MemoryStore) Put(key string, attrs models.Attributes, features [][]float32) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = memoryEntry{attrs: attrs, features: features}
}

func (m *MemoryStore) Name() string {
	return m.name
}

func (m *MemoryStore) Keys() ([]string, error) {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys, nil
}

func (m *MemoryStore) Attributes(key string) (models.Attributes, error) {
	e, ok := m.entries[key]
	if !ok {
		return models.Attributes{}, fmt.Errorf("utterance %q: %w", key, ErrNoRecord)
	}
	return e.attrs, nil
}

func (m *MemoryStore) Features(key string) ([][]float32, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("utterance %q: %w", key, ErrNoRecord)
	}
	return e.features, nil
}

// Len returns the number of stored utterances.
func (m *MemoryStore) Len() int {
	return len(m.keys)
}
