package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// setupTestStore creates a throwaway SQLite store in a temp directory.
func setupTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_wakefeed.sqlite3")
	s, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s, dbPath
}

// TestOpenSQLite tests store initialization and the stamped dataset id.
func TestOpenSQLite(t *testing.T) {
	s, dbPath := setupTestStore(t)

	if s.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.DatasetID == "" {
		t.Error("Expected a dataset id to be stamped at creation")
	}
	if info.Records != 0 {
		t.Errorf("Expected an empty store, got %d records", info.Records)
	}
}

// TestOpenDefaultSQLite tests the WAKEFEED_DB_PATH environment override.
func TestOpenDefaultSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env_wakefeed.sqlite3")

	oldPath := os.Getenv("WAKEFEED_DB_PATH")
	os.Setenv("WAKEFEED_DB_PATH", dbPath)
	t.Cleanup(func() {
		if oldPath == "" {
			os.Unsetenv("WAKEFEED_DB_PATH")
		} else {
			os.Setenv("WAKEFEED_DB_PATH", oldPath)
		}
	})

	s, err := OpenDefaultSQLite()
	if err != nil {
		t.Fatalf("Failed to open default store: %v", err)
	}
	defer s.Close()

	if s.Name() != dbPath {
		t.Errorf("Expected store at %s, got %s", dbPath, s.Name())
	}
}

// TestSQLiteRoundTrip verifies keys list in insertion order with their
// attributes and payloads intact.
func TestSQLiteRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	entries := fixtureEntries()

	for _, e := range entries {
		if err := s.Put(e.Key, e.Attributes, e.Features); err != nil {
			t.Fatalf("Put(%q) failed: %v", e.Key, err)
		}
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != len(entries) {
		t.Fatalf("Expected %d keys, got %d", len(entries), len(keys))
	}
	for i, e := range entries {
		if keys[i] != e.Key {
			t.Errorf("Key %d: expected %q, got %q", i, e.Key, keys[i])
		}
		attrs, err := s.Attributes(e.Key)
		if err != nil {
			t.Fatalf("Attributes(%q) failed: %v", e.Key, err)
		}
		if attrs != e.Attributes {
			t.Errorf("Attributes of %q: expected %+v, got %+v", e.Key, e.Attributes, attrs)
		}
		features, err := s.Features(e.Key)
		if err != nil {
			t.Fatalf("Features(%q) failed: %v", e.Key, err)
		}
		if !sameFeatures(features, e.Features) {
			t.Errorf("Features of %q came back different", e.Key)
		}
	}
}

// TestSQLitePutBatch verifies bulk insertion lands every entry in order.
func TestSQLitePutBatch(t *testing.T) {
	s, _ := setupTestStore(t)
	entries := fixtureEntries()

	if err := s.PutBatch(entries); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Records != len(entries) {
		t.Errorf("Expected %d records, got %d", len(entries), info.Records)
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	for i, e := range entries {
		if keys[i] != e.Key {
			t.Errorf("Key %d: expected %q, got %q", i, e.Key, keys[i])
		}
	}
}

// TestSQLiteDuplicateKey verifies the unique index rejects re-insertion.
func TestSQLiteDuplicateKey(t *testing.T) {
	s, _ := setupTestStore(t)
	e := fixtureEntries()[0]

	if err := s.Put(e.Key, e.Attributes, e.Features); err != nil {
		t.Fatalf("First Put failed: %v", err)
	}
	if err := s.Put(e.Key, e.Attributes, e.Features); err == nil {
		t.Error("Expected the second Put of the same key to fail")
	}
}

// TestSQLiteMissingKey verifies lookups of absent keys report ErrNoRecord.
func TestSQLiteMissingKey(t *testing.T) {
	s, _ := setupTestStore(t)

	if _, err := s.Attributes("no-such-key"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("Expected ErrNoRecord from Attributes, got %v", err)
	}
	if _, err := s.Features("no-such-key"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("Expected ErrNoRecord from Features, got %v", err)
	}
}

// TestSQLiteBlobShapeMismatch verifies a payload whose length disagrees
// with the recorded shape fails the read instead of decoding garbage.
func TestSQLiteBlobShapeMismatch(t *testing.T) {
	s, _ := setupTestStore(t)
	e := fixtureEntries()[0]
	if err := s.Put(e.Key, e.Attributes, e.Features); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// chop the stored blob behind the store's back
	err := s.DB.Model(&Utterance{}).
		Where("key = ?", e.Key).
		Update("features", []byte{1, 2, 3}).Error
	if err != nil {
		t.Fatalf("Failed to corrupt blob: %v", err)
	}

	if _, err := s.Features(e.Key); err == nil {
		t.Error("Expected Features to fail on a shape/length mismatch")
	}
}

// TestSQLiteReopenKeepsDatasetID verifies the dataset id is stamped once
// and survives reopening.
func TestSQLiteReopenKeepsDatasetID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stamped.sqlite3")

	s, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	first, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()
	second, err := s2.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	if first.DatasetID != second.DatasetID {
		t.Errorf("Expected the dataset id to survive reopening, got %s then %s",
			first.DatasetID, second.DatasetID)
	}
}
