package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/WakeFeed/pkg/models"
)

const DefaultDBFile = "wakefeed.sqlite3"
const errStoreNil = "sqlite store is nil"

// Utterance is one stored feature sequence plus its labeling metadata.
// Features holds the frame-major float32 little-endian payload whose shape
// is recorded in TimeSteps and NumFeatures.
type Utterance struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Key           string `gorm:"column:key;uniqueIndex:idx_utterance_key" json:"key"`
	IsHotword     int64  `gorm:"column:is_hotword" json:"is_hotword"`
	SpeechStartTS int64  `gorm:"column:speech_start_ts" json:"speech_start_ts"`
	SpeechEndTS   int64  `gorm:"column:speech_end_ts" json:"speech_end_ts"`
	TimeSteps     int    `gorm:"column:time_steps" json:"time_steps"`
	NumFeatures   int    `gorm:"column:num_features" json:"num_features"`
	Features      []byte `gorm:"column:features;type:blob" json:"-"`
	CreatedAt     time.Time
}

// DatasetMeta is the single bookkeeping row describing the store itself.
type DatasetMeta struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DatasetID string `gorm:"type:varchar(36)" json:"dataset_id"`
	CreatedAt time.Time
}

// SQLiteStore keeps feature sequences in a single SQLite file, one row per
// utterance. Keys come back in insertion order.
type SQLiteStore struct {
	DB   *gorm.DB
	db   *sql.DB
	path string
	meta DatasetMeta
}

// OpenDefaultSQLite opens the store named by WAKEFEED_DB_PATH, falling
// back to DefaultDBFile in the working directory.
func OpenDefaultSQLite() (*SQLiteStore, error) {
	path := os.Getenv("WAKEFEED_DB_PATH")
	if path == "" {
		path = DefaultDBFile
	}
	return OpenSQLite(path)
}

// OpenSQLite opens or creates the store at path, migrating the schema and
// stamping a dataset UUID on first use.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(path) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Utterance{}, &DatasetMeta{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	var meta DatasetMeta
	err = db.First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		meta = DatasetMeta{DatasetID: uuid.NewString()}
		if err := db.Create(&meta).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("stamping dataset id: %w", err)
		}
	} else if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("reading dataset meta: %w", err)
	}

	return &SQLiteStore{DB: db, db: sqlDB, path: path, meta: meta}, nil
}

func (s *SQLiteStore) Name() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Keys returns every stored key in insertion order.
func (s *SQLiteStore) Keys() ([]string, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var keys []string
	if err := s.DB.Model(&Utterance{}).Order("id").Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("listing utterance keys: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) Attributes(key string) (models.Attributes, error) {
	row, err := s.fetch(key)
	if err != nil {
		return models.Attributes{}, err
	}
	return models.Attributes{
		IsHotword:     row.IsHotword,
		SpeechStartTS: row.SpeechStartTS,
		SpeechEndTS:   row.SpeechEndTS,
	}, nil
}

func (s *SQLiteStore) Features(key string) ([][]float32, error) {
	row, err := s.fetch(key)
	if err != nil {
		return nil, err
	}
	features, err := decodeFeatures(row.Features, row.TimeSteps, row.NumFeatures)
	if err != nil {
		return nil, fmt.Errorf("utterance %q: %w", key, err)
	}
	return features, nil
}

func (s *SQLiteStore) fetch(key string) (*Utterance, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var row Utterance
	if err := s.DB.Where("key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("utterance %q: %w", key, ErrNoRecord)
		}
		return nil, fmt.Errorf("querying utterance %q: %w", key, err)
	}
	return &row, nil
}

// Put inserts one utterance. Keys are unique; re-inserting an existing key
// fails.
func (s *SQLiteStore) Put(key string, attrs models.Attributes, features [][]float32) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	blob, timeSteps, width, err := encodeFeatures(features)
	if err != nil {
		return fmt.Errorf("encoding features for %q: %w", key, err)
	}

	row := Utterance{
		Key:           key,
		IsHotword:     attrs.IsHotword,
		SpeechStartTS: attrs.SpeechStartTS,
		SpeechEndTS:   attrs.SpeechEndTS,
		TimeSteps:     timeSteps,
		NumFeatures:   width,
		Features:      blob,
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("inserting utterance %q: %w", key, err)
	}
	return nil
}

// PutBatch inserts utterances in chunks so large conversions do not build
// one giant statement.
func (s *SQLiteStore) PutBatch(entries []Entry) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}

	rows := make([]Utterance, 0, len(entries))
	for _, e := range entries {
		blob, timeSteps, width, err := encodeFeatures(e.Features)
		if err != nil {
			return fmt.Errorf("encoding features for %q: %w", e.Key, err)
		}
		rows = append(rows, Utterance{
			Key:           e.Key,
			IsHotword:     e.Attributes.IsHotword,
			SpeechStartTS: e.Attributes.SpeechStartTS,
			SpeechEndTS:   e.Attributes.SpeechEndTS,
			TimeSteps:     timeSteps,
			NumFeatures:   width,
			Features:      blob,
		})
		if len(rows) >= 1000 {
			if err := s.DB.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("batch insert utterances: %w", err)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if err := s.DB.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("batch insert last utterances: %w", err)
		}
	}
	return nil
}

// Info reports the stamped dataset id and the current row count.
func (s *SQLiteStore) Info() (models.StoreInfo, error) {
	if s == nil || s.DB == nil {
		return models.StoreInfo{}, errors.New(errStoreNil)
	}
	var count int64
	if err := s.DB.Model(&Utterance{}).Count(&count).Error; err != nil {
		return models.StoreInfo{}, fmt.Errorf("counting utterances: %w", err)
	}
	return models.StoreInfo{
		Name:      s.path,
		DatasetID: s.meta.DatasetID,
		Records:   int(count),
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
