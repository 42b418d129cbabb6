package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// Feature archives are flat binary files: a fixed header (magic, format
// version, dataset UUID, record count) followed by one variable-length
// block per utterance. All integers are little-endian; payloads are
// frame-major float32.
const (
	archiveMagic   = "WFAR"
	archiveVersion = 1

	// The record count sits right after magic, version and dataset id.
	archiveCountOffset = 4 + 2 + 16
)

const errArchiveClosed = "archive is closed"

type archiveEntry struct {
	attrs     models.Attributes
	offset    int64
	timeSteps int
	width     int
}

// Archive reads feature sequences out of an archive file. The key index
// is built once at open; payloads are read on demand.
type Archive struct {
	f     *os.File
	path  string
	id    string
	keys  []string
	index map[string]archiveEntry
}

func OpenArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		f:     f,
		path:  path,
		index: make(map[string]archiveEntry),
	}
	count, err := a.readHeader()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	if err := a.scanRecords(count); err != nil {
		f.Close()
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	return a, nil
}

// readHeader reads and validates the fixed archive header and returns the
// record count.
func (a *Archive) readHeader() (uint32, error) {
	var magic [4]byte
	var version uint16
	var rawID [16]byte
	var count uint32

	if err := binary.Read(a.f, binary.LittleEndian, &magic); err != nil {
		return 0, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic[:]) != archiveMagic {
		return 0, errors.New("not a feature archive")
	}
	if err := binary.Read(a.f, binary.LittleEndian, &version); err != nil {
		return 0, fmt.Errorf("reading version: %w", err)
	}
	if version != archiveVersion {
		return 0, fmt.Errorf("unsupported archive version %d", version)
	}
	if err := binary.Read(a.f, binary.LittleEndian, &rawID); err != nil {
		return 0, fmt.Errorf("reading dataset id: %w", err)
	}
	a.id = uuid.UUID(rawID).String()
	if err := binary.Read(a.f, binary.LittleEndian, &count); err != nil {
		return 0, fmt.Errorf("reading record count: %w", err)
	}
	return count, nil
}

// scanRecords walks every record block, indexing keys, attributes and
// payload offsets without reading the payloads themselves.
func (a *Archive) scanRecords(count uint32) error {
	size, err := a.fileSize()
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		var keyLen uint16
		if err := binary.Read(a.f, binary.LittleEndian, &keyLen); err != nil {
			return fmt.Errorf("reading key length of record %d: %w", i, err)
		}
		keyBuf := make([]byte, keyLen)
		if _, err := io.ReadFull(a.f, keyBuf); err != nil {
			return fmt.Errorf("reading key of record %d: %w", i, err)
		}

		var isHotword uint8
		var speechStart, speechEnd int16
		var timeSteps, width uint32
		if err := binary.Read(a.f, binary.LittleEndian, &isHotword); err != nil {
			return fmt.Errorf("reading label of record %d: %w", i, err)
		}
		if err := binary.Read(a.f, binary.LittleEndian, &speechStart); err != nil {
			return fmt.Errorf("reading speech start of record %d: %w", i, err)
		}
		if err := binary.Read(a.f, binary.LittleEndian, &speechEnd); err != nil {
			return fmt.Errorf("reading speech end of record %d: %w", i, err)
		}
		if err := binary.Read(a.f, binary.LittleEndian, &timeSteps); err != nil {
			return fmt.Errorf("reading time steps of record %d: %w", i, err)
		}
		if err := binary.Read(a.f, binary.LittleEndian, &width); err != nil {
			return fmt.Errorf("reading feature width of record %d: %w", i, err)
		}

		offset, err := a.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("locating payload of record %d: %w", i, err)
		}
		payload := 4 * int64(timeSteps) * int64(width)
		if offset+payload > size {
			return fmt.Errorf("payload of record %d runs past end of file", i)
		}
		if _, err := a.f.Seek(payload, io.SeekCurrent); err != nil {
			return fmt.Errorf("skipping payload of record %d: %w", i, err)
		}

		key := string(keyBuf)
		a.keys = append(a.keys, key)
		a.index[key] = archiveEntry{
			attrs: models.Attributes{
				IsHotword:     int64(isHotword),
				SpeechStartTS: int64(speechStart),
				SpeechEndTS:   int64(speechEnd),
			},
			offset:    offset,
			timeSteps: int(timeSteps),
			width:     int(width),
		}
	}
	return nil
}

func (a *Archive) fileSize() (int64, error) {
	fi, err := a.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return fi.Size(), nil
}

func (a *Archive) Name() string {
	return a.path
}

// Keys returns the archived keys in the order the records were written.
func (a *Archive) Keys() ([]string, error) {
	if a == nil || a.f == nil {
		return nil, errors.New(errArchiveClosed)
	}
	keys := make([]string, len(a.keys))
	copy(keys, a.keys)
	return keys, nil
}

func (a *Archive) Attributes(key string) (models.Attributes, error) {
	if a == nil || a.f == nil {
		return models.Attributes{}, errors.New(errArchiveClosed)
	}
	e, ok := a.index[key]
	if !ok {
		return models.Attributes{}, fmt.Errorf("utterance %q: %w", key, ErrNoRecord)
	}
	return e.attrs, nil
}

func (a *Archive) Features(key string) ([][]float32, error) {
	if a == nil || a.f == nil {
		return nil, errors.New(errArchiveClosed)
	}
	e, ok := a.index[key]
	if !ok {
		return nil, fmt.Errorf("utterance %q: %w", key, ErrNoRecord)
	}

	blob := make([]byte, 4*e.timeSteps*e.width)
	if len(blob) > 0 {
		if _, err := a.f.ReadAt(blob, e.offset); err != nil {
			return nil, fmt.Errorf("reading payload of %q: %w", key, err)
		}
	}
	features, err := decodeFeatures(blob, e.timeSteps, e.width)
	if err != nil {
		return nil, fmt.Errorf("utterance %q: %w", key, err)
	}
	return features, nil
}

// Info summarizes the archive header and index.
func (a *Archive) Info() models.StoreInfo {
	return models.StoreInfo{
		Name:      a.path,
		DatasetID: a.id,
		Records:   len(a.keys),
	}
}

func (a *Archive) Close() error {
	if a == nil || a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// ArchiveWriter writes an archive front to back. The record count is
// patched into the header on Close, so a writer that never closes leaves
// an archive that reads as empty.
type ArchiveWriter struct {
	f     *os.File
	path  string
	id    uuid.UUID
	count uint32
}

func CreateArchive(path string) (*ArchiveWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &ArchiveWriter{f: f, path: path, id: uuid.New()}
	if err := w.writeHeader(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("creating archive %s: %w", path, err)
	}
	return w, nil
}

func (w *ArchiveWriter) writeHeader() error {
	if _, err := w.f.Write([]byte(archiveMagic)); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint16(archiveVersion)); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	if _, err := w.f.Write(w.id[:]); err != nil {
		return fmt.Errorf("writing dataset id: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(0)); err != nil {
		return fmt.Errorf("writing record count: %w", err)
	}
	return nil
}

// Append writes one record block at the end of the archive. Attributes
// are narrowed to their wire widths.
func (w *ArchiveWriter) Append(key string, attrs models.Attributes, features [][]float32) error {
	if w == nil || w.f == nil {
		return errors.New(errArchiveClosed)
	}
	if len(key) > math.MaxUint16 {
		return fmt.Errorf("key %q is %d bytes, limit %d", key, len(key), math.MaxUint16)
	}
	blob, timeSteps, width, err := encodeFeatures(features)
	if err != nil {
		return fmt.Errorf("encoding features for %q: %w", key, err)
	}

	if err := binary.Write(w.f, binary.LittleEndian, uint16(len(key))); err != nil {
		return fmt.Errorf("writing key length: %w", err)
	}
	if _, err := w.f.Write([]byte(key)); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint8(attrs.IsHotword)); err != nil {
		return fmt.Errorf("writing label: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, int16(attrs.SpeechStartTS)); err != nil {
		return fmt.Errorf("writing speech start: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, int16(attrs.SpeechEndTS)); err != nil {
		return fmt.Errorf("writing speech end: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(timeSteps)); err != nil {
		return fmt.Errorf("writing time steps: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, uint32(width)); err != nil {
		return fmt.Errorf("writing feature width: %w", err)
	}
	if _, err := w.f.Write(blob); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}

	w.count++
	return nil
}

// DatasetID returns the UUID stamped into the archive header.
func (w *ArchiveWriter) DatasetID() string {
	return w.id.String()
}

// Close patches the final record count into the header and closes the
// file.
func (w *ArchiveWriter) Close() error {
	if w == nil || w.f == nil {
		return nil
	}
	if _, err := w.f.Seek(archiveCountOffset, io.SeekStart); err != nil {
		w.f.Close()
		w.f = nil
		return fmt.Errorf("seeking record count: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, w.count); err != nil {
		w.f.Close()
		w.f = nil
		return fmt.Errorf("patching record count: %w", err)
	}
	err := w.f.Close()
	w.f = nil
	return err
}
