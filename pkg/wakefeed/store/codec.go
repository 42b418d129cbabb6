package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encodeFeatures flattens a rectangular feature matrix into a float32
// little-endian payload, frame by frame. Ragged rows are rejected. An
// empty matrix encodes to an empty payload with zero width.
func encodeFeatures(features [][]float32) (blob []byte, timeSteps, width int, err error) {
	timeSteps = len(features)
	if timeSteps > 0 {
		width = len(features[0])
	}

	buf := new(bytes.Buffer)
	buf.Grow(4 * timeSteps * width)
	for t, row := range features {
		if len(row) != width {
			return nil, 0, 0, fmt.Errorf("ragged feature rows: row %d has %d values, want %d", t, len(row), width)
		}
		if err := binary.Write(buf, binary.LittleEndian, row); err != nil {
			return nil, 0, 0, fmt.Errorf("encoding feature row %d: %w", t, err)
		}
	}
	return buf.Bytes(), timeSteps, width, nil
}

// decodeFeatures rebuilds a feature matrix from its payload. The payload
// length must match the recorded shape exactly.
func decodeFeatures(blob []byte, timeSteps, width int) ([][]float32, error) {
	if timeSteps < 0 || width < 0 {
		return nil, fmt.Errorf("invalid feature shape %dx%d", timeSteps, width)
	}
	want := 4 * timeSteps * width
	if len(blob) != want {
		return nil, fmt.Errorf("feature payload is %d bytes, want %d for shape %dx%d", len(blob), want, timeSteps, width)
	}

	flat := make([]float32, timeSteps*width)
	if len(flat) > 0 {
		if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, flat); err != nil {
			return nil, fmt.Errorf("decoding feature payload: %w", err)
		}
	}

	features := make([][]float32, timeSteps)
	for t := range features {
		features[t] = flat[t*width : (t+1)*width]
	}
	return features, nil
}
