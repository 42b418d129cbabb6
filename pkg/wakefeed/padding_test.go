package wakefeed

import "testing"

func seq(steps, width int, fill float32) [][]float32 {
	s := make([][]float32, steps)
	for t := range s {
		s[t] = make([]float32, width)
		for c := range s[t] {
			s[t][c] = fill
		}
	}
	return s
}

// TestPadFeaturesShape verifies every block stretches to the longest
// sequence while keeping the first element's width.
func TestPadFeaturesShape(t *testing.T) {
	batch := [][][]float32{
		seq(2, 3, 1),
		seq(5, 3, 2),
		seq(1, 3, 3),
	}

	padded := PadFeatures(batch)

	if len(padded) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(padded))
	}
	for i, block := range padded {
		if len(block) != 5 {
			t.Errorf("Block %d: expected 5 rows, got %d", i, len(block))
		}
		for ti, row := range block {
			if len(row) != 3 {
				t.Errorf("Block %d row %d: expected width 3, got %d", i, ti, len(row))
			}
		}
	}
}

// TestPadFeaturesZeroFill verifies padding sits strictly after the real
// frames and the real frames survive untouched.
func TestPadFeaturesZeroFill(t *testing.T) {
	batch := [][][]float32{
		seq(2, 2, 7),
		seq(4, 2, 9),
	}

	padded := PadFeatures(batch)

	for ti := 0; ti < 2; ti++ {
		for c := 0; c < 2; c++ {
			if padded[0][ti][c] != 7 {
				t.Errorf("Real frame [0][%d][%d] changed: got %f", ti, c, padded[0][ti][c])
			}
		}
	}
	for ti := 2; ti < 4; ti++ {
		for c := 0; c < 2; c++ {
			if padded[0][ti][c] != 0 {
				t.Errorf("Expected zero at [0][%d][%d], got %f", ti, c, padded[0][ti][c])
			}
		}
	}
	// the longest sequence must come back verbatim
	for ti := 0; ti < 4; ti++ {
		for c := 0; c < 2; c++ {
			if padded[1][ti][c] != 9 {
				t.Errorf("Longest sequence changed at [%d][%d]: got %f", ti, c, padded[1][ti][c])
			}
		}
	}
}

// TestPadFeaturesWidthFromFirst pins the legacy width rule: the first
// element decides the width, wider rows are cut and narrower rows get a
// zero tail, all without an error.
func TestPadFeaturesWidthFromFirst(t *testing.T) {
	batch := [][][]float32{
		seq(2, 3, 1),
		seq(2, 5, 2), // wider than the first: truncated to 3
		seq(2, 2, 4), // narrower: columns 2.. stay zero
	}

	padded := PadFeatures(batch)

	for i, block := range padded {
		for ti, row := range block {
			if len(row) != 3 {
				t.Fatalf("Block %d row %d: expected width 3, got %d", i, ti, len(row))
			}
		}
	}
	if padded[1][0][2] != 2 {
		t.Errorf("Expected wider row to keep its first 3 values, got %f", padded[1][0][2])
	}
	if padded[2][0][2] != 0 {
		t.Errorf("Expected narrow row to be zero past its own width, got %f", padded[2][0][2])
	}
}

// TestPadFeaturesFreshAllocation verifies the padded tensor never aliases
// the input rows.
func TestPadFeaturesFreshAllocation(t *testing.T) {
	original := seq(2, 2, 5)
	padded := PadFeatures([][][]float32{original})

	padded[0][0][0] = 99
	if original[0][0] != 5 {
		t.Error("Expected padding to copy rows, not alias them")
	}
}

// TestPadFeaturesDegenerate covers the empty batch and the empty first
// sequence.
func TestPadFeaturesDegenerate(t *testing.T) {
	if got := PadFeatures(nil); got != nil {
		t.Errorf("Expected nil for an empty batch, got %v", got)
	}

	batch := [][][]float32{
		{}, // no frames: width collapses to 0
		seq(3, 4, 1),
	}
	padded := PadFeatures(batch)
	if len(padded) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(padded))
	}
	for i, block := range padded {
		if len(block) != 3 {
			t.Errorf("Block %d: expected 3 rows, got %d", i, len(block))
		}
		for ti, row := range block {
			if len(row) != 0 {
				t.Errorf("Block %d row %d: expected zero width, got %d", i, ti, len(row))
			}
		}
	}
}
