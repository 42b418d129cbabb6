package wakefeed

// PadFeatures packs a batch of variable-length feature sequences into one
// rectangular tensor of shape [len(batch)][maxSteps][width], zero-padding
// on the right and bottom only. The width is read from the first row of
// the first sequence: rows wider than that are silently truncated, rows
// narrower keep a zero tail. The longest sequence is never cut.
func PadFeatures(batch [][][]float32) [][][]float32 {
	if len(batch) == 0 {
		return nil
	}

	maxSteps := 0
	for _, seq := range batch {
		if len(seq) > maxSteps {
			maxSteps = len(seq)
		}
	}
	width := 0
	if len(batch[0]) > 0 {
		width = len(batch[0][0])
	}

	padded := make([][][]float32, len(batch))
	for i, seq := range batch {
		block := make([][]float32, maxSteps)
		for t := range block {
			block[t] = make([]float32, width)
		}
		for t, row := range seq {
			copy(block[t], row)
		}
		padded[i] = block
	}
	return padded
}
