package training

// MaskedAccuracy compares decoded label sequences to reference labels
// elementwise, counting only positions where the attention mask is true.
// Masked (padding) positions are excluded from both the numerator and the
// denominator, matching the loss's masking policy. Returns a value in
// [0,1]; a batch with no valid positions scores 0.
func MaskedAccuracy(predicted, labels [][]int, mask [][]bool) float64 {
	correct := 0
	total := 0
	for i := range labels {
		for j := range labels[i] {
			if i >= len(mask) || j >= len(mask[i]) || !mask[i][j] {
				continue
			}
			if i >= len(predicted) || j >= len(predicted[i]) {
				continue
			}
			total++
			if predicted[i][j] == labels[i][j] {
				correct++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// meanFloat64 returns the arithmetic mean of values, 0 for an empty slice.
func meanFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
