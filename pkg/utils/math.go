package utils

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// ArgMin returns the index of the first smallest element, or -1 if xs is
// empty.
func ArgMin(xs []float64) int {
	best := -1
	for i, v := range xs {
		if best < 0 || v < xs[best] {
			best = i
		}
	}
	return best
}

// ArgMax returns the index of the first largest element, or -1 if xs is
// empty.
func ArgMax(xs []float64) int {
	best := -1
	for i, v := range xs {
		if best < 0 || v > xs[best] {
			best = i
		}
	}
	return best
}
