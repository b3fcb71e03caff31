package embeddings

import "math"

// FitDimensions zero-pads or truncates vec to size. Padding leaves cosine
// similarity unchanged.
func FitDimensions(vec []float32, size int) []float32 {
	switch {
	case len(vec) == size:
		return vec
	case len(vec) > size:
		return vec[:size]
	}

	out := make([]float32, size)
	copy(out, vec)

	return out
}

// Normalize scales vec to unit length in place. A zero vector is returned as is.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}

	return vec
}
