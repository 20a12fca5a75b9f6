package optimizer

import (
	"math"
	"math/rand/v2"
)

// sampleWeights draws a candidate allocation into w:
// uniform draws, normalize to 1, clamp to [lo, hi], normalize again.
// The second normalization can push a weight slightly past a bound when
// bounds are tight; that approximation is accepted.
// Returns false when the draw degenerates to an all-zero vector.
func sampleWeights(rng *rand.Rand, w []float64, lo, hi float64) bool {
	var sum float64
	for i := range w {
		w[i] = rng.Float64()
		sum += w[i]
	}
	if sum == 0 {
		return false
	}

	sum2 := 0.0
	for i := range w {
		w[i] = math.Min(math.Max(w[i]/sum, lo), hi)
		sum2 += w[i]
	}
	if sum2 == 0 {
		return false
	}

	for i := range w {
		w[i] /= sum2
	}
	return true
}
