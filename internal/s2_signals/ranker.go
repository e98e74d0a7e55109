package s2_signals

import (
	"math"
	"sort"
)

// zeroStdTolerance treats a cross-section whose spread is pure rounding noise as flat
const zeroStdTolerance = 1e-12

// ZScores standardizes values with the sample standard deviation.
// A flat or single-element cross-section yields all zeros.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	n := len(values)
	if n < 2 {
		return out
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	ss := 0.0
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(n-1))

	if std <= zeroStdTolerance*math.Max(1, math.Abs(mean)) {
		return out
	}

	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// sortCandidates orders by composite descending, then symbol ascending
func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Composite != cands[j].Composite {
			return cands[i].Composite > cands[j].Composite
		}
		return cands[i].Symbol < cands[j].Symbol
	})
}
