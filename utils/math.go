package utils

import "math/rand"

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}

// MinInt returns the smaller of a and b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ClampF64 clamps x to [low, high].
func ClampF64(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// ClampInt clamps x to [low, high].
func ClampInt(x, low, high int) int {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// Square returns n*n. Math.pow( x, 2 ) is slow, this is faster.
func Square(n float64) float64 {
	return n * n
}

// SampleRandomIntRange samples a random integer within a range given by [min, max]
// using the given rand.Rand.
func SampleRandomIntRange(min, max int, r *rand.Rand) int {
	return r.Intn(max-min+1) + min
}

// SampleDistinctIndices draws k distinct indices from [0, n) with a partial Fisher-Yates shuffle of scratch.
// scratch must hold n elements; it is permuted in place and may be reused across calls.
func SampleDistinctIndices(k int, scratch []int, r *rand.Rand) []int {
	n := len(scratch)
	if k > n {
		k = n
	}
	for i := 0; i < k; i++ {
		j := SampleRandomIntRange(i, n-1, r)
		scratch[i], scratch[j] = scratch[j], scratch[i]
	}
	return scratch[:k]
}

// Range returns the integers [0, n).
func Range(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
