// Package mathutil provides small numeric helpers shared by the analysis
// and rendering packages.
package mathutil

import (
	"math"
	"sort"
)

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to the range [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Median returns the median of s without modifying it.
// Returns 0 for an empty slice.
func Median(s []float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, s)
	sort.Float64s(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Mean returns the arithmetic mean of s, or 0 for an empty slice.
func Mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// Variance returns the population variance of s, or 0 when len(s) < 2.
func Variance(s []float64) float64 {
	if len(s) < 2 {
		return 0
	}
	mean := Mean(s)
	var sum float64
	for _, v := range s {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(s))
}

// RMS returns the root mean square of s, or 0 for an empty slice.
func RMS(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s)))
}

// LinearToDB converts a linear amplitude to decibels.
// Values at or below floor are clamped to minDB.
func LinearToDB(v float64) float64 {
	if v <= dbFloor {
		return minDB
	}
	db := 20 * math.Log10(v)
	if db < minDB {
		return minDB
	}
	return db
}

// DBToLinear converts decibels to linear amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
