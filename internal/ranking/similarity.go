// Package ranking scores job listings against candidate profiles.
package ranking

import (
	"math"
	"sort"
)

// DefaultThreshold is the minimum cosine similarity for a match.
const DefaultThreshold = 0.70

// Cosine returns dot(a,b)/(|a|*|b|) computed in float64. It returns 0
// when either vector has zero norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsMatch reports whether score reaches threshold. The comparison is
// inclusive.
func IsMatch(score, threshold float64) bool {
	return score >= threshold
}

// SortByScore orders items by descending score, keeping the input order
// for ties.
func SortByScore[T any](items []T, score func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return score(items[i]) > score(items[j])
	})
}
