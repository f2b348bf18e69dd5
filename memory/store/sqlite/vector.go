package sqlite

import (
	"math"
	"sort"

	"github.com/becomeliminal/nim-recall/memory"
)

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float32
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}

// sortMatches orders by similarity desc, then most recently updated, then id,
// so equal scores come back in a stable order.
func sortMatches(m []memory.Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Similarity != m[j].Similarity {
			return m[i].Similarity > m[j].Similarity
		}
		if !m[i].Memory.UpdatedAt.Equal(m[j].Memory.UpdatedAt) {
			return m[i].Memory.UpdatedAt.After(m[j].Memory.UpdatedAt)
		}
		return m[i].Memory.ID < m[j].Memory.ID
	})
}
