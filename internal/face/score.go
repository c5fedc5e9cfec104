package face

import "math"

// Similarity computes the cosine similarity between two embeddings.
// Mismatched dimensionality or a zero-norm vector yields 0. The function
// is total: every input pair produces a deterministic score.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Match reports the similarity of two embeddings and whether it clears the
// threshold.
func Match(a, b []float32, threshold float64) (float64, bool) {
	score := Similarity(a, b)
	return score, score >= threshold
}
