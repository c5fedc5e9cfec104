package face

import (
	"github.com/google/uuid"
)

// Recognize scans every template in the snapshot and returns the identity
// with the single highest similarity that clears the threshold, or nil if
// none does. Equal scores keep the earlier-seen candidate; the snapshot's
// sorted key order makes that deterministic.
//
// The scan is O(total templates), which is fine at roster scale.
func Recognize(probe []float32, idx *TemplateIndex, threshold float64) (*uuid.UUID, float64) {
	if len(probe) == 0 || idx == nil || len(idx.keys) == 0 {
		return nil, 0
	}

	var recognized *uuid.UUID
	maxSimilarity := 0.0

	for _, personID := range idx.keys {
		entry := idx.people[personID]
		for _, template := range entry.embeddings {
			similarity, match := Match(probe, template, threshold)
			if match && similarity > maxSimilarity {
				maxSimilarity = similarity
				id := personID
				recognized = &id
			}
		}
	}

	return recognized, maxSimilarity
}
