package face

import (
	"sort"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
)

type personEntry struct {
	name       string
	embeddings [][]float32
}

// TemplateIndex is an immutable point-in-time snapshot of all enrolled
// templates. Recognizers share it safely across goroutines; templates
// enrolled after the snapshot was taken are simply not visible until the
// next reload.
type TemplateIndex struct {
	people map[uuid.UUID]*personEntry
	// keys holds personnel IDs in sorted order so that the scan order — and
	// therefore the "first highest wins" tie-break — is deterministic.
	keys []uuid.UUID

	templateCount int
}

// BuildIndex groups templates by personnel. Unknown personnel IDs keep an
// empty display name.
func BuildIndex(templates []models.FaceTemplate, names map[uuid.UUID]string) *TemplateIndex {
	idx := &TemplateIndex{people: make(map[uuid.UUID]*personEntry)}

	for _, t := range templates {
		if len(t.Embedding) == 0 {
			continue
		}
		entry, ok := idx.people[t.PersonnelID]
		if !ok {
			entry = &personEntry{name: names[t.PersonnelID]}
			idx.people[t.PersonnelID] = entry
			idx.keys = append(idx.keys, t.PersonnelID)
		}
		entry.embeddings = append(entry.embeddings, t.Embedding)
		idx.templateCount++
	}

	sort.Slice(idx.keys, func(i, j int) bool {
		return idx.keys[i].String() < idx.keys[j].String()
	})

	return idx
}

// Name returns the display name for a person in the snapshot.
func (idx *TemplateIndex) Name(id uuid.UUID) string {
	if entry, ok := idx.people[id]; ok {
		return entry.name
	}
	return ""
}

// TemplateCount returns the number of embeddings in the snapshot.
func (idx *TemplateIndex) TemplateCount() int {
	return idx.templateCount
}

// PersonCount returns the number of enrolled people in the snapshot.
func (idx *TemplateIndex) PersonCount() int {
	return len(idx.people)
}
