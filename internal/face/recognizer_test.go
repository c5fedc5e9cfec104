package face

import (
	"math"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/models"
)

func unitVec(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

func buildTestIndex(t *testing.T, entries map[uuid.UUID][][]float32) *TemplateIndex {
	t.Helper()
	var templates []models.FaceTemplate
	names := make(map[uuid.UUID]string)
	for id, embeddings := range entries {
		names[id] = "Person " + id.String()[:8]
		for _, e := range embeddings {
			templates = append(templates, models.FaceTemplate{
				ID:          uuid.New(),
				PersonnelID: id,
				Embedding:   e,
			})
		}
	}
	return BuildIndex(templates, names)
}

func TestRecognizePicksHighestScore(t *testing.T) {
	near := uuid.New()
	far := uuid.New()
	idx := buildTestIndex(t, map[uuid.UUID][][]float32{
		near: {unitVec(0.1)},
		far:  {unitVec(0.8)},
	})

	id, score := Recognize(unitVec(0), idx, 0.5)
	require.NotNil(t, id)
	assert.Equal(t, near, *id)
	assert.InDelta(t, math.Cos(0.1), score, 1e-6)
}

func TestRecognizeBelowThreshold(t *testing.T) {
	person := uuid.New()
	idx := buildTestIndex(t, map[uuid.UUID][][]float32{
		person: {unitVec(1.2)},
	})

	id, score := Recognize(unitVec(0), idx, 0.9)
	assert.Nil(t, id)
	assert.Equal(t, 0.0, score)
}

func TestRecognizeEmptyIndex(t *testing.T) {
	idx := BuildIndex(nil, nil)
	id, score := Recognize(unitVec(0), idx, 0.5)
	assert.Nil(t, id)
	assert.Equal(t, 0.0, score)
}

func TestRecognizeEmptyProbe(t *testing.T) {
	person := uuid.New()
	idx := buildTestIndex(t, map[uuid.UUID][][]float32{
		person: {unitVec(0)},
	})
	id, _ := Recognize(nil, idx, 0.5)
	assert.Nil(t, id)
}

func TestRecognizeTieIsDeterministic(t *testing.T) {
	// Two people with identical templates: the winner must be the same on
	// every call, and must be the person whose ID sorts first.
	a := uuid.New()
	b := uuid.New()
	template := unitVec(0)
	idx := buildTestIndex(t, map[uuid.UUID][][]float32{
		a: {template},
		b: {template},
	})

	ids := []string{a.String(), b.String()}
	sort.Strings(ids)

	first, _ := Recognize(unitVec(0), idx, 0.5)
	require.NotNil(t, first)
	assert.Equal(t, ids[0], first.String())

	for i := 0; i < 10; i++ {
		again, _ := Recognize(unitVec(0), idx, 0.5)
		require.NotNil(t, again)
		assert.Equal(t, *first, *again)
	}
}

func TestRecognizeMultipleTemplatesPerPerson(t *testing.T) {
	person := uuid.New()
	idx := buildTestIndex(t, map[uuid.UUID][][]float32{
		person: {unitVec(1.2), unitVec(0.05), unitVec(0.9)},
	})

	id, score := Recognize(unitVec(0), idx, 0.75)
	require.NotNil(t, id)
	assert.Equal(t, person, *id)
	assert.InDelta(t, math.Cos(0.05), score, 1e-6)
}

func TestBuildIndexSkipsEmptyEmbeddings(t *testing.T) {
	person := uuid.New()
	idx := BuildIndex([]models.FaceTemplate{
		{ID: uuid.New(), PersonnelID: person, Embedding: nil},
		{ID: uuid.New(), PersonnelID: person, Embedding: unitVec(0)},
	}, map[uuid.UUID]string{person: "P"})

	assert.Equal(t, 1, idx.TemplateCount())
	assert.Equal(t, 1, idx.PersonCount())
	assert.Equal(t, "P", idx.Name(person))
}
