package face

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/vision"
)

// fixedDetector always finds one face covering most of the frame.
type fixedDetector struct {
	detections []vision.Detection
}

func (d *fixedDetector) Detect(imgData []float32, origW, origH int) ([]vision.Detection, error) {
	return d.detections, nil
}

func (d *fixedDetector) InputSize() (int, int) { return 64, 64 }

type fakeTemplateSource struct {
	templates []models.FaceTemplate
	personnel []models.Personnel
	photos    map[uuid.UUID]string
}

func (f *fakeTemplateSource) ListFaceTemplates(ctx context.Context, stationID *uuid.UUID) ([]models.FaceTemplate, error) {
	return f.templates, nil
}

func (f *fakeTemplateSource) ListPersonnel(ctx context.Context, stationID *uuid.UUID) ([]models.Personnel, error) {
	return f.personnel, nil
}

func (f *fakeTemplateSource) AddFaceTemplate(ctx context.Context, t *models.FaceTemplate) error {
	f.templates = append(f.templates, *t)
	return nil
}

func (f *fakeTemplateSource) SetPersonnelPhoto(ctx context.Context, personnelID uuid.UUID, photoKey string) error {
	if f.photos == nil {
		f.photos = make(map[uuid.UUID]string)
	}
	f.photos[personnelID] = photoKey
	return nil
}

type fakePhotoStore struct {
	keys []string
}

func (f *fakePhotoStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	f.keys = append(f.keys, key)
	return nil
}

// facePNG renders a bright square on black, so the enrolled embedding has a
// stable non-zero pattern.
func facePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 20; y < 80; y++ {
		for x := 20; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: 220, G: 200, B: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestFaceService(t *testing.T, store *fakeTemplateSource, photos *fakePhotoStore) *Service {
	det := &fixedDetector{detections: []vision.Detection{
		{BBox: [4]float32{10, 10, 90, 90}, Confidence: 0.9},
	}}
	return NewService(vision.NewExtractor(det, 16), store, photos, 0.75)
}

func TestEnrollThenRecognize(t *testing.T) {
	store := &fakeTemplateSource{}
	photos := &fakePhotoStore{}
	svc := newTestFaceService(t, store, photos)
	ctx := context.Background()

	personID := uuid.New()
	store.personnel = []models.Personnel{{ID: personID, FirstName: "Ana", LastName: "Reyes"}}

	img := facePNG(t)
	result, err := svc.Enroll(ctx, personID, [][]byte{img})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Empty(t, result.RejectedIndices)
	assert.Len(t, photos.keys, 1)
	assert.Equal(t, photos.keys[0], store.photos[personID])

	_, err = svc.Reload(ctx, nil)
	require.NoError(t, err)

	rec, err := svc.Recognize(img, 0)
	require.NoError(t, err)
	assert.True(t, rec.FaceFound)
	require.NotNil(t, rec.PersonnelID)
	assert.Equal(t, personID, *rec.PersonnelID)
	assert.Equal(t, "Ana Reyes", rec.Name)
	assert.InDelta(t, 1.0, rec.Score, 1e-4)
}

func TestEnrollSkipsUndecodableRasters(t *testing.T) {
	store := &fakeTemplateSource{}
	photos := &fakePhotoStore{}
	svc := newTestFaceService(t, store, photos)

	personID := uuid.New()
	result, err := svc.Enroll(context.Background(), personID, [][]byte{
		[]byte("garbage"),
		facePNG(t),
		[]byte("more garbage"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, []int{0, 2}, result.RejectedIndices)
	// The first accepted raster becomes the display photo.
	assert.Equal(t, photos.keys[0], store.photos[personID])
}

func TestRecognizeNoFace(t *testing.T) {
	svc := newTestFaceService(t, &fakeTemplateSource{}, &fakePhotoStore{})
	rec, err := svc.Recognize([]byte("not an image"), 0)
	require.NoError(t, err)
	assert.False(t, rec.FaceFound)
	assert.Nil(t, rec.PersonnelID)
}

func TestRecognizeEmptySnapshot(t *testing.T) {
	svc := newTestFaceService(t, &fakeTemplateSource{}, &fakePhotoStore{})
	rec, err := svc.Recognize(facePNG(t), 0)
	require.NoError(t, err)
	assert.True(t, rec.FaceFound)
	assert.Nil(t, rec.PersonnelID)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	store := &fakeTemplateSource{}
	svc := newTestFaceService(t, store, &fakePhotoStore{})
	ctx := context.Background()

	old := svc.Snapshot()
	assert.Equal(t, 0, old.TemplateCount())

	personID := uuid.New()
	store.personnel = []models.Personnel{{ID: personID, FirstName: "Bo", LastName: "Tan"}}
	store.templates = []models.FaceTemplate{{
		ID:          uuid.New(),
		PersonnelID: personID,
		Embedding:   []float32{1, 0, 0},
	}}

	idx, err := svc.Reload(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.TemplateCount())
	assert.Same(t, idx, svc.Snapshot())

	// The old snapshot is untouched.
	assert.Equal(t, 0, old.TemplateCount())
}
