package face

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/vision"
)

// TemplateSource is the persistence surface the face service needs:
// bulk template load and append-on-enrollment.
type TemplateSource interface {
	ListFaceTemplates(ctx context.Context, stationID *uuid.UUID) ([]models.FaceTemplate, error)
	ListPersonnel(ctx context.Context, stationID *uuid.UUID) ([]models.Personnel, error)
	AddFaceTemplate(ctx context.Context, t *models.FaceTemplate) error
	SetPersonnelPhoto(ctx context.Context, personnelID uuid.UUID, photoKey string) error
}

// PhotoStore persists enrollment photos.
type PhotoStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Service owns the enrolled-template snapshot and runs recognition and
// enrollment against it.
type Service struct {
	extractor *vision.Extractor
	store     TemplateSource
	photos    PhotoStore
	threshold float64

	snapshot atomic.Pointer[TemplateIndex]
}

func NewService(extractor *vision.Extractor, store TemplateSource, photos PhotoStore, threshold float64) *Service {
	s := &Service{
		extractor: extractor,
		store:     store,
		photos:    photos,
		threshold: threshold,
	}
	s.snapshot.Store(BuildIndex(nil, nil))
	return s
}

// Reload builds a fresh snapshot from storage and swaps it in, optionally
// scoped to one station. Recognizers holding the old snapshot keep using it
// unchanged.
func (s *Service) Reload(ctx context.Context, stationID *uuid.UUID) (*TemplateIndex, error) {
	templates, err := s.store.ListFaceTemplates(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("load face templates: %w", err)
	}

	personnel, err := s.store.ListPersonnel(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	names := make(map[uuid.UUID]string, len(personnel))
	for _, p := range personnel {
		names[p.ID] = p.FullName()
	}

	idx := BuildIndex(templates, names)
	s.snapshot.Store(idx)

	observability.TemplatesLoaded.Set(float64(idx.TemplateCount()))
	slog.Info("template snapshot reloaded",
		"templates", idx.TemplateCount(),
		"people", idx.PersonCount(),
	)
	return idx, nil
}

// Snapshot returns the current template index.
func (s *Service) Snapshot() *TemplateIndex {
	return s.snapshot.Load()
}

// Recognition is the result of matching one captured image against the
// snapshot. FaceFound false means no usable face — a retry prompt, not an
// error.
type Recognition struct {
	PersonnelID        *uuid.UUID
	Name               string
	Score              float64
	FaceFound          bool
	DetectorConfidence float32
}

// Recognize extracts a probe from the image and matches it against the
// current snapshot. threshold <= 0 uses the configured default.
func (s *Service) Recognize(imageData []byte, threshold float64) (*Recognition, error) {
	probe, err := s.extractor.Extract(imageData)
	if err != nil {
		return nil, fmt.Errorf("extract probe: %w", err)
	}
	if probe == nil {
		return &Recognition{}, nil
	}
	observability.FacesDetected.Inc()

	if threshold <= 0 {
		threshold = s.threshold
	}

	idx := s.Snapshot()

	start := time.Now()
	personID, score := Recognize(probe.Embedding, idx, threshold)
	observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())

	rec := &Recognition{
		Score:              score,
		FaceFound:          true,
		DetectorConfidence: probe.Confidence,
	}
	if personID != nil {
		rec.PersonnelID = personID
		rec.Name = idx.Name(*personID)
		observability.FacesRecognized.Inc()
	}
	return rec, nil
}

// EnrollResult reports how many rasters were accepted and which were not.
type EnrollResult struct {
	Accepted        int   `json:"accepted"`
	RejectedIndices []int `json:"rejected_indices"`
}

// Enroll extracts and persists a template for each raster that yields a
// usable face. Rasters with no detectable face are skipped, never fatal.
// After the first acceptance the person's canonical display photo is set to
// that raster. Enrollment is append-only: snapshots already handed out are
// not invalidated.
func (s *Service) Enroll(ctx context.Context, personnelID uuid.UUID, rasters [][]byte) (*EnrollResult, error) {
	result := &EnrollResult{}

	for i, raster := range rasters {
		probe, err := s.extractor.Extract(raster)
		if err != nil {
			return nil, fmt.Errorf("extract raster %d: %w", i, err)
		}
		if probe == nil {
			slog.Warn("no face detected in enrollment image", "personnel_id", personnelID, "index", i)
			result.RejectedIndices = append(result.RejectedIndices, i)
			continue
		}

		key := fmt.Sprintf("face_data/%s/%04d_%s.jpg",
			personnelID, i, time.Now().Format("20060102_150405"))
		if err := s.photos.PutObject(ctx, key, raster, "image/jpeg"); err != nil {
			return nil, fmt.Errorf("store enrollment photo: %w", err)
		}

		template := &models.FaceTemplate{
			ID:          uuid.New(),
			PersonnelID: personnelID,
			Embedding:   probe.Embedding,
			Confidence:  probe.Confidence,
			SourceKey:   key,
		}
		if err := s.store.AddFaceTemplate(ctx, template); err != nil {
			return nil, fmt.Errorf("persist face template: %w", err)
		}

		if result.Accepted == 0 {
			if err := s.store.SetPersonnelPhoto(ctx, personnelID, key); err != nil {
				return nil, fmt.Errorf("set display photo: %w", err)
			}
		}
		result.Accepted++
	}

	return result, nil
}
