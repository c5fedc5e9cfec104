package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
)

// RecordFilter narrows attendance listings.
type RecordFilter struct {
	PersonnelID *uuid.UUID
	StationID   *uuid.UUID
	From        *time.Time
	To          *time.Time
	Status      *models.AttendanceStatus
	Limit       int
	Offset      int
}

// Repository is the transactional persistence surface the reconciler
// depends on. CreateRecord must return ErrRecordExists when the
// (personnel, date) uniqueness constraint is violated — that constraint is
// the authoritative guard against concurrent duplicate triggers.
type Repository interface {
	GetPersonnel(ctx context.Context, id uuid.UUID) (*models.Personnel, error)

	// LastActionAt returns the most recent time-in or time-out across all of
	// the person's records, or nil if none exist.
	LastActionAt(ctx context.Context, personnelID uuid.UUID) (*time.Time, error)

	GetRecord(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.AttendanceRecord, error)
	CreateRecord(ctx context.Context, rec *models.AttendanceRecord) error
	UpdateRecord(ctx context.Context, rec *models.AttendanceRecord) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]models.AttendanceRecord, error)

	CreatePending(ctx context.Context, p *models.PendingAttendance) error
	GetPending(ctx context.Context, id uuid.UUID) (*models.PendingAttendance, error)
	ListPending(ctx context.Context) ([]models.PendingAttendance, error)
	DeletePending(ctx context.Context, id uuid.UUID) error
}

// ImageRemover deletes a stored capture image, used when a pending request
// is rejected.
type ImageRemover interface {
	DeleteObject(ctx context.Context, key string) error
}
