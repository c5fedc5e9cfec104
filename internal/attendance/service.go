package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// Service is the attendance reconciler: it decides how one recognition
// event affects the day's record. The decision sequence is a check-then-act,
// so it is serialized per person in-process, with the (personnel, date)
// uniqueness constraint as the cross-process backstop.
type Service struct {
	repo     Repository
	images   ImageRemover
	cooldown time.Duration

	workStartHour   int
	workStartMinute int

	locks sync.Map // personnel uuid.UUID -> *sync.Mutex
}

func NewService(repo Repository, images ImageRemover, cooldown time.Duration, workStartHour, workStartMinute int) *Service {
	return &Service{
		repo:            repo,
		images:          images,
		cooldown:        cooldown,
		workStartHour:   workStartHour,
		workStartMinute: workStartMinute,
	}
}

func (s *Service) lockFor(personnelID uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(personnelID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Process runs the reconciliation state machine for one recognition event.
// Outcomes are business results; an error means the record state is
// unchanged and the caller should report a processing failure.
func (s *Service) Process(ctx context.Context, personnelID uuid.UUID, confidence float32, now time.Time, imageKey string) (*models.ProcessResult, error) {
	mu := s.lockFor(personnelID)
	mu.Lock()
	defer mu.Unlock()

	result, err := s.process(ctx, personnelID, confidence, now, imageKey)
	if errors.Is(err, ErrRecordExists) {
		// A concurrent writer beat us to the insert. Re-read and decide again;
		// the fresh cycle lands on cooldown or already_recorded.
		result, err = s.process(ctx, personnelID, confidence, now, imageKey)
	}
	if err != nil {
		return nil, err
	}

	observability.AttendanceOutcomes.WithLabelValues(string(result.Outcome)).Inc()
	return result, nil
}

func (s *Service) process(ctx context.Context, personnelID uuid.UUID, confidence float32, now time.Time, imageKey string) (*models.ProcessResult, error) {
	personnel, err := s.repo.GetPersonnel(ctx, personnelID)
	if err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	if personnel == nil {
		return nil, ErrPersonnelNotFound
	}

	result := &models.ProcessResult{
		PersonnelID:   personnelID,
		PersonnelName: personnel.FullName(),
		Confidence:    confidence,
	}

	today := dateOf(now)

	// 1. Cooldown gate: global across all dates, so rapid re-triggers are
	// suppressed even around midnight boundaries.
	lastAction, err := s.repo.LastActionAt(ctx, personnelID)
	if err != nil {
		return nil, fmt.Errorf("load last action: %w", err)
	}
	if lastAction != nil {
		elapsed := now.Sub(*lastAction)
		if elapsed >= 0 && elapsed < s.cooldown {
			result.Outcome = models.OutcomeCooldown
			result.RemainingSeconds = int((s.cooldown - elapsed).Seconds())
			if rec, err := s.repo.GetRecord(ctx, personnelID, today); err == nil && rec != nil {
				result.TimeIn = rec.TimeIn
				result.TimeOut = rec.TimeOut
			}
			return result, nil
		}
	}

	rec, err := s.repo.GetRecord(ctx, personnelID, today)
	if err != nil {
		return nil, fmt.Errorf("load attendance record: %w", err)
	}

	// 2. First trigger of the day: open the record.
	if rec == nil {
		status := models.StatusPresent
		if s.isLate(now) {
			status = models.StatusLate
		}

		timeIn := now
		conf := confidence
		newRec := &models.AttendanceRecord{
			ID:           uuid.New(),
			PersonnelID:  personnelID,
			Date:         today,
			TimeIn:       &timeIn,
			Status:       status,
			Confidence:   &conf,
			AutoCaptured: true,
			TimeInImage:  imageKey,
		}
		if err := s.repo.CreateRecord(ctx, newRec); err != nil {
			if errors.Is(err, ErrRecordExists) {
				return nil, err
			}
			return nil, fmt.Errorf("create attendance record: %w", err)
		}

		result.Outcome = models.OutcomeTimeIn
		result.Status = status
		result.TimeIn = &timeIn
		slog.Info("time-in recorded",
			"personnel", personnel.FullName(),
			"status", status,
			"confidence", confidence,
		)
		return result, nil
	}

	// 3 & 4. A record exists: never mutate it from a bare recognition event.
	// While time_out is unset we cannot tell "arriving again" from "leaving"
	// without an explicit caller intent, so both shapes report
	// already_recorded.
	result.Outcome = models.OutcomeAlreadyRecorded
	result.Status = rec.Status
	result.TimeIn = rec.TimeIn
	result.TimeOut = rec.TimeOut
	return result, nil
}

// isLate reports whether the time-of-day is strictly after the configured
// work start.
func (s *Service) isLate(now time.Time) bool {
	nowSeconds := now.Hour()*3600 + now.Minute()*60 + now.Second()
	startSeconds := s.workStartHour*3600 + s.workStartMinute*60
	return nowSeconds > startSeconds
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ManualEntry is an administrative record created outside the automatic
// path. It skips the cooldown gate but still honors the one-record-per-day
// and ordering invariants.
type ManualEntry struct {
	PersonnelID uuid.UUID
	Date        time.Time
	TimeIn      *time.Time
	TimeOut     *time.Time
	Status      models.AttendanceStatus
	Confidence  *float32
	ApproverID  uuid.UUID
}

// CreateManual inserts an administrative attendance record.
func (s *Service) CreateManual(ctx context.Context, entry ManualEntry) (*models.AttendanceRecord, error) {
	if entry.TimeIn != nil && entry.TimeOut != nil && entry.TimeOut.Before(*entry.TimeIn) {
		return nil, ErrOutOfOrder
	}

	personnel, err := s.repo.GetPersonnel(ctx, entry.PersonnelID)
	if err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	if personnel == nil {
		return nil, ErrPersonnelNotFound
	}

	approver := entry.ApproverID
	rec := &models.AttendanceRecord{
		ID:           uuid.New(),
		PersonnelID:  entry.PersonnelID,
		Date:         dateOf(entry.Date),
		TimeIn:       entry.TimeIn,
		TimeOut:      entry.TimeOut,
		Status:       entry.Status,
		Confidence:   entry.Confidence,
		AutoCaptured: false,
		Approved:     true,
		ApprovedBy:   &approver,
	}
	if err := s.repo.CreateRecord(ctx, rec); err != nil {
		if errors.Is(err, ErrRecordExists) {
			return nil, ErrRecordExists
		}
		return nil, fmt.Errorf("create manual record: %w", err)
	}

	slog.Info("manual attendance added",
		"personnel", personnel.FullName(),
		"date", rec.Date.Format("2006-01-02"),
		"approver", entry.ApproverID,
	)
	return rec, nil
}

// SubmitPending files a provisional photographed time-in/time-out for later
// administrative review.
func (s *Service) SubmitPending(ctx context.Context, personnelID uuid.UUID, kind models.PendingKind, imageKey, notes string, now time.Time) (*models.PendingAttendance, error) {
	personnel, err := s.repo.GetPersonnel(ctx, personnelID)
	if err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	if personnel == nil {
		return nil, ErrPersonnelNotFound
	}

	p := &models.PendingAttendance{
		ID:          uuid.New(),
		PersonnelID: personnelID,
		Date:        dateOf(now),
		Kind:        kind,
		ImageKey:    imageKey,
		Notes:       notes,
	}
	if err := s.repo.CreatePending(ctx, p); err != nil {
		return nil, fmt.Errorf("create pending request: %w", err)
	}
	return p, nil
}

// ApprovePending merges a provisional request into the canonical record,
// never overwriting an already-set field and keeping time-in before
// time-out. The merged instant is the approval time.
func (s *Service) ApprovePending(ctx context.Context, requestID, approverID uuid.UUID, now time.Time) (*models.AttendanceRecord, error) {
	pending, err := s.repo.GetPending(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load pending request: %w", err)
	}
	if pending == nil {
		return nil, ErrPendingNotFound
	}

	rec, err := s.repo.GetRecord(ctx, pending.PersonnelID, pending.Date)
	if err != nil {
		return nil, fmt.Errorf("load attendance record: %w", err)
	}

	approver := approverID
	if rec != nil {
		switch pending.Kind {
		case models.PendingTimeIn:
			if rec.TimeIn != nil {
				return nil, ErrTimeInAlreadySet
			}
			if rec.TimeOut != nil && now.After(*rec.TimeOut) {
				return nil, ErrOutOfOrder
			}
			rec.TimeIn = &now
			rec.TimeInImage = pending.ImageKey
		case models.PendingTimeOut:
			if rec.TimeOut != nil {
				return nil, ErrTimeOutAlreadySet
			}
			if rec.TimeIn != nil && now.Before(*rec.TimeIn) {
				return nil, ErrOutOfOrder
			}
			rec.TimeOut = &now
			rec.TimeOutImage = pending.ImageKey
		}
		rec.Approved = true
		rec.ApprovedBy = &approver

		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("update attendance record: %w", err)
		}
	} else {
		rec = &models.AttendanceRecord{
			ID:           uuid.New(),
			PersonnelID:  pending.PersonnelID,
			Date:         pending.Date,
			Status:       models.StatusPresent,
			AutoCaptured: false,
			Approved:     true,
			ApprovedBy:   &approver,
		}
		switch pending.Kind {
		case models.PendingTimeIn:
			rec.TimeIn = &now
			rec.TimeInImage = pending.ImageKey
		case models.PendingTimeOut:
			rec.TimeOut = &now
			rec.TimeOutImage = pending.ImageKey
		}
		if err := s.repo.CreateRecord(ctx, rec); err != nil {
			if errors.Is(err, ErrRecordExists) {
				return nil, ErrRecordExists
			}
			return nil, fmt.Errorf("create attendance record: %w", err)
		}
	}

	if err := s.repo.DeletePending(ctx, requestID); err != nil {
		return nil, fmt.Errorf("remove pending request: %w", err)
	}

	slog.Info("pending attendance approved",
		"personnel_id", pending.PersonnelID,
		"kind", pending.Kind,
		"approver", approverID,
	)
	return rec, nil
}

// RejectPending discards a provisional request and its capture image. No
// attendance record is created.
func (s *Service) RejectPending(ctx context.Context, requestID uuid.UUID, reason string) error {
	pending, err := s.repo.GetPending(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load pending request: %w", err)
	}
	if pending == nil {
		return ErrPendingNotFound
	}

	if pending.ImageKey != "" && s.images != nil {
		if err := s.images.DeleteObject(ctx, pending.ImageKey); err != nil {
			slog.Warn("delete pending capture image", "key", pending.ImageKey, "error", err)
		}
	}

	if err := s.repo.DeletePending(ctx, requestID); err != nil {
		return fmt.Errorf("remove pending request: %w", err)
	}

	slog.Info("pending attendance rejected", "personnel_id", pending.PersonnelID, "reason", reason)
	return nil
}

// ListPending returns all pending requests awaiting review.
func (s *Service) ListPending(ctx context.Context) ([]models.PendingAttendance, error) {
	return s.repo.ListPending(ctx)
}

// List returns attendance records matching the filter.
func (s *Service) List(ctx context.Context, filter RecordFilter) ([]models.AttendanceRecord, error) {
	return s.repo.ListRecords(ctx, filter)
}

// Delete removes a record. Administrative action only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRecord(ctx, id)
}
