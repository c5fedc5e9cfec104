package models

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusAbsent  AttendanceStatus = "ABSENT"
)

// Outcome is the business result of one recognition event hitting the
// reconciler. Processing failures are Go errors, never an outcome.
type Outcome string

const (
	OutcomeTimeIn          Outcome = "time_in"
	OutcomeCooldown        Outcome = "cooldown"
	OutcomeAlreadyRecorded Outcome = "already_recorded"
)

// AttendanceRecord is the single daily presence record for one person.
// At most one record exists per (personnel, date); the database enforces
// this with a unique constraint.
type AttendanceRecord struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	PersonnelID   uuid.UUID        `json:"personnel_id" db:"personnel_id"`
	Date          time.Time        `json:"date" db:"date"`
	TimeIn        *time.Time       `json:"time_in,omitempty" db:"time_in"`
	TimeOut       *time.Time       `json:"time_out,omitempty" db:"time_out"`
	Status        AttendanceStatus `json:"status" db:"status"`
	Confidence    *float32         `json:"confidence,omitempty" db:"confidence"`
	AutoCaptured  bool             `json:"auto_captured" db:"auto_captured"`
	Approved      bool             `json:"approved" db:"approved"`
	ApprovedBy    *uuid.UUID       `json:"approved_by,omitempty" db:"approved_by"`
	TimeInImage   string           `json:"time_in_image,omitempty" db:"time_in_image"`
	TimeOutImage  string           `json:"time_out_image,omitempty" db:"time_out_image"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`

	// Joined display fields, not persisted on this table.
	PersonnelName string `json:"personnel_name,omitempty" db:"-"`
}

// WorkHours returns the elapsed shift length in hours, 0 while the day
// is still open.
func (a *AttendanceRecord) WorkHours() float64 {
	if a.TimeIn == nil || a.TimeOut == nil {
		return 0
	}
	return a.TimeOut.Sub(*a.TimeIn).Hours()
}

type PendingKind string

const (
	PendingTimeIn  PendingKind = "TIME_IN"
	PendingTimeOut PendingKind = "TIME_OUT"
)

// PendingAttendance is a provisional photographed time-in/time-out waiting
// for an administrator to approve or reject it. Approval merges it into the
// canonical AttendanceRecord; rejection discards it.
type PendingAttendance struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	PersonnelID uuid.UUID   `json:"personnel_id" db:"personnel_id"`
	Date        time.Time   `json:"date" db:"date"`
	Kind        PendingKind `json:"kind" db:"kind"`
	ImageKey    string      `json:"image_key" db:"image_key"`
	Notes       string      `json:"notes" db:"notes"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	PersonnelName string `json:"personnel_name,omitempty" db:"-"`
}

// ProcessResult is what the reconciler reports back for one recognition
// event.
type ProcessResult struct {
	Outcome          Outcome          `json:"outcome"`
	PersonnelID      uuid.UUID        `json:"personnel_id"`
	PersonnelName    string           `json:"personnel_name"`
	Status           AttendanceStatus `json:"status,omitempty"`
	TimeIn           *time.Time       `json:"time_in,omitempty"`
	TimeOut          *time.Time       `json:"time_out,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds,omitempty"`
	Confidence       float32          `json:"confidence,omitempty"`
}
