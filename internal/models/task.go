package models

import (
	"time"

	"github.com/google/uuid"
)

// CaptureTask is the message published to NATS for asynchronous capture
// processing. Stations that batch-upload frames go through this path; the
// kiosk capture endpoint runs the same pipeline synchronously.
type CaptureTask struct {
	TaskID    uuid.UUID  `json:"task_id"`
	StationID *uuid.UUID `json:"station_id,omitempty"`
	ImageRef  string     `json:"image_ref"` // MinIO object key
	Timestamp time.Time  `json:"timestamp"`
}

// AttendanceEvent is published after every reconciled recognition so the
// API can broadcast it to live dashboards.
type AttendanceEvent struct {
	TaskID        uuid.UUID        `json:"task_id,omitempty"`
	StationID     *uuid.UUID       `json:"station_id,omitempty"`
	PersonnelID   *uuid.UUID       `json:"personnel_id,omitempty"`
	PersonnelName string           `json:"personnel_name,omitempty"`
	Outcome       Outcome          `json:"outcome,omitempty"`
	Status        AttendanceStatus `json:"status,omitempty"`
	Confidence    float32          `json:"confidence,omitempty"`
	Recognized    bool             `json:"recognized"`
	Timestamp     time.Time        `json:"timestamp"`
}
