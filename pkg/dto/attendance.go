package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
)

// CaptureRequest is one kiosk/camera frame submitted for recognition.
// Image is base64-encoded, with or without a data-URL header.
type CaptureRequest struct {
	Image     string     `json:"image" binding:"required"`
	StationID *uuid.UUID `json:"station_id,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
}

type CaptureResponse struct {
	Recognized       bool                    `json:"recognized"`
	Score            float64                 `json:"score,omitempty"`
	Outcome          models.Outcome          `json:"outcome,omitempty"`
	PersonnelID      *uuid.UUID              `json:"personnel_id,omitempty"`
	PersonnelName    string                  `json:"personnel_name,omitempty"`
	Status           models.AttendanceStatus `json:"status,omitempty"`
	TimeIn           string                  `json:"time_in,omitempty"`
	TimeOut          string                  `json:"time_out,omitempty"`
	RemainingSeconds int                     `json:"remaining_seconds,omitempty"`
	Message          string                  `json:"message,omitempty"`
}

type ManualAttendanceRequest struct {
	PersonnelID uuid.UUID               `json:"personnel_id" binding:"required"`
	Date        string                  `json:"date" binding:"required"`    // "2006-01-02"
	TimeIn      string                  `json:"time_in,omitempty"`          // "15:04"
	TimeOut     string                  `json:"time_out,omitempty"`         // "15:04"
	Status      models.AttendanceStatus `json:"status" binding:"required"`
	ApproverID  uuid.UUID               `json:"approver_id" binding:"required"`
}

type SubmitPendingRequest struct {
	PersonnelID uuid.UUID          `json:"personnel_id" binding:"required"`
	Kind        models.PendingKind `json:"kind" binding:"required"`
	Image       string             `json:"image" binding:"required"`
	Notes       string             `json:"notes,omitempty"`
}

type ApprovePendingRequest struct {
	ApproverID uuid.UUID `json:"approver_id" binding:"required"`
}

type RejectPendingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// WSEvent is what the hub pushes to live dashboards.
type WSEvent struct {
	Type    string      `json:"type"`
	Station string      `json:"station,omitempty"`
	Data    interface{} `json:"data"`
}
