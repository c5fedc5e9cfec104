package attendance

import "errors"

// Attendance domain errors. Business-rule rejections that callers map to
// HTTP 4xx; everything else surfaces as a wrapped processing error.
var (
	ErrPersonnelNotFound = errors.New("personnel not found")

	ErrRecordExists   = errors.New("attendance record already exists for this date")
	ErrRecordNotFound = errors.New("attendance record not found")

	ErrTimeInAlreadySet  = errors.New("time-in already recorded for this date")
	ErrTimeOutAlreadySet = errors.New("time-out already recorded for this date")
	ErrOutOfOrder        = errors.New("time-out must not precede time-in")

	ErrPendingNotFound = errors.New("pending attendance request not found")
)
