package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/retention"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

const clockFormat = "03:04:05 PM"

type AttendanceHandler struct {
	faces    *face.Service
	recon    *attendance.Service
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewAttendanceHandler(faces *face.Service, recon *attendance.Service, minio *storage.MinIOStore, producer *queue.Producer) *AttendanceHandler {
	return &AttendanceHandler{faces: faces, recon: recon, minio: minio, producer: producer}
}

// Capture runs the synchronous kiosk flow: recognize the face in the
// submitted image, then reconcile the attendance record.
func (h *AttendanceHandler) Capture(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imageData, err := decodeBase64Image(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
		return
	}

	observability.CapturesProcessed.WithLabelValues("api").Inc()

	rec, err := h.faces.Recognize(imageData, req.Threshold)
	if err != nil {
		slog.Error("recognize capture", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}
	if !rec.FaceFound {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in the image"})
		return
	}
	if rec.PersonnelID == nil {
		resp := dto.CaptureResponse{Recognized: false, Score: rec.Score, Message: "face not recognized"}
		h.publishEvent(c, req.StationID, nil, "", nil, float32(rec.Score))
		c.JSON(http.StatusOK, resp)
		return
	}

	now := time.Now()

	// Keep the capture image around for review; the retention sweeper
	// reclaims it after the configured horizon.
	imageKey := fmt.Sprintf("%s%s/time_in_%s.jpg",
		retention.TempPrefix, rec.PersonnelID, now.Format("20060102_150405"))
	if err := h.minio.PutObject(c.Request.Context(), imageKey, imageData, "image/jpeg"); err != nil {
		slog.Warn("store capture image", "error", err)
		imageKey = ""
	}

	result, err := h.recon.Process(c.Request.Context(), *rec.PersonnelID, float32(rec.Score), now, imageKey)
	if err != nil {
		if errors.Is(err, attendance.ErrPersonnelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		slog.Error("process attendance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	h.publishEvent(c, req.StationID, rec.PersonnelID, result.PersonnelName, result, float32(rec.Score))

	c.JSON(http.StatusOK, captureResponse(rec, result))
}

func captureResponse(rec *face.Recognition, result *models.ProcessResult) dto.CaptureResponse {
	resp := dto.CaptureResponse{
		Recognized:       true,
		Score:            rec.Score,
		Outcome:          result.Outcome,
		PersonnelID:      rec.PersonnelID,
		PersonnelName:    result.PersonnelName,
		Status:           result.Status,
		RemainingSeconds: result.RemainingSeconds,
	}
	if result.TimeIn != nil {
		resp.TimeIn = result.TimeIn.Format(clockFormat)
	}
	if result.TimeOut != nil {
		resp.TimeOut = result.TimeOut.Format(clockFormat)
	}
	switch result.Outcome {
	case models.OutcomeCooldown:
		resp.Message = fmt.Sprintf("Please wait %d seconds before recording attendance again", result.RemainingSeconds)
	case models.OutcomeAlreadyRecorded:
		if result.TimeOut == nil {
			resp.Message = "You have already recorded your time-in for today"
		} else {
			resp.Message = "Attendance for today is already complete"
		}
	}
	return resp
}

func (h *AttendanceHandler) publishEvent(c *gin.Context, stationID, personnelID *uuid.UUID, name string, result *models.ProcessResult, score float32) {
	event := models.AttendanceEvent{
		StationID:     stationID,
		PersonnelID:   personnelID,
		PersonnelName: name,
		Confidence:    score,
		Recognized:    personnelID != nil,
		Timestamp:     time.Now(),
	}
	if result != nil {
		event.Outcome = result.Outcome
		event.Status = result.Status
	}
	station := "all"
	if stationID != nil {
		station = stationID.String()
	}
	if err := h.producer.PublishEvent(c.Request.Context(), station, event); err != nil {
		slog.Warn("publish attendance event", "error", err)
	}
}

// EnqueueCapture accepts a frame for asynchronous processing: the image is
// staged in object storage and a task is queued for the worker pool.
// Stations that batch-upload use this instead of the synchronous flow.
func (h *AttendanceHandler) EnqueueCapture(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imageData, err := decodeBase64Image(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
		return
	}

	task := models.CaptureTask{
		TaskID:    uuid.New(),
		StationID: req.StationID,
		Timestamp: time.Now(),
	}
	// Named so the retention sweeper can read the capture date back out.
	task.ImageRef = fmt.Sprintf("%squeued/capture_%s_%s.jpg",
		retention.TempPrefix, task.TaskID, task.Timestamp.Format("20060102_150405"))

	if err := h.minio.PutObject(c.Request.Context(), task.ImageRef, imageData, "image/jpeg"); err != nil {
		slog.Error("stage capture image", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	station := "all"
	if req.StationID != nil {
		station = req.StationID.String()
	}
	if err := h.producer.PublishCapture(c.Request.Context(), station, task); err != nil {
		slog.Error("enqueue capture task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.TaskID, "queued": true})
}

// Manual creates an administrative attendance record. No cooldown gate:
// this path is operator-triggered, not camera-triggered.
func (h *AttendanceHandler) Manual(c *gin.Context) {
	var req dto.ManualAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	entry := attendance.ManualEntry{
		PersonnelID: req.PersonnelID,
		Date:        date,
		Status:      req.Status,
		ApproverID:  req.ApproverID,
	}
	if req.TimeIn != "" {
		t, err := combineClock(date, req.TimeIn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time_in"})
			return
		}
		entry.TimeIn = &t
	}
	if req.TimeOut != "" {
		t, err := combineClock(date, req.TimeOut)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time_out"})
			return
		}
		entry.TimeOut = &t
	}

	rec, err := h.recon.CreateManual(c.Request.Context(), entry)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrRecordExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, attendance.ErrOutOfOrder), errors.Is(err, attendance.ErrPersonnelNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.Error("create manual attendance", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		}
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// List returns attendance records with optional filters.
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := attendance.RecordFilter{}

	if v := c.Query("personnel_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid personnel_id"})
			return
		}
		filter.PersonnelID = &id
	}
	if v := c.Query("station_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
			return
		}
		filter.StationID = &id
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		filter.To = &t
	}
	if v := c.Query("status"); v != "" {
		status := models.AttendanceStatus(strings.ToUpper(v))
		filter.Status = &status
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	records, err := h.recon.List(c.Request.Context(), filter)
	if err != nil {
		slog.Error("list attendance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "total": len(records)})
}

// Delete removes a record. Administrative action only.
func (h *AttendanceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	if err := h.recon.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, attendance.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		slog.Error("delete attendance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// SubmitPending files a provisional photographed time-in/time-out.
func (h *AttendanceHandler) SubmitPending(c *gin.Context) {
	var req dto.SubmitPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind != models.PendingTimeIn && req.Kind != models.PendingTimeOut {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be TIME_IN or TIME_OUT"})
		return
	}

	imageData, err := decodeBase64Image(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
		return
	}

	now := time.Now()
	imageKey := fmt.Sprintf("%s%s/pending_%s_%s.jpg",
		retention.TempPrefix, req.PersonnelID,
		strings.ToLower(string(req.Kind)), now.Format("20060102_150405"))
	if err := h.minio.PutObject(c.Request.Context(), imageKey, imageData, "image/jpeg"); err != nil {
		slog.Error("store pending image", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	pending, err := h.recon.SubmitPending(c.Request.Context(), req.PersonnelID, req.Kind, imageKey, req.Notes, now)
	if err != nil {
		if errors.Is(err, attendance.ErrPersonnelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		slog.Error("submit pending attendance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusCreated, pending)
}

// ListPending returns all requests awaiting review.
func (h *AttendanceHandler) ListPending(c *gin.Context) {
	pending, err := h.recon.ListPending(c.Request.Context())
	if err != nil {
		slog.Error("list pending attendance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "total": len(pending)})
}

// ApprovePending merges a provisional request into the canonical record.
func (h *AttendanceHandler) ApprovePending(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var req dto.ApprovePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.recon.ApprovePending(c.Request.Context(), id, req.ApproverID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrPendingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, attendance.ErrTimeInAlreadySet),
			errors.Is(err, attendance.ErrTimeOutAlreadySet),
			errors.Is(err, attendance.ErrOutOfOrder),
			errors.Is(err, attendance.ErrRecordExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			slog.Error("approve pending attendance", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		}
		return
	}

	c.JSON(http.StatusOK, rec)
}

// RejectPending discards a provisional request.
func (h *AttendanceHandler) RejectPending(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var req dto.RejectPendingRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.recon.RejectPending(c.Request.Context(), id, req.Reason); err != nil {
		if errors.Is(err, attendance.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		slog.Error("reject pending attendance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "attendance request rejected"})
}

// decodeBase64Image strips an optional data-URL header and decodes the
// payload.
func decodeBase64Image(s string) ([]byte, error) {
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[idx+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

// combineClock merges a "15:04" clock string onto a calendar date.
func combineClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
