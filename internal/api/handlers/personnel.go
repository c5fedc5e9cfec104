package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

type PersonnelHandler struct {
	db    *storage.PostgresStore
	faces *face.Service
}

func NewPersonnelHandler(db *storage.PostgresStore, faces *face.Service) *PersonnelHandler {
	return &PersonnelHandler{db: db, faces: faces}
}

func (h *PersonnelHandler) Create(c *gin.Context) {
	var req dto.CreatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.Personnel{
		ID:        uuid.New(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Rank:      req.Rank,
		StationID: req.StationID,
	}
	if err := h.db.CreatePersonnel(c.Request.Context(), p); err != nil {
		slog.Error("create personnel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusCreated, personnelResponse(p, 0))
}

func (h *PersonnelHandler) List(c *gin.Context) {
	var stationID *uuid.UUID
	if v := c.Query("station_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
			return
		}
		stationID = &id
	}

	people, err := h.db.ListPersonnel(c.Request.Context(), stationID)
	if err != nil {
		slog.Error("list personnel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	resp := make([]dto.PersonnelResponse, 0, len(people))
	for i := range people {
		resp = append(resp, personnelResponse(&people[i], -1))
	}
	c.JSON(http.StatusOK, gin.H{"personnel": resp, "total": len(resp)})
}

func (h *PersonnelHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid personnel id"})
		return
	}

	p, err := h.db.GetPersonnel(c.Request.Context(), id)
	if err != nil {
		slog.Error("get personnel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "personnel not found"})
		return
	}

	templates, err := h.db.ListFaceTemplatesForPersonnel(c.Request.Context(), id)
	if err != nil {
		slog.Error("count face templates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusOK, personnelResponse(p, len(templates)))
}

// Enroll registers face templates from submitted photos and refreshes
// the in-memory index so the new person is matchable immediately.
func (h *PersonnelHandler) Enroll(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid personnel id"})
		return
	}

	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one image is required"})
		return
	}

	p, err := h.db.GetPersonnel(c.Request.Context(), id)
	if err != nil {
		slog.Error("get personnel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "personnel not found"})
		return
	}

	rasters := make([][]byte, 0, len(req.Images))
	for _, img := range req.Images {
		data, err := decodeBase64Image(img)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
			return
		}
		rasters = append(rasters, data)
	}

	result, err := h.faces.Enroll(c.Request.Context(), id, rasters)
	if err != nil {
		slog.Error("enroll personnel", "personnel_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}
	if result.Accepted == 0 {
		c.JSON(http.StatusBadRequest, dto.EnrollResponse{
			Accepted:        0,
			RejectedIndices: result.RejectedIndices,
			Message:         "no usable face found in any submitted image",
		})
		return
	}

	if _, err := h.faces.Reload(c.Request.Context(), nil); err != nil {
		slog.Warn("reload templates after enroll", "error", err)
	}

	c.JSON(http.StatusCreated, dto.EnrollResponse{
		Accepted:        result.Accepted,
		RejectedIndices: result.RejectedIndices,
		Message:         "face templates registered",
	})
}

func (h *PersonnelHandler) ListFaces(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid personnel id"})
		return
	}

	templates, err := h.db.ListFaceTemplatesForPersonnel(c.Request.Context(), id)
	if err != nil {
		slog.Error("list face templates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	resp := make([]dto.FaceTemplateResponse, 0, len(templates))
	for _, t := range templates {
		resp = append(resp, dto.FaceTemplateResponse{
			ID:         t.ID,
			Confidence: t.Confidence,
			SourceKey:  t.SourceKey,
			CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": resp, "total": len(resp)})
}

// ReloadTemplates swaps in a fresh index from the database.
func (h *PersonnelHandler) ReloadTemplates(c *gin.Context) {
	var stationID *uuid.UUID
	if v := c.Query("station_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
			return
		}
		stationID = &id
	}

	idx, err := h.faces.Reload(c.Request.Context(), stationID)
	if err != nil {
		slog.Error("reload templates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusOK, dto.ReloadResponse{
		Templates: idx.TemplateCount(),
		People:    idx.PersonCount(),
	})
}

func personnelResponse(p *models.Personnel, faceCount int) dto.PersonnelResponse {
	resp := dto.PersonnelResponse{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName(),
		Rank:      p.Rank,
		StationID: p.StationID,
		PhotoKey:  p.PhotoKey,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if faceCount >= 0 {
		resp.FaceCount = faceCount
	}
	return resp
}
