package dto

import (
	"github.com/google/uuid"
)

type CreatePersonnelRequest struct {
	FirstName string    `json:"first_name" binding:"required"`
	LastName  string    `json:"last_name" binding:"required"`
	Rank      string    `json:"rank"`
	StationID uuid.UUID `json:"station_id" binding:"required"`
}

type PersonnelResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
	Rank      string    `json:"rank"`
	StationID uuid.UUID `json:"station_id"`
	PhotoKey  string    `json:"photo_key,omitempty"`
	FaceCount int       `json:"face_count"`
	CreatedAt string    `json:"created_at"`
}

// EnrollRequest carries base64-encoded enrollment photos.
type EnrollRequest struct {
	Images []string `json:"images" binding:"required"`
}

type EnrollResponse struct {
	Accepted        int    `json:"accepted"`
	RejectedIndices []int  `json:"rejected_indices,omitempty"`
	Message         string `json:"message"`
}

type FaceTemplateResponse struct {
	ID         uuid.UUID `json:"id"`
	Confidence float32   `json:"confidence"`
	SourceKey  string    `json:"source_key"`
	CreatedAt  string    `json:"created_at"`
}

type ReloadResponse struct {
	Templates int `json:"templates"`
	People    int `json:"people"`
}
