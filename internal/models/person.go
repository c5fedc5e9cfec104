package models

import (
	"time"

	"github.com/google/uuid"
)

type Personnel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Rank      string    `json:"rank" db:"rank"`
	StationID uuid.UUID `json:"station_id" db:"station_id"`
	PhotoKey  string    `json:"photo_key" db:"photo_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Personnel) FullName() string {
	return p.FirstName + " " + p.LastName
}

// FaceTemplate is one enrolled embedding for a person. Templates are
// append-only: created at enrollment, never mutated.
type FaceTemplate struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PersonnelID uuid.UUID `json:"personnel_id" db:"personnel_id"`
	Embedding   []float32 `json:"-" db:"embedding"`
	Confidence  float32   `json:"confidence" db:"confidence"`
	SourceKey   string    `json:"source_key" db:"source_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
