package models

import (
	"time"

	"github.com/google/uuid"
)

// Analysis is one persisted verdict for a document against a job description.
// Records are created once and never updated.
type Analysis struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DocumentID     uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	JobDescription string    `gorm:"type:text;not null" json:"job_description"`
	Score          float64   `gorm:"not null;default:0" json:"score"`
	Result         string    `gorm:"type:text;not null" json:"result"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	Document Document `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Analysis) TableName() string {
	return "analyses"
}
