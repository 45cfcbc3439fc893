package model

import (
	"time"

	"gorm.io/gorm"

	"handoff-backend/internal/apperr"
)

// Acknowledgment records that an incoming supervisor reviewed a handoff.
// At most one exists per handoff.
type Acknowledgment struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	HandoffID      string    `gorm:"size:36;not null;uniqueIndex" json:"handoff_id"`
	AcknowledgerID string    `gorm:"size:64;not null" json:"acknowledger_id"`
	AcknowledgedAt time.Time `gorm:"not null" json:"acknowledged_at"`
	Notes          string    `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
}

// BeforeUpdate rejects any update issued through gorm.
func (a *Acknowledgment) BeforeUpdate(tx *gorm.DB) error {
	return apperr.New(apperr.KindAppendOnly, "acknowledgments cannot be modified")
}

// BeforeDelete rejects any delete issued through gorm.
func (a *Acknowledgment) BeforeDelete(tx *gorm.DB) error {
	return apperr.New(apperr.KindAppendOnly, "acknowledgments cannot be deleted")
}
