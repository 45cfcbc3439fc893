package model

import (
	"time"

	"gorm.io/gorm"

	"handoff-backend/internal/apperr"
)

// AuditAction names a state-changing action recorded in the ledger.
type AuditAction string

const (
	ActionHandoffCreated         AuditAction = "handoff_created"
	ActionHandoffUpdated         AuditAction = "handoff_updated"
	ActionVoiceNoteAdded         AuditAction = "voice_note_added"
	ActionHandoffSubmitted       AuditAction = "handoff_submitted"
	ActionSupplementalNoteAdded  AuditAction = "supplemental_note_added"
	ActionHandoffAcknowledged    AuditAction = "handoff_acknowledged"
	ActionHandoffExpired         AuditAction = "handoff_expired"
	ActionSubscriptionRegistered AuditAction = "push_subscription_registered"
	ActionSubscriptionRemoved    AuditAction = "push_subscription_removed"
)

// Audit target types.
const (
	TargetHandoff      = "handoff"
	TargetSubscription = "push_subscription"
)

// AuditEntry is one immutable ledger row. Before, After and Metadata hold JSON.
// Entries of one target form a hash chain ordered by Seq.
type AuditEntry struct {
	ID         string      `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt  time.Time   `gorm:"not null;index" json:"created_at"`
	ActorID    string      `gorm:"size:64;not null;index" json:"actor_id"`
	Action     AuditAction `gorm:"size:64;not null" json:"action"`
	TargetType string      `gorm:"size:32;not null;uniqueIndex:idx_audit_chain" json:"target_type"`
	TargetID   string      `gorm:"size:64;not null;uniqueIndex:idx_audit_chain" json:"target_id"`
	Seq        int64       `gorm:"not null;uniqueIndex:idx_audit_chain" json:"seq"`
	Before     string      `gorm:"type:text;not null;default:''" json:"before,omitempty"`
	After      string      `gorm:"type:text;not null;default:''" json:"after,omitempty"`
	BatchID    *string     `gorm:"size:36;index" json:"batch_id,omitempty"`
	Metadata   string      `gorm:"type:text;not null;default:''" json:"metadata,omitempty"`
	PrevHash   string      `gorm:"size:71;not null;default:''" json:"prev_hash"`
	Hash       string      `gorm:"size:71;not null;uniqueIndex" json:"hash"`
}

// BeforeUpdate rejects any update issued through gorm.
func (e *AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return apperr.New(apperr.KindAppendOnly, "audit entries cannot be modified")
}

// BeforeDelete rejects any delete issued through gorm.
func (e *AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return apperr.New(apperr.KindAppendOnly, "audit entries cannot be deleted")
}
