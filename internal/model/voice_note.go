package model

import "time"

// VoiceNote is a recorded voice memo attached to a draft handoff. The audio
// itself lives in external storage; StorageRef is opaque.
type VoiceNote struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	HandoffID       string    `gorm:"size:36;not null;uniqueIndex:idx_voice_note_handoff_seq" json:"handoff_id"`
	Seq             int       `gorm:"not null;uniqueIndex:idx_voice_note_handoff_seq" json:"seq"`
	StorageRef      string    `gorm:"size:512;not null" json:"storage_ref"`
	Transcript      string    `gorm:"type:text;not null;default:''" json:"transcript"`
	DurationSeconds int       `gorm:"not null" json:"duration_seconds"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}
