package model

import "time"

// NotificationKindHandoffAcknowledged is the in-app notification kind sent to
// a handoff author once it is acknowledged.
const NotificationKindHandoffAcknowledged = "handoff_acknowledged"

// Notification is a durable in-app notification.
type Notification struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           string     `gorm:"size:64;not null;index" json:"user_id"`
	Kind             string     `gorm:"size:64;not null" json:"kind"`
	Title            string     `gorm:"size:256;not null" json:"title"`
	Body             string     `gorm:"type:text;not null" json:"body"`
	HandoffID        string     `gorm:"size:36;not null" json:"handoff_id"`
	AcknowledgmentID string     `gorm:"size:36;not null;uniqueIndex" json:"acknowledgment_id"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
}

// NotificationPreference is a per-user push opt-in. This service only reads it.
type NotificationPreference struct {
	UserID      string    `gorm:"primaryKey;size:64" json:"user_id"`
	HandoffPush bool      `gorm:"not null" json:"handoff_push"`
	UpdatedAt   time.Time `json:"updated_at"`
}
