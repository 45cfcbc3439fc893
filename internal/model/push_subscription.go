package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	UserID     string     `gorm:"size:64;not null;index" json:"user_id"`
	Endpoint   string     `gorm:"size:1024;not null;uniqueIndex" json:"endpoint"`
	P256DH     string     `gorm:"column:p256dh;not null" json:"-"`
	Auth       string     `gorm:"not null" json:"-"`
	LastPushAt *time.Time `json:"last_push_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
}
