package model

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a handoff.
type Status string

const (
	StatusDraft                 Status = "draft"
	StatusPendingAcknowledgment Status = "pending_acknowledgment"
	StatusAcknowledged          Status = "acknowledged"
	StatusExpired               Status = "expired"
)

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusAcknowledged || s == StatusExpired
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingAcknowledgment, StatusAcknowledged, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the handoff state machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPendingAcknowledgment
	case StatusPendingAcknowledgment:
		return to == StatusAcknowledged || to == StatusExpired
	}
	return false
}

// Handoff is a shift handoff authored by the outgoing supervisor.
type Handoff struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	CreatorID      string     `gorm:"size:64;not null;index" json:"creator_id"`
	ShiftDate      string     `gorm:"size:10;not null" json:"shift_date"`
	ShiftType      string     `gorm:"size:32;not null" json:"shift_type"`
	SummaryText    string     `gorm:"type:text;not null;default:''" json:"summary_text"`
	Notes          string     `gorm:"type:text;not null;default:''" json:"notes"`
	Status         Status     `gorm:"size:32;not null;index" json:"status"`
	AcknowledgedBy *string    `gorm:"size:64" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ExpiredAt      *time.Time `json:"expired_at,omitempty"`
	VoiceNoteCount int        `gorm:"not null;default:0" json:"voice_note_count"`
	Version        int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	Assets            []HandoffAsset     `gorm:"foreignKey:HandoffID;constraint:OnDelete:RESTRICT" json:"assets"`
	SupplementalNotes []SupplementalNote `gorm:"foreignKey:HandoffID;constraint:OnDelete:RESTRICT" json:"supplemental_notes"`
	VoiceNotes        []VoiceNote        `gorm:"foreignKey:HandoffID;constraint:OnDelete:RESTRICT" json:"voice_notes"`
}

// HandoffAsset is one covered asset reference of a handoff.
type HandoffAsset struct {
	HandoffID string `gorm:"primaryKey;size:36" json:"-"`
	AssetID   string `gorm:"primaryKey;size:64;index" json:"asset_id"`
}

// SupplementalNote is an append-only annotation on a handoff.
type SupplementalNote struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	HandoffID string    `gorm:"size:36;not null;uniqueIndex:idx_supplemental_handoff_seq" json:"-"`
	Seq       int       `gorm:"not null;uniqueIndex:idx_supplemental_handoff_seq" json:"seq"`
	AuthorID  string    `gorm:"size:64;not null" json:"author_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// AssetIDs returns the covered asset ids in sorted order.
func (h *Handoff) AssetIDs() []string {
	ids := make([]string, 0, len(h.Assets))
	for _, a := range h.Assets {
		ids = append(ids, a.AssetID)
	}
	sort.Strings(ids)
	return ids
}

// SetAssets replaces the covered assets with the deduplicated ids.
func (h *Handoff) SetAssets(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	assets := make([]HandoffAsset, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		assets = append(assets, HandoffAsset{HandoffID: h.ID, AssetID: id})
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].AssetID < assets[j].AssetID })
	h.Assets = assets
}

// Clone returns a deep copy suitable for proposing a mutation.
func (h *Handoff) Clone() *Handoff {
	c := *h
	c.Assets = append([]HandoffAsset(nil), h.Assets...)
	c.SupplementalNotes = append([]SupplementalNote(nil), h.SupplementalNotes...)
	c.VoiceNotes = append([]VoiceNote(nil), h.VoiceNotes...)
	if h.AcknowledgedBy != nil {
		v := *h.AcknowledgedBy
		c.AcknowledgedBy = &v
	}
	if h.AcknowledgedAt != nil {
		v := *h.AcknowledgedAt
		c.AcknowledgedAt = &v
	}
	if h.SubmittedAt != nil {
		v := *h.SubmittedAt
		c.SubmittedAt = &v
	}
	if h.ExpiredAt != nil {
		v := *h.ExpiredAt
		c.ExpiredAt = &v
	}
	return &c
}

// Snapshot is the audit representation of a handoff.
type Snapshot struct {
	ID                string     `json:"id"`
	CreatorID         string     `json:"creator_id"`
	ShiftDate         string     `json:"shift_date"`
	ShiftType         string     `json:"shift_type"`
	Assets            []string   `json:"assets"`
	SummaryText       string     `json:"summary_text"`
	Notes             string     `json:"notes"`
	SupplementalNotes int        `json:"supplemental_notes"`
	VoiceNotes        int        `json:"voice_notes"`
	Status            Status     `json:"status"`
	AcknowledgedBy    *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time `json:"acknowledged_at,omitempty"`
	Version           int64      `json:"version"`
}

// Snapshot captures the fields recorded in audit before/after states.
func (h *Handoff) Snapshot() Snapshot {
	return Snapshot{
		ID:                h.ID,
		CreatorID:         h.CreatorID,
		ShiftDate:         h.ShiftDate,
		ShiftType:         h.ShiftType,
		Assets:            h.AssetIDs(),
		SummaryText:       h.SummaryText,
		Notes:             h.Notes,
		SupplementalNotes: len(h.SupplementalNotes),
		VoiceNotes:        h.VoiceNoteCount,
		Status:            h.Status,
		AcknowledgedBy:    h.AcknowledgedBy,
		AcknowledgedAt:    h.AcknowledgedAt,
		Version:           h.Version,
	}
}
