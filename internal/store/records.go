package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/db"
	"handoff-backend/internal/model"
)

// InsertAcknowledgment writes ack within tx. A second acknowledgment of the
// same handoff fails the unique constraint and maps to AlreadyAcknowledged.
func InsertAcknowledgment(tx *gorm.DB, ack *model.Acknowledgment) error {
	if err := tx.Create(ack).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.New(apperr.KindAlreadyAcknowledged, "handoff %s is already acknowledged", ack.HandoffID)
		}
		return fmt.Errorf("failed to record acknowledgment: %w", err)
	}
	return nil
}

// InsertNotification writes n unless a notification for the same
// acknowledgment exists, and returns the stored row either way.
func InsertNotification(tx *gorm.DB, n *model.Notification) (*model.Notification, bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "acknowledgment_id"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to store notification: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return n, true, nil
	}
	var stored model.Notification
	if err := tx.Where("acknowledgment_id = ?", n.AcknowledgmentID).First(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load notification: %w", err)
	}
	return &stored, false, nil
}

// RecordStore reads acknowledgments, notifications and preferences.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore creates a GORM-backed record store.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Acknowledgment loads an acknowledgment by id.
func (s *RecordStore) Acknowledgment(ctx context.Context, id string) (*model.Acknowledgment, error) {
	var ack model.Acknowledgment
	if err := s.db.WithContext(ctx).First(&ack, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "acknowledgment %s not found", id)
		}
		return nil, fmt.Errorf("failed to load acknowledgment %s: %w", id, err)
	}
	return &ack, nil
}

// AcknowledgmentFor loads the acknowledgment of a handoff, if any.
func (s *RecordStore) AcknowledgmentFor(ctx context.Context, handoffID string) (*model.Acknowledgment, error) {
	var acks []model.Acknowledgment
	if err := s.db.WithContext(ctx).Where("handoff_id = ?", handoffID).Limit(1).Find(&acks).Error; err != nil {
		return nil, fmt.Errorf("failed to load acknowledgment of handoff %s: %w", handoffID, err)
	}
	if len(acks) == 0 {
		return nil, nil
	}
	return &acks[0], nil
}

// Preference returns the push preference of userID; found is false when the
// user never set one.
func (s *RecordStore) Preference(ctx context.Context, userID string) (pref model.NotificationPreference, found bool, err error) {
	var prefs []model.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&prefs).Error; err != nil {
		return pref, false, fmt.Errorf("failed to load notification preference of %s: %w", userID, err)
	}
	if len(prefs) == 0 {
		return pref, false, nil
	}
	return prefs[0], true, nil
}

// SaveNotification stores an in-app notification idempotently.
func (s *RecordStore) SaveNotification(ctx context.Context, n *model.Notification) (*model.Notification, bool, error) {
	return InsertNotification(s.db.WithContext(ctx), n)
}

// Notifications lists the newest in-app notifications of userID.
func (s *RecordStore) Notifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []model.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications of %s: %w", userID, err)
	}
	return out, nil
}
