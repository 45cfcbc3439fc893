package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/audit"
	"handoff-backend/internal/model"
)

// SystemPush is the audit actor recorded when stale subscriptions are pruned.
const SystemPush = "system:push"

// SubscriptionStore persists browser push subscriptions.
type SubscriptionStore struct {
	db     *gorm.DB
	ledger audit.Ledger
}

// NewSubscriptionStore creates a GORM-backed subscription store.
func NewSubscriptionStore(db *gorm.DB, ledger audit.Ledger) *SubscriptionStore {
	return &SubscriptionStore{db: db, ledger: ledger}
}

type subscriptionState struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
}

func stateOf(sub *model.PushSubscription) subscriptionState {
	return subscriptionState{ID: sub.ID, UserID: sub.UserID, Endpoint: sub.Endpoint}
}

// Register stores a subscription for userID. Re-registering one of the
// user's own endpoints refreshes its keys; an endpoint owned by another user
// is refused with NotAuthorized.
func (s *SubscriptionStore) Register(ctx context.Context, userID, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindValidation, "user is required")
	}
	if !strings.HasPrefix(endpoint, "https://") {
		return nil, apperr.New(apperr.KindValidation, "subscription endpoint must be an https URL")
	}
	if p256dh == "" || auth == "" {
		return nil, apperr.New(apperr.KindValidation, "subscription keys p256dh and auth are required")
	}

	var stored model.PushSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before *subscriptionState
		var existing model.PushSubscription
		if err := tx.Where("endpoint = ?", endpoint).Limit(1).Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to look up subscription: %w", err)
		}
		if existing.ID != "" {
			if existing.UserID != userID {
				return apperr.New(apperr.KindNotAuthorized, "subscription endpoint is registered to another user")
			}
			st := stateOf(&existing)
			before = &st
		}

		sub := model.PushSubscription{
			ID:        uuid.NewString(),
			UserID:    userID,
			Endpoint:  endpoint,
			P256DH:    p256dh,
			Auth:      auth,
			CreatedAt: time.Now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error
		if err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		if err := tx.Where("endpoint = ?", endpoint).First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload subscription: %w", err)
		}
		// Another user may have inserted the endpoint after the lookup.
		if stored.UserID != userID {
			return apperr.New(apperr.KindNotAuthorized, "subscription endpoint is registered to another user")
		}

		var prior any
		if before != nil {
			prior = before
		}
		entry, err := audit.Entry(userID, model.ActionSubscriptionRegistered, model.TargetSubscription, stored.ID, prior, stateOf(&stored))
		if err != nil {
			return err
		}
		return s.ledger.WithTx(tx).Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Unregister removes the subscription at endpoint if it belongs to userID.
func (s *SubscriptionStore) Unregister(ctx context.Context, userID, endpoint string) error {
	if endpoint == "" {
		return apperr.New(apperr.KindValidation, "endpoint is required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.PushSubscription
		if err := tx.Where("endpoint = ?", endpoint).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "subscription not found")
			}
			return fmt.Errorf("failed to look up subscription: %w", err)
		}
		if sub.UserID != userID {
			return apperr.New(apperr.KindNotAuthorized, "subscription belongs to another user")
		}
		if err := tx.Delete(&model.PushSubscription{}, "id = ?", sub.ID).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		entry, err := audit.Entry(userID, model.ActionSubscriptionRemoved, model.TargetSubscription, sub.ID, stateOf(&sub), nil)
		if err != nil {
			return err
		}
		return s.ledger.WithTx(tx).Append(ctx, entry)
	})
}

// ForUser returns all subscriptions of userID.
func (s *SubscriptionStore) ForUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to find subscriptions for %s: %w", userID, err)
	}
	return subs, nil
}

// MarkPushed records a successful delivery time on the given subscriptions.
func (s *SubscriptionStore) MarkPushed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Where("id IN ?", ids).
		Update("last_push_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to mark subscriptions pushed: %w", err)
	}
	return nil
}

// DeleteStale removes subscriptions rejected by their push service in one
// batch. The removals share a single audit batch id.
func (s *SubscriptionStore) DeleteStale(ctx context.Context, ids []string, reason map[string]int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subs []model.PushSubscription
		if err := tx.Where("id IN ?", ids).Find(&subs).Error; err != nil {
			return fmt.Errorf("failed to load stale subscriptions: %w", err)
		}
		if len(subs) == 0 {
			return nil
		}
		res := tx.Where("id IN ?", ids).Delete(&model.PushSubscription{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete stale subscriptions: %w", res.Error)
		}
		removed = res.RowsAffected

		batchID := uuid.NewString()
		ledger := s.ledger.WithTx(tx)
		for i := range subs {
			entry, err := audit.Entry(SystemPush, model.ActionSubscriptionRemoved, model.TargetSubscription, subs[i].ID, stateOf(&subs[i]), nil)
			if err != nil {
				return err
			}
			entry.BatchID = &batchID
			if status, ok := reason[subs[i].ID]; ok {
				if entry, err = audit.WithMetadata(entry, map[string]any{"push_status": status}); err != nil {
					return err
				}
			}
			if err := ledger.Append(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
