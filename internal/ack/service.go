// Package ack records acknowledgments of submitted handoffs.
package ack

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"handoff-backend/internal/access"
	"handoff-backend/internal/apperr"
	"handoff-backend/internal/model"
	"handoff-backend/internal/notification"
	"handoff-backend/internal/store"
)

// Enqueuer schedules post-commit notification of an acknowledgment.
type Enqueuer interface {
	Enqueue(ackID string) bool
}

// Result is the committed outcome of an acknowledgment.
type Result struct {
	Handoff        *model.Handoff        `json:"handoff"`
	Acknowledgment *model.Acknowledgment `json:"acknowledgment"`
	Notification   *model.Notification   `json:"notification"`
}

// Service acknowledges handoffs.
type Service struct {
	handoffs *store.HandoffStore
	policy   *access.Policy
	queue    Enqueuer
}

// NewService creates an acknowledgment service. queue may be nil.
func NewService(handoffs *store.HandoffStore, policy *access.Policy, queue Enqueuer) *Service {
	return &Service{handoffs: handoffs, policy: policy, queue: queue}
}

// Acknowledge confirms that actor reviewed handoff id. The acknowledgment row,
// status transition, in-app notification and audit entry commit together.
// Concurrent attempts are decided by the unique index on the acknowledgment's
// handoff id; losers get AlreadyAcknowledged and must re-read.
func (s *Service) Acknowledge(ctx context.Context, handoffID string, actor access.Actor, notes string) (*Result, error) {
	if handoffID == "" {
		return nil, apperr.New(apperr.KindValidation, "handoff id is required")
	}

	h, err := s.handoffs.Get(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	// Authorize precedes the status checks; outsiders must not learn the status.
	if err := s.policy.Authorize(ctx, actor, access.ActionAcknowledge, h); err != nil {
		return nil, err
	}
	if err := checkPreconditions(h, actor.ID); err != nil {
		return nil, err
	}

	record := &model.Acknowledgment{
		ID:             uuid.NewString(),
		HandoffID:      handoffID,
		AcknowledgerID: actor.ID,
		Notes:          strings.TrimSpace(notes),
	}
	var inApp *model.Notification

	updated, err := s.handoffs.Mutate(ctx, handoffID, store.Mutation{
		Actor:    actor.ID,
		Action:   model.ActionHandoffAcknowledged,
		Metadata: map[string]any{"acknowledgment_id": record.ID},
		Apply: func(p *model.Handoff) error {
			if err := checkPreconditions(p, actor.ID); err != nil {
				return err
			}
			now := s.handoffs.Now()
			by := actor.ID
			p.Status = model.StatusAcknowledged
			p.AcknowledgedBy = &by
			p.AcknowledgedAt = &now
			record.AcknowledgedAt = now
			return nil
		},
		InTx: func(tx *gorm.DB, _, updated *model.Handoff) error {
			if err := store.InsertAcknowledgment(tx, record); err != nil {
				return err
			}
			n, _, err := store.InsertNotification(tx, notification.InApp(updated, record))
			if err != nil {
				return err
			}
			inApp = n
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, s.resolveConflict(ctx, handoffID, err)
		}
		return nil, err
	}

	if s.queue != nil && !s.queue.Enqueue(record.ID) {
		log.Printf("Acknowledgment %s committed but its push was not queued", record.ID)
	}
	return &Result{Handoff: updated, Acknowledgment: record, Notification: inApp}, nil
}

func checkPreconditions(h *model.Handoff, actorID string) error {
	switch h.Status {
	case model.StatusPendingAcknowledgment:
	case model.StatusAcknowledged:
		return apperr.New(apperr.KindAlreadyAcknowledged, "handoff %s is already acknowledged", h.ID)
	default:
		return apperr.New(apperr.KindInvalidTransition, "handoff %s is %s and cannot be acknowledged", h.ID, h.Status)
	}
	if h.CreatorID == actorID {
		return apperr.New(apperr.KindNotAuthorized, "the creator cannot acknowledge their own handoff")
	}
	return nil
}

// resolveConflict turns a lost version race into AlreadyAcknowledged when the
// winner was another acknowledgment.
func (s *Service) resolveConflict(ctx context.Context, handoffID string, conflict error) error {
	current, err := s.handoffs.Get(ctx, handoffID)
	if err != nil {
		return conflict
	}
	if current.Status == model.StatusAcknowledged {
		return apperr.New(apperr.KindAlreadyAcknowledged, "handoff %s is already acknowledged", handoffID)
	}
	return conflict
}
