// Package handoff is the public operations surface: every call is evaluated
// against the access policy before it reaches storage.
package handoff

import (
	"context"
	"errors"

	"handoff-backend/internal/access"
	"handoff-backend/internal/ack"
	"handoff-backend/internal/apperr"
	"handoff-backend/internal/audit"
	"handoff-backend/internal/model"
	"handoff-backend/internal/store"
)

// CreateInput holds the fields of a new draft.
type CreateInput struct {
	ShiftDate   string   `json:"shift_date"`
	ShiftType   string   `json:"shift_type"`
	Assets      []string `json:"assets"`
	SummaryText string   `json:"summary_text"`
	Notes       string   `json:"notes"`
}

// Detail is a handoff together with its acknowledgment, if any.
type Detail struct {
	Handoff        *model.Handoff        `json:"handoff"`
	Acknowledgment *model.Acknowledgment `json:"acknowledgment,omitempty"`
}

// AuditTrail is a handoff's ledger with the result of chain verification.
type AuditTrail struct {
	Entries  []model.AuditEntry `json:"entries"`
	Verified bool               `json:"verified"`
}

// Service exposes handoff operations to transports.
type Service struct {
	handoffs *store.HandoffStore
	subs     *store.SubscriptionStore
	records  *store.RecordStore
	policy   *access.Policy
	acks     *ack.Service
}

// NewService wires the operations surface.
func NewService(handoffs *store.HandoffStore, subs *store.SubscriptionStore, records *store.RecordStore, policy *access.Policy, acks *ack.Service) *Service {
	return &Service{handoffs: handoffs, subs: subs, records: records, policy: policy, acks: acks}
}

// Create starts a draft authored by actor.
func (s *Service) Create(ctx context.Context, actor access.Actor, in CreateInput) (*model.Handoff, error) {
	if err := s.policy.Authorize(ctx, actor, access.ActionCreate, &model.Handoff{CreatorID: actor.ID}); err != nil {
		return nil, err
	}
	return s.handoffs.Create(ctx, actor.ID, in.ShiftDate, in.ShiftType, in.Assets, in.SummaryText, in.Notes)
}

// UpdateDraft edits fields of the actor's own handoff.
func (s *Service) UpdateDraft(ctx context.Context, actor access.Actor, id string, patch store.DraftPatch) (*model.Handoff, error) {
	if _, err := s.authorized(ctx, actor, access.ActionEdit, id); err != nil {
		return nil, err
	}
	return s.handoffs.Update(ctx, actor.ID, id, patch)
}

// AddVoiceNote attaches a voice note to the actor's draft.
func (s *Service) AddVoiceNote(ctx context.Context, actor access.Actor, id string, in store.VoiceNoteInput) (*model.VoiceNote, error) {
	if _, err := s.authorized(ctx, actor, access.ActionEdit, id); err != nil {
		return nil, err
	}
	return s.handoffs.AppendVoiceNote(ctx, actor.ID, id, in)
}

// Submit locks the actor's draft and makes it visible for acknowledgment.
func (s *Service) Submit(ctx context.Context, actor access.Actor, id string) (*model.Handoff, error) {
	if _, err := s.authorized(ctx, actor, access.ActionEdit, id); err != nil {
		return nil, err
	}
	return s.handoffs.Submit(ctx, actor.ID, id)
}

// ListPending returns handoffs awaiting the actor's acknowledgment.
func (s *Service) ListPending(ctx context.Context, actor access.Actor) ([]model.Handoff, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.KindNotAuthorized, "unauthenticated actor")
	}
	assets, err := s.policy.AssetsFor(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.handoffs.ListPending(ctx, assets, actor.ID)
}

// ListMine returns the actor's own handoffs.
func (s *Service) ListMine(ctx context.Context, actor access.Actor, statuses ...model.Status) ([]model.Handoff, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.KindNotAuthorized, "unauthenticated actor")
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, apperr.New(apperr.KindValidation, "unknown status %q", st)
		}
	}
	return s.handoffs.ListByCreator(ctx, actor.ID, statuses...)
}

// Get returns a handoff the actor may read.
func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (*Detail, error) {
	h, err := s.authorized(ctx, actor, access.ActionRead, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Handoff: h}
	if h.Status == model.StatusAcknowledged {
		if d.Acknowledgment, err = s.records.AcknowledgmentFor(ctx, id); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// AddSupplementalNote appends an annotation to a submitted handoff.
func (s *Service) AddSupplementalNote(ctx context.Context, actor access.Actor, id, text string) (*model.Handoff, error) {
	if _, err := s.authorized(ctx, actor, access.ActionAnnotate, id); err != nil {
		return nil, err
	}
	return s.handoffs.AppendSupplementalNote(ctx, actor.ID, id, text)
}

// Acknowledge records the actor's acknowledgment.
func (s *Service) Acknowledge(ctx context.Context, actor access.Actor, id, notes string) (*ack.Result, error) {
	return s.acks.Acknowledge(ctx, id, actor, notes)
}

// Audit returns the ledger of a handoff the actor may read.
func (s *Service) Audit(ctx context.Context, actor access.Actor, id string) (*AuditTrail, error) {
	if _, err := s.authorized(ctx, actor, access.ActionRead, id); err != nil {
		return nil, err
	}
	ledger := s.handoffs.Ledger()
	entries, err := ledger.ForTarget(ctx, model.TargetHandoff, id)
	if err != nil {
		return nil, err
	}
	trail := &AuditTrail{Entries: entries, Verified: true}
	if err := ledger.Verify(ctx, model.TargetHandoff, id); err != nil {
		if !errors.Is(err, audit.ErrChainBroken) {
			return nil, err
		}
		trail.Verified = false
	}
	return trail, nil
}

// AuditBatch returns all entries of one bulk operation. Admins only.
func (s *Service) AuditBatch(ctx context.Context, actor access.Actor, batchID string) ([]model.AuditEntry, error) {
	if !actor.Admin {
		return nil, apperr.New(apperr.KindNotAuthorized, "audit batches are restricted to administrators")
	}
	if batchID == "" {
		return nil, apperr.New(apperr.KindValidation, "batch id is required")
	}
	return s.handoffs.Ledger().ForBatch(ctx, batchID)
}

// Subscribe registers a push subscription for the actor.
func (s *Service) Subscribe(ctx context.Context, actor access.Actor, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	return s.subs.Register(ctx, actor.ID, endpoint, p256dh, auth)
}

// Unsubscribe removes one of the actor's push subscriptions.
func (s *Service) Unsubscribe(ctx context.Context, actor access.Actor, endpoint string) error {
	return s.subs.Unregister(ctx, actor.ID, endpoint)
}

// Notifications lists the actor's in-app notifications.
func (s *Service) Notifications(ctx context.Context, actor access.Actor, limit int) ([]model.Notification, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.KindNotAuthorized, "unauthenticated actor")
	}
	return s.records.Notifications(ctx, actor.ID, limit)
}

func (s *Service) authorized(ctx context.Context, actor access.Actor, action access.Action, id string) (*model.Handoff, error) {
	h, err := s.handoffs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, action, h); err != nil {
		return nil, err
	}
	return h, nil
}
