package handoff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handoff-backend/internal/access"
	"handoff-backend/internal/ack"
	"handoff-backend/internal/apperr"
	"handoff-backend/internal/audit"
	"handoff-backend/internal/db/dbtest"
	"handoff-backend/internal/model"
	"handoff-backend/internal/store"
)

var (
	alice = access.Actor{ID: "sup-a"}
	bob   = access.Actor{ID: "sup-b"}
	carol = access.Actor{ID: "sup-c"}
	admin = access.Actor{ID: "root", Admin: true}
)

func newService(t *testing.T) *Service {
	t.Helper()
	gormDB := dbtest.New(t)
	ledger := audit.NewGormLedger(gormDB)
	handoffs := store.NewHandoffStore(gormDB, ledger, store.Limits{ShiftTypes: []string{"day", "night"}})
	policy := access.NewPolicy(access.StaticDirectory{
		"sup-a": {"ward-1"},
		"sup-b": {"ward-1"},
		"sup-c": {"ward-5"},
	}, true)
	return NewService(handoffs, store.NewSubscriptionStore(gormDB, ledger), store.NewRecordStore(gormDB), policy, ack.NewService(handoffs, policy, nil))
}

func TestDraftOperationsAreCreatorOnly(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	h, err := s.Create(ctx, alice, CreateInput{ShiftDate: "2026-10-14", ShiftType: "night", Assets: []string{"ward-1"}})
	require.NoError(t, err)
	assert.Equal(t, "sup-a", h.CreatorID)

	summary := "hijacked"
	_, err = s.UpdateDraft(ctx, bob, h.ID, store.DraftPatch{SummaryText: &summary})
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))
	_, err = s.AddVoiceNote(ctx, bob, h.ID, store.VoiceNoteInput{StorageRef: "blob://1", DurationSeconds: 10})
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))
	_, err = s.Submit(ctx, bob, h.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))

	_, err = s.AddVoiceNote(ctx, alice, h.ID, store.VoiceNoteInput{StorageRef: "blob://1", DurationSeconds: 60})
	require.NoError(t, err)
	_, err = s.Submit(ctx, alice, h.ID)
	require.NoError(t, err)

	mine, err := s.ListMine(ctx, alice, model.StatusPendingAcknowledgment)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	_, err = s.ListMine(ctx, alice, model.Status("archived"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestReadAndAcknowledgeFlow(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	h, err := s.Create(ctx, alice, CreateInput{ShiftDate: "2026-10-14", ShiftType: "night", Assets: []string{"ward-1"}, Notes: "pump 3"})
	require.NoError(t, err)
	_, err = s.Submit(ctx, alice, h.ID)
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, h.ID, pending[0].ID)

	none, err := s.ListPending(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.Get(ctx, carol, h.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))
	_, err = s.AddSupplementalNote(ctx, carol, h.ID, "not mine")
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))

	detail, err := s.Get(ctx, admin, h.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Acknowledgment)

	_, err = s.AddSupplementalNote(ctx, bob, h.ID, "saw it")
	require.NoError(t, err)

	res, err := s.Acknowledge(ctx, bob, h.ID, "")
	require.NoError(t, err)

	detail, err = s.Get(ctx, bob, h.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Acknowledgment)
	assert.Equal(t, res.Acknowledgment.ID, detail.Acknowledgment.ID)
	assert.Len(t, detail.Handoff.SupplementalNotes, 1)

	trail, err := s.Audit(ctx, alice, h.ID)
	require.NoError(t, err)
	assert.True(t, trail.Verified)
	assert.Equal(t, model.ActionHandoffAcknowledged, trail.Entries[len(trail.Entries)-1].Action)

	notes, err := s.Notifications(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, h.ID, notes[0].HandoffID)
}

func TestAuditBatchAdminOnly(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.AuditBatch(ctx, alice, "batch-1")
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))
	_, err = s.AuditBatch(ctx, admin, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	entries, err := s.AuditBatch(ctx, admin, "batch-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	sub, err := s.Subscribe(ctx, alice, "https://push.example/a", "key", "auth")
	require.NoError(t, err)
	assert.Equal(t, "sup-a", sub.UserID)

	err = s.Unsubscribe(ctx, bob, "https://push.example/a")
	assert.True(t, errors.Is(err, apperr.ErrNotAuthorized))
	require.NoError(t, s.Unsubscribe(ctx, alice, "https://push.example/a"))
}
