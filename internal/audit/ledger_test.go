package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/db/dbtest"
	"handoff-backend/internal/model"
)

func appendEntry(t *testing.T, l Ledger, targetID string, action model.AuditAction, batch *string) *model.AuditEntry {
	t.Helper()
	e, err := Entry("sup-a", action, model.TargetHandoff, targetID, map[string]any{"status": "draft"}, map[string]any{"status": "pending_acknowledgment"})
	require.NoError(t, err)
	e.BatchID = batch
	require.NoError(t, l.Append(context.Background(), e))
	return e
}

func TestLedgerAppendBuildsChain(t *testing.T) {
	ctx := context.Background()
	l := NewGormLedger(dbtest.New(t))

	first := appendEntry(t, l, "h-1", model.ActionHandoffCreated, nil)
	second := appendEntry(t, l, "h-1", model.ActionHandoffSubmitted, nil)
	appendEntry(t, l, "h-2", model.ActionHandoffCreated, nil)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "", first.PrevHash)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, first.Hash, second.PrevHash)

	entries, err := l.ForTarget(ctx, model.TargetHandoff, "h-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionHandoffCreated, entries[0].Action)
	assert.Equal(t, model.ActionHandoffSubmitted, entries[1].Action)
	assert.JSONEq(t, `{"status":"draft"}`, entries[0].Before)

	n, err := l.Count(ctx, model.TargetHandoff, "h-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, l.Verify(ctx, model.TargetHandoff, "h-1"))
	assert.NoError(t, l.Verify(ctx, model.TargetHandoff, "h-2"))
}

func TestLedgerAppendRequiresTarget(t *testing.T) {
	l := NewGormLedger(dbtest.New(t))
	err := l.Append(context.Background(), &model.AuditEntry{ActorID: "sup-a", Action: model.ActionHandoffCreated})
	assert.Error(t, err)
}

func TestLedgerForBatch(t *testing.T) {
	ctx := context.Background()
	l := NewGormLedger(dbtest.New(t))
	batch := "batch-1"

	appendEntry(t, l, "h-1", model.ActionHandoffExpired, &batch)
	appendEntry(t, l, "h-2", model.ActionHandoffExpired, &batch)
	appendEntry(t, l, "h-3", model.ActionHandoffCreated, nil)

	entries, err := l.ForBatch(ctx, batch)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, batch, *e.BatchID)
	}
}

func TestLedgerEntriesCannotBeModifiedOrRemoved(t *testing.T) {
	gormDB := dbtest.New(t)
	l := NewGormLedger(gormDB)
	e := appendEntry(t, l, "h-1", model.ActionHandoffAcknowledged, nil)

	err := gormDB.Model(&model.AuditEntry{ID: e.ID}).Update("action", "handoff_created").Error
	assert.True(t, errors.Is(err, apperr.ErrAppendOnly), "got %v", err)

	err = gormDB.Delete(&model.AuditEntry{ID: e.ID}).Error
	assert.True(t, errors.Is(err, apperr.ErrAppendOnly), "got %v", err)

	assert.Error(t, gormDB.Exec("UPDATE audit_entries SET actor_id = 'someone-else'").Error)
	assert.Error(t, gormDB.Exec("DELETE FROM audit_entries").Error)

	var stored model.AuditEntry
	require.NoError(t, gormDB.First(&stored, "id = ?", e.ID).Error)
	assert.Equal(t, model.ActionHandoffAcknowledged, stored.Action)
	assert.Equal(t, "sup-a", stored.ActorID)
}

func TestLedgerVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	gormDB := dbtest.New(t)
	l := NewGormLedger(gormDB)
	appendEntry(t, l, "h-1", model.ActionHandoffCreated, nil)
	appendEntry(t, l, "h-1", model.ActionHandoffSubmitted, nil)

	// Simulate an out-of-band edit that bypasses the triggers.
	require.NoError(t, gormDB.Exec("DROP TRIGGER audit_entries_no_update").Error)
	require.NoError(t, gormDB.Exec("UPDATE audit_entries SET \"after\" = '{}' WHERE seq = 1").Error)

	err := l.Verify(ctx, model.TargetHandoff, "h-1")
	assert.True(t, errors.Is(err, ErrChainBroken), "got %v", err)
}

func TestEntryEncodesEmptyStates(t *testing.T) {
	e, err := Entry("sup-a", model.ActionSubscriptionRemoved, model.TargetSubscription, "sub-1", nil, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "", e.Before)
	assert.Equal(t, "", e.After)

	e, err = WithMetadata(e, map[string]any{"reason": "gone"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"gone"}`, e.Metadata)
}
