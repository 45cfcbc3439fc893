// Package audit implements the append-only accountability ledger.
//
// The Ledger interface exposes appends and reads only. Updates and deletes
// are additionally refused by model hooks and database triggers.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"handoff-backend/internal/model"
)

// ErrChainBroken is returned by Verify when stored entries do not hash to
// their recorded values.
var ErrChainBroken = errors.New("audit chain broken")

// Ledger is the append-only audit log.
type Ledger interface {
	// Append assigns identity, sequence and hash, then inserts the entry.
	Append(ctx context.Context, entry *model.AuditEntry) error
	// ForTarget returns a target's entries in chain order.
	ForTarget(ctx context.Context, targetType, targetID string) ([]model.AuditEntry, error)
	// ForBatch returns all entries written by one bulk operation.
	ForBatch(ctx context.Context, batchID string) ([]model.AuditEntry, error)
	Count(ctx context.Context, targetType, targetID string) (int64, error)
	// Verify recomputes a target's hash chain.
	Verify(ctx context.Context, targetType, targetID string) error
	// WithTx binds the ledger to an open transaction.
	WithTx(tx *gorm.DB) Ledger
}

type gormLedger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLedger creates a GORM-backed ledger.
func NewGormLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db, now: time.Now}
}

func (l *gormLedger) WithTx(tx *gorm.DB) Ledger {
	return &gormLedger{db: tx, now: l.now}
}

func (l *gormLedger) Append(ctx context.Context, entry *model.AuditEntry) error {
	if entry.ActorID == "" || entry.Action == "" || entry.TargetType == "" || entry.TargetID == "" {
		return fmt.Errorf("audit entry requires actor, action and target")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC().Truncate(time.Microsecond)

	var last model.AuditEntry
	err := l.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", entry.TargetType, entry.TargetID).
		Order("seq DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return fmt.Errorf("failed to read audit chain head for %s %s: %w", entry.TargetType, entry.TargetID, err)
	}
	entry.Seq = last.Seq + 1
	entry.PrevHash = last.Hash

	hash, err := entryHash(entry)
	if err != nil {
		return err
	}
	entry.Hash = hash

	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit entry %s for %s %s: %w", entry.Action, entry.TargetType, entry.TargetID, err)
	}
	return nil
}

func (l *gormLedger) ForTarget(ctx context.Context, targetType, targetID string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := l.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entries for %s %s: %w", targetType, targetID, err)
	}
	return entries, nil
}

func (l *gormLedger) ForBatch(ctx context.Context, batchID string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := l.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Order("target_id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read audit batch %s: %w", batchID, err)
	}
	return entries, nil
}

func (l *gormLedger) Count(ctx context.Context, targetType, targetID string) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&model.AuditEntry{}).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries for %s %s: %w", targetType, targetID, err)
	}
	return n, nil
}

func (l *gormLedger) Verify(ctx context.Context, targetType, targetID string) error {
	entries, err := l.ForTarget(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	prev := ""
	for i := range entries {
		e := &entries[i]
		if e.Seq != int64(i+1) {
			return fmt.Errorf("%w: %s %s expected seq %d, found %d", ErrChainBroken, targetType, targetID, i+1, e.Seq)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("%w: %s %s seq %d does not link to its predecessor", ErrChainBroken, targetType, targetID, e.Seq)
		}
		want, err := entryHash(e)
		if err != nil {
			return err
		}
		if want != e.Hash {
			return fmt.Errorf("%w: %s %s seq %d content does not match its hash", ErrChainBroken, targetType, targetID, e.Seq)
		}
		prev = e.Hash
	}
	return nil
}

// hashInput fixes the field set and order covered by an entry's hash.
type hashInput struct {
	Seq        int64   `json:"seq"`
	PrevHash   string  `json:"prev_hash"`
	ID         string  `json:"id"`
	CreatedAt  string  `json:"created_at"`
	ActorID    string  `json:"actor_id"`
	Action     string  `json:"action"`
	TargetType string  `json:"target_type"`
	TargetID   string  `json:"target_id"`
	Before     string  `json:"before"`
	After      string  `json:"after"`
	BatchID    *string `json:"batch_id"`
	Metadata   string  `json:"metadata"`
}

func entryHash(e *model.AuditEntry) (string, error) {
	b, err := json.Marshal(hashInput{
		Seq:        e.Seq,
		PrevHash:   e.PrevHash,
		ID:         e.ID,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Before:     e.Before,
		After:      e.After,
		BatchID:    e.BatchID,
		Metadata:   e.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode audit entry for hashing: %w", err)
	}
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
