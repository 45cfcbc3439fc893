package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/audit"
	"handoff-backend/internal/db"
	"handoff-backend/internal/guard"
	"handoff-backend/internal/model"
	"handoff-backend/internal/parse"
)

// SystemSweeper is the audit actor recorded for time-based expiry.
const SystemSweeper = "system:sweeper"

// errNoChange aborts a mutation without writing anything.
var errNoChange = errors.New("no change")

// Limits bound what a handoff may hold.
type Limits struct {
	ShiftTypes          []string
	MaxVoiceNotes       int
	MaxVoiceNoteSeconds int
}

// Mutation describes one guarded write. Apply edits a private copy of the
// stored record; InTx performs any additional writes that must commit with it.
type Mutation struct {
	Actor    string
	Action   model.AuditAction
	BatchID  *string
	Metadata map[string]any
	Apply    func(h *model.Handoff) error
	InTx     func(tx *gorm.DB, old, updated *model.Handoff) error
}

// DraftPatch holds the draft fields a creator may edit. Nil fields are left alone.
type DraftPatch struct {
	ShiftDate   *string
	ShiftType   *string
	Assets      *[]string
	SummaryText *string
	Notes       *string
}

// VoiceNoteInput is a voice note to attach to a draft.
type VoiceNoteInput struct {
	StorageRef      string
	Transcript      string
	DurationSeconds int
}

// HandoffStore owns handoff persistence. Every mutation of a stored handoff
// goes through Mutate.
type HandoffStore struct {
	db     *gorm.DB
	ledger audit.Ledger
	limits Limits
	now    func() time.Time
}

// NewHandoffStore creates a GORM-backed handoff store.
func NewHandoffStore(gormDB *gorm.DB, ledger audit.Ledger, limits Limits) *HandoffStore {
	if limits.MaxVoiceNotes <= 0 {
		limits.MaxVoiceNotes = 5
	}
	if limits.MaxVoiceNoteSeconds <= 0 {
		limits.MaxVoiceNoteSeconds = 60
	}
	return &HandoffStore{db: gormDB, ledger: ledger, limits: limits, now: time.Now}
}

// DB returns the underlying database handle.
func (s *HandoffStore) DB() *gorm.DB {
	return s.db
}

// Ledger returns the audit ledger the store appends to.
func (s *HandoffStore) Ledger() audit.Ledger {
	return s.ledger
}

// Now returns the store clock, normalised for storage.
func (s *HandoffStore) Now() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// SetClock replaces the store clock.
func (s *HandoffStore) SetClock(now func() time.Time) {
	s.now = now
}

// Create inserts a new draft handoff for creatorID.
func (s *HandoffStore) Create(ctx context.Context, creatorID, shiftDate, shiftType string, assets []string, summary, notes string) (*model.Handoff, error) {
	if creatorID == "" {
		return nil, apperr.New(apperr.KindValidation, "creator is required")
	}
	shift, err := parse.ParseShift(shiftDate, shiftType, s.limits.ShiftTypes)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "%v", err)
	}

	now := s.Now()
	h := &model.Handoff{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		ShiftDate:   shift.Date,
		ShiftType:   shift.Type,
		SummaryText: summary,
		Notes:       notes,
		Status:      model.StatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	h.SetAssets(parse.AssetRefs(assets))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(h).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.New(apperr.KindValidation,
					"an open handoff already exists for %s %s shift", h.ShiftDate, h.ShiftType)
			}
			return fmt.Errorf("failed to create handoff: %w", err)
		}
		entry, err := audit.Entry(creatorID, model.ActionHandoffCreated, model.TargetHandoff, h.ID, nil, h.Snapshot())
		if err != nil {
			return err
		}
		return s.ledger.WithTx(tx).Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Get loads a handoff with its assets, supplemental notes and voice notes.
func (s *HandoffStore) Get(ctx context.Context, id string) (*model.Handoff, error) {
	return loadHandoff(s.db.WithContext(ctx), id, false)
}

// ListPending returns pending handoffs covering any of assets and not
// authored by excludeCreator, newest shift first.
func (s *HandoffStore) ListPending(ctx context.Context, assets []string, excludeCreator string) ([]model.Handoff, error) {
	if len(assets) == 0 {
		return []model.Handoff{}, nil
	}
	covering := s.db.Model(&model.HandoffAsset{}).Select("handoff_id").Where("asset_id IN ?", assets)

	var handoffs []model.Handoff
	err := withAssociations(s.db.WithContext(ctx)).
		Where("status = ? AND creator_id <> ? AND id IN (?)", model.StatusPendingAcknowledgment, excludeCreator, covering).
		Order("shift_date DESC").
		Order("created_at DESC").
		Find(&handoffs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending handoffs: %w", err)
	}
	return handoffs, nil
}

// ListByCreator returns the handoffs authored by creatorID, optionally
// filtered by status, newest first.
func (s *HandoffStore) ListByCreator(ctx context.Context, creatorID string, statuses ...model.Status) ([]model.Handoff, error) {
	q := withAssociations(s.db.WithContext(ctx)).Where("creator_id = ?", creatorID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var handoffs []model.Handoff
	if err := q.Order("created_at DESC").Find(&handoffs).Error; err != nil {
		return nil, fmt.Errorf("failed to list handoffs for %s: %w", creatorID, err)
	}
	return handoffs, nil
}

// Mutate applies m to handoff id inside one transaction. The proposed record
// must pass guard.Check; a rejected or conflicting write changes nothing.
func (s *HandoffStore) Mutate(ctx context.Context, id string, m Mutation) (*model.Handoff, error) {
	var result *model.Handoff
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.MutateTx(ctx, tx, id, m)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MutateTx is Mutate within a caller-owned transaction.
func (s *HandoffStore) MutateTx(ctx context.Context, tx *gorm.DB, id string, m Mutation) (*model.Handoff, error) {
	old, err := loadHandoff(tx, id, true)
	if err != nil {
		return nil, err
	}

	proposed := old.Clone()
	if err := m.Apply(proposed); err != nil {
		if errors.Is(err, errNoChange) {
			return old, nil
		}
		return nil, err
	}
	if err := guard.Check(old, proposed); err != nil {
		return nil, err
	}

	proposed.Version = old.Version + 1
	proposed.UpdatedAt = s.Now()

	res := tx.Model(&model.Handoff{}).
		Where("id = ? AND version = ?", id, old.Version).
		Updates(map[string]any{
			"shift_date":       proposed.ShiftDate,
			"shift_type":       proposed.ShiftType,
			"summary_text":     proposed.SummaryText,
			"notes":            proposed.Notes,
			"status":           proposed.Status,
			"acknowledged_by":  proposed.AcknowledgedBy,
			"acknowledged_at":  proposed.AcknowledgedAt,
			"submitted_at":     proposed.SubmittedAt,
			"expired_at":       proposed.ExpiredAt,
			"voice_note_count": proposed.VoiceNoteCount,
			"version":          proposed.Version,
			"updated_at":       proposed.UpdatedAt,
		})
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error) {
			return nil, apperr.New(apperr.KindValidation,
				"an open handoff already exists for %s %s shift", proposed.ShiftDate, proposed.ShiftType)
		}
		return nil, fmt.Errorf("failed to update handoff %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.KindConflict, "handoff %s was modified concurrently; re-read and retry", id)
	}

	if !slices.Equal(old.AssetIDs(), proposed.AssetIDs()) {
		if err := tx.Where("handoff_id = ?", id).Delete(&model.HandoffAsset{}).Error; err != nil {
			return nil, fmt.Errorf("failed to clear assets of handoff %s: %w", id, err)
		}
		if len(proposed.Assets) > 0 {
			for i := range proposed.Assets {
				proposed.Assets[i].HandoffID = id
			}
			if err := tx.Create(&proposed.Assets).Error; err != nil {
				return nil, fmt.Errorf("failed to store assets of handoff %s: %w", id, err)
			}
		}
	}

	if added := proposed.SupplementalNotes[len(old.SupplementalNotes):]; len(added) > 0 {
		for i := range added {
			added[i].HandoffID = id
		}
		if err := tx.Create(&added).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return nil, apperr.New(apperr.KindConflict, "supplemental note sequence taken on handoff %s; re-read and retry", id)
			}
			return nil, fmt.Errorf("failed to append supplemental notes to handoff %s: %w", id, err)
		}
	}

	if m.InTx != nil {
		if err := m.InTx(tx, old, proposed); err != nil {
			return nil, err
		}
	}

	entry, err := audit.Entry(m.Actor, m.Action, model.TargetHandoff, id, old.Snapshot(), proposed.Snapshot())
	if err != nil {
		return nil, err
	}
	entry.BatchID = m.BatchID
	if len(m.Metadata) > 0 {
		if entry, err = audit.WithMetadata(entry, m.Metadata); err != nil {
			return nil, err
		}
	}
	if err := s.ledger.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}
	return proposed, nil
}

// Update edits draft fields. On a submitted handoff any change to a locked
// field is rejected by the guard.
func (s *HandoffStore) Update(ctx context.Context, actorID, id string, patch DraftPatch) (*model.Handoff, error) {
	var shiftDate, shiftType string
	var err error
	if patch.ShiftDate != nil {
		if shiftDate, err = parse.ParseShiftDate(*patch.ShiftDate); err != nil {
			return nil, apperr.New(apperr.KindValidation, "%v", err)
		}
	}
	if patch.ShiftType != nil {
		if shiftType, err = parse.ParseShiftType(*patch.ShiftType, s.limits.ShiftTypes); err != nil {
			return nil, apperr.New(apperr.KindValidation, "%v", err)
		}
	}

	return s.Mutate(ctx, id, Mutation{
		Actor:  actorID,
		Action: model.ActionHandoffUpdated,
		Apply: func(h *model.Handoff) error {
			before := h.Clone()
			if patch.ShiftDate != nil {
				h.ShiftDate = shiftDate
			}
			if patch.ShiftType != nil {
				h.ShiftType = shiftType
			}
			if patch.Assets != nil {
				h.SetAssets(parse.AssetRefs(*patch.Assets))
			}
			if patch.SummaryText != nil {
				h.SummaryText = *patch.SummaryText
			}
			if patch.Notes != nil {
				h.Notes = *patch.Notes
			}
			if sameDraftFields(before, h) {
				return errNoChange
			}
			return nil
		},
	})
}

// AppendVoiceNote attaches a voice note to a draft handoff, assigning the
// next sequence number.
func (s *HandoffStore) AppendVoiceNote(ctx context.Context, actorID, id string, in VoiceNoteInput) (*model.VoiceNote, error) {
	if strings.TrimSpace(in.StorageRef) == "" {
		return nil, apperr.New(apperr.KindValidation, "voice note storage reference is required")
	}
	if in.DurationSeconds <= 0 || in.DurationSeconds > s.limits.MaxVoiceNoteSeconds {
		return nil, apperr.New(apperr.KindValidation,
			"voice note duration must be between 1 and %d seconds, got %d", s.limits.MaxVoiceNoteSeconds, in.DurationSeconds)
	}

	note := &model.VoiceNote{
		ID:              uuid.NewString(),
		HandoffID:       id,
		StorageRef:      in.StorageRef,
		Transcript:      in.Transcript,
		DurationSeconds: in.DurationSeconds,
	}
	_, err := s.Mutate(ctx, id, Mutation{
		Actor:    actorID,
		Action:   model.ActionVoiceNoteAdded,
		Metadata: map[string]any{"voice_note_id": note.ID, "duration_seconds": in.DurationSeconds},
		Apply: func(h *model.Handoff) error {
			if h.Status != model.StatusDraft {
				return apperr.New(apperr.KindImmutableField, "voice notes cannot be added after submission")
			}
			if h.VoiceNoteCount >= s.limits.MaxVoiceNotes {
				return apperr.New(apperr.KindValidation, "a handoff holds at most %d voice notes", s.limits.MaxVoiceNotes)
			}
			h.VoiceNoteCount++
			note.Seq = h.VoiceNoteCount
			return nil
		},
		InTx: func(tx *gorm.DB, _, updated *model.Handoff) error {
			note.CreatedAt = updated.UpdatedAt
			if err := tx.Create(note).Error; err != nil {
				if db.IsUniqueViolation(err) {
					return apperr.New(apperr.KindConflict, "voice note sequence %d taken on handoff %s", note.Seq, id)
				}
				return fmt.Errorf("failed to store voice note: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// Submit moves a complete draft to pending_acknowledgment.
func (s *HandoffStore) Submit(ctx context.Context, actorID, id string) (*model.Handoff, error) {
	return s.Mutate(ctx, id, Mutation{
		Actor:  actorID,
		Action: model.ActionHandoffSubmitted,
		Apply: func(h *model.Handoff) error {
			if h.Status != model.StatusDraft {
				return apperr.New(apperr.KindInvalidTransition, "only drafts can be submitted; handoff is %s", h.Status)
			}
			var missing []string
			if h.ShiftDate == "" {
				missing = append(missing, "shift_date")
			}
			if h.ShiftType == "" {
				missing = append(missing, "shift_type")
			}
			if len(h.Assets) == 0 {
				missing = append(missing, "covered assets")
			}
			if len(missing) > 0 {
				return apperr.New(apperr.KindValidation, "cannot submit without %s", strings.Join(missing, ", "))
			}
			now := s.Now()
			h.Status = model.StatusPendingAcknowledgment
			h.SubmittedAt = &now
			return nil
		},
	})
}

// AppendSupplementalNote adds an annotation to a submitted handoff.
func (s *HandoffStore) AppendSupplementalNote(ctx context.Context, actorID, id, text string) (*model.Handoff, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindValidation, "supplemental note text is required")
	}
	return s.Mutate(ctx, id, Mutation{
		Actor:  actorID,
		Action: model.ActionSupplementalNoteAdded,
		Apply: func(h *model.Handoff) error {
			if h.Status == model.StatusDraft {
				return apperr.New(apperr.KindValidation, "supplemental notes are for submitted handoffs; edit the draft instead")
			}
			h.SupplementalNotes = append(h.SupplementalNotes, model.SupplementalNote{
				HandoffID: h.ID,
				Seq:       len(h.SupplementalNotes) + 1,
				AuthorID:  actorID,
				Text:      text,
				CreatedAt: s.Now(),
			})
			return nil
		},
	})
}

// Expire moves every handoff still pending since before cutoff to expired.
// All transitions share one audit batch id, which is returned.
func (s *HandoffStore) Expire(ctx context.Context, cutoff time.Time) (string, int, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Handoff{}).
		Where("status = ? AND submitted_at < ?", model.StatusPendingAcknowledgment, cutoff.UTC()).
		Order("submitted_at").
		Pluck("id", &ids).Error
	if err != nil {
		return "", 0, fmt.Errorf("failed to find expirable handoffs: %w", err)
	}
	if len(ids) == 0 {
		return "", 0, nil
	}

	batchID := uuid.NewString()
	expired := 0
	for _, id := range ids {
		changed := false
		_, err := s.Mutate(ctx, id, Mutation{
			Actor:    SystemSweeper,
			Action:   model.ActionHandoffExpired,
			BatchID:  &batchID,
			Metadata: map[string]any{"cutoff": cutoff.UTC().Format(time.RFC3339)},
			Apply: func(h *model.Handoff) error {
				if h.Status != model.StatusPendingAcknowledgment {
					return errNoChange
				}
				now := s.Now()
				h.Status = model.StatusExpired
				h.ExpiredAt = &now
				changed = true
				return nil
			},
		})
		if err != nil {
			log.Printf("Failed to expire handoff %s: %v", id, err)
			continue
		}
		if changed {
			expired++
		}
	}
	return batchID, expired, nil
}

func withAssociations(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("asset_id") }).
		Preload("SupplementalNotes", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("VoiceNotes", func(db *gorm.DB) *gorm.DB { return db.Order("seq") })
}

func loadHandoff(q *gorm.DB, id string, forUpdate bool) (*model.Handoff, error) {
	if forUpdate && q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var h model.Handoff
	if err := withAssociations(q).First(&h, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "handoff %s not found", id)
		}
		return nil, fmt.Errorf("failed to load handoff %s: %w", id, err)
	}
	return &h, nil
}

func sameDraftFields(a, b *model.Handoff) bool {
	return a.ShiftDate == b.ShiftDate &&
		a.ShiftType == b.ShiftType &&
		a.SummaryText == b.SummaryText &&
		a.Notes == b.Notes &&
		slices.Equal(a.AssetIDs(), b.AssetIDs())
}
