// Package guard validates proposed handoff mutations against the stored
// record. Every write path in the store funnels through Check.
package guard

import (
	"slices"
	"time"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/model"
)

// Check returns nil if proposed is an allowed successor of old.
//
// A draft may change freely apart from its identity, creator and status
// edges. Once submitted, the core fields are frozen, supplemental notes may
// only be appended, and status must follow the state machine.
func Check(old, proposed *model.Handoff) error {
	if old.ID != proposed.ID {
		return apperr.New(apperr.KindImmutableField, "id cannot change")
	}
	if err := checkTransition(old.Status, proposed.Status); err != nil {
		return err
	}

	if old.Status == model.StatusDraft {
		if old.CreatorID != proposed.CreatorID {
			return apperr.New(apperr.KindImmutableField, "creator cannot change")
		}
		return nil
	}

	if err := checkCoreFields(old, proposed); err != nil {
		return err
	}
	if err := checkAppendOnly(old.SupplementalNotes, proposed.SupplementalNotes); err != nil {
		return err
	}
	return checkLifecycleStamps(old, proposed)
}

func checkTransition(from, to model.Status) error {
	if !to.Valid() {
		return apperr.New(apperr.KindInvalidTransition, "unknown status %q", to)
	}
	if from == to {
		return nil
	}
	if from.IsTerminal() {
		return apperr.New(apperr.KindInvalidTransition, "handoff is %s; no further transitions", from)
	}
	if !model.CanTransition(from, to) {
		return apperr.New(apperr.KindInvalidTransition, "cannot move from %s to %s", from, to)
	}
	return nil
}

func checkCoreFields(old, proposed *model.Handoff) error {
	switch {
	case old.ShiftDate != proposed.ShiftDate:
		return locked("shift_date")
	case old.ShiftType != proposed.ShiftType:
		return locked("shift_type")
	case !slices.Equal(old.AssetIDs(), proposed.AssetIDs()):
		return locked("covered assets")
	case old.CreatorID != proposed.CreatorID:
		return locked("creator")
	case old.SummaryText != proposed.SummaryText:
		return locked("summary_text")
	case old.Notes != proposed.Notes:
		return locked("notes")
	case old.VoiceNoteCount != proposed.VoiceNoteCount:
		return locked("voice notes")
	case !timePtrEqual(old.SubmittedAt, proposed.SubmittedAt):
		return locked("submitted_at")
	}
	return nil
}

func checkAppendOnly(old, proposed []model.SupplementalNote) error {
	if len(proposed) < len(old) {
		return apperr.New(apperr.KindAppendOnly, "supplemental notes cannot be removed")
	}
	for i := range old {
		if !noteEqual(old[i], proposed[i]) {
			return apperr.New(apperr.KindAppendOnly, "supplemental note %d cannot be altered", old[i].Seq)
		}
	}
	return nil
}

// checkLifecycleStamps allows the acknowledgment and expiry stamps to be set
// only on the edge that produces them.
func checkLifecycleStamps(old, proposed *model.Handoff) error {
	acknowledging := old.Status == model.StatusPendingAcknowledgment && proposed.Status == model.StatusAcknowledged
	if acknowledging {
		if proposed.AcknowledgedBy == nil || proposed.AcknowledgedAt == nil {
			return apperr.New(apperr.KindValidation, "acknowledgment requires acknowledger and time")
		}
	} else if !strPtrEqual(old.AcknowledgedBy, proposed.AcknowledgedBy) || !timePtrEqual(old.AcknowledgedAt, proposed.AcknowledgedAt) {
		return locked("acknowledged_by")
	}

	expiring := old.Status == model.StatusPendingAcknowledgment && proposed.Status == model.StatusExpired
	if !expiring && !timePtrEqual(old.ExpiredAt, proposed.ExpiredAt) {
		return locked("expired_at")
	}
	return nil
}

func locked(field string) error {
	return apperr.New(apperr.KindImmutableField, "%s cannot change after submission", field)
}

func noteEqual(a, b model.SupplementalNote) bool {
	return a.Seq == b.Seq && a.AuthorID == b.AuthorID && a.Text == b.Text && a.CreatedAt.Equal(b.CreatedAt)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
