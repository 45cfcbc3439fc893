package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/model"
)

var t0 = time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)

func pending() *model.Handoff {
	submitted := t0
	h := &model.Handoff{
		ID:          "h-1",
		CreatorID:   "sup-a",
		ShiftDate:   "2026-10-14",
		ShiftType:   "night",
		SummaryText: "line 2 down for 40 minutes",
		Notes:       "spare belt ordered",
		Status:      model.StatusPendingAcknowledgment,
		SubmittedAt: &submitted,
		SupplementalNotes: []model.SupplementalNote{
			{Seq: 1, AuthorID: "sup-a", Text: "belt arrived", CreatedAt: t0.Add(time.Hour)},
		},
	}
	h.SetAssets([]string{"press-1", "oven-2"})
	return h
}

func TestCheckDraftAllowsAnyChange(t *testing.T) {
	old := pending()
	old.Status = model.StatusDraft
	old.SubmittedAt = nil

	proposed := old.Clone()
	proposed.ShiftDate = "2026-10-15"
	proposed.SummaryText = "rewritten"
	proposed.SupplementalNotes = nil
	proposed.SetAssets([]string{"press-9"})

	assert.NoError(t, Check(old, proposed))
}

func TestCheckDraftKeepsCreator(t *testing.T) {
	old := pending()
	old.Status = model.StatusDraft

	proposed := old.Clone()
	proposed.CreatorID = "sup-b"

	assert.True(t, errors.Is(Check(old, proposed), apperr.ErrImmutableField))
}

func TestCheckSubmittedCoreFieldsAreLocked(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(h *model.Handoff)
	}{
		{"shift_date", func(h *model.Handoff) { h.ShiftDate = "2026-10-13" }},
		{"shift_type", func(h *model.Handoff) { h.ShiftType = "day" }},
		{"assets added", func(h *model.Handoff) { h.SetAssets([]string{"press-1", "oven-2", "mixer-3"}) }},
		{"assets swapped", func(h *model.Handoff) { h.SetAssets([]string{"press-1", "oven-3"}) }},
		{"creator", func(h *model.Handoff) { h.CreatorID = "sup-z" }},
		{"summary_text", func(h *model.Handoff) { h.SummaryText = "nothing happened" }},
		{"notes", func(h *model.Handoff) { h.Notes = "" }},
		{"voice notes", func(h *model.Handoff) { h.VoiceNoteCount++ }},
		{"acknowledger without transition", func(h *model.Handoff) {
			by := "sup-b"
			h.AcknowledgedBy = &by
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			old := pending()
			proposed := old.Clone()
			tc.mutate(proposed)

			err := Check(old, proposed)
			assert.True(t, errors.Is(err, apperr.ErrImmutableField), "got %v", err)
		})
	}
}

func TestCheckAssetOrderIsIrrelevant(t *testing.T) {
	old := pending()
	proposed := old.Clone()
	proposed.Assets = []model.HandoffAsset{{HandoffID: "h-1", AssetID: "press-1"}, {HandoffID: "h-1", AssetID: "oven-2"}}

	assert.NoError(t, Check(old, proposed))
}

func TestCheckSupplementalNotesAppendOnly(t *testing.T) {
	t.Run("append is allowed", func(t *testing.T) {
		old := pending()
		proposed := old.Clone()
		proposed.SupplementalNotes = append(proposed.SupplementalNotes,
			model.SupplementalNote{Seq: 2, AuthorID: "sup-b", Text: "checked belt", CreatedAt: t0.Add(2 * time.Hour)})

		assert.NoError(t, Check(old, proposed))
	})

	t.Run("removal is rejected", func(t *testing.T) {
		old := pending()
		proposed := old.Clone()
		proposed.SupplementalNotes = nil

		assert.True(t, errors.Is(Check(old, proposed), apperr.ErrAppendOnly))
	})

	t.Run("edit is rejected", func(t *testing.T) {
		old := pending()
		proposed := old.Clone()
		proposed.SupplementalNotes[0].Text = "belt never arrived"

		assert.True(t, errors.Is(Check(old, proposed), apperr.ErrAppendOnly))
		assert.Equal(t, "belt arrived", old.SupplementalNotes[0].Text)
	})

	t.Run("reorder is rejected", func(t *testing.T) {
		old := pending()
		old.SupplementalNotes = append(old.SupplementalNotes,
			model.SupplementalNote{Seq: 2, AuthorID: "sup-b", Text: "second", CreatedAt: t0.Add(2 * time.Hour)})
		proposed := old.Clone()
		proposed.SupplementalNotes[0], proposed.SupplementalNotes[1] = proposed.SupplementalNotes[1], proposed.SupplementalNotes[0]

		assert.True(t, errors.Is(Check(old, proposed), apperr.ErrAppendOnly))
	})
}

func TestCheckTransitions(t *testing.T) {
	by := "sup-b"
	at := t0.Add(3 * time.Hour)

	testCases := []struct {
		name    string
		from    model.Status
		to      model.Status
		wantErr error
	}{
		{"draft to pending", model.StatusDraft, model.StatusPendingAcknowledgment, nil},
		{"draft to acknowledged", model.StatusDraft, model.StatusAcknowledged, apperr.ErrInvalidTransition},
		{"draft to expired", model.StatusDraft, model.StatusExpired, apperr.ErrInvalidTransition},
		{"pending to acknowledged", model.StatusPendingAcknowledgment, model.StatusAcknowledged, nil},
		{"pending to expired", model.StatusPendingAcknowledgment, model.StatusExpired, nil},
		{"pending to draft", model.StatusPendingAcknowledgment, model.StatusDraft, apperr.ErrInvalidTransition},
		{"acknowledged to expired", model.StatusAcknowledged, model.StatusExpired, apperr.ErrInvalidTransition},
		{"acknowledged to pending", model.StatusAcknowledged, model.StatusPendingAcknowledgment, apperr.ErrInvalidTransition},
		{"expired to acknowledged", model.StatusExpired, model.StatusAcknowledged, apperr.ErrInvalidTransition},
		{"unknown status", model.StatusPendingAcknowledgment, model.Status("archived"), apperr.ErrInvalidTransition},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			old := pending()
			old.Status = tc.from
			if tc.from == model.StatusAcknowledged {
				old.AcknowledgedBy, old.AcknowledgedAt = &by, &at
			}
			proposed := old.Clone()
			proposed.Status = tc.to
			if tc.to == model.StatusAcknowledged && tc.from != model.StatusAcknowledged {
				proposed.AcknowledgedBy, proposed.AcknowledgedAt = &by, &at
			}
			if tc.to == model.StatusExpired {
				proposed.ExpiredAt = &at
			}

			err := Check(old, proposed)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			}
		})
	}
}

func TestCheckAcknowledgeRequiresStamps(t *testing.T) {
	old := pending()
	proposed := old.Clone()
	proposed.Status = model.StatusAcknowledged

	assert.True(t, errors.Is(Check(old, proposed), apperr.ErrValidation))
}
