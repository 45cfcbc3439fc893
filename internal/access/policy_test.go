package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/model"
)

type failingDirectory struct{}

func (failingDirectory) AssetsFor(context.Context, string) ([]string, error) {
	return nil, errors.New("directory unavailable")
}

func testHandoff() *model.Handoff {
	h := &model.Handoff{ID: "h-1", CreatorID: "sup-a", Status: model.StatusPendingAcknowledgment}
	h.SetAssets([]string{"press-1", "oven-2"})
	return h
}

func TestAuthorize(t *testing.T) {
	dir := StaticDirectory{
		"sup-a": {"press-1"},
		"sup-b": {"oven-2", "mixer-3"},
		"sup-c": {"mixer-3"},
	}
	acknowledged := testHandoff()
	ackBy := "sup-c"
	acknowledged.AcknowledgedBy = &ackBy

	testCases := []struct {
		name    string
		policy  *Policy
		actor   Actor
		action  Action
		handoff *model.Handoff
		allowed bool
	}{
		{"creator reads", NewPolicy(dir, false), Actor{ID: "sup-a"}, ActionRead, testHandoff(), true},
		{"overlapping actor reads", NewPolicy(dir, false), Actor{ID: "sup-b"}, ActionRead, testHandoff(), true},
		{"unrelated actor cannot read", NewPolicy(dir, false), Actor{ID: "sup-c"}, ActionRead, testHandoff(), false},
		{"acknowledger reads without overlap", NewPolicy(dir, false), Actor{ID: "sup-c"}, ActionRead, acknowledged, true},
		{"admin without override cannot read", NewPolicy(dir, false), Actor{ID: "admin", Admin: true}, ActionRead, testHandoff(), false},
		{"admin with override reads", NewPolicy(dir, true), Actor{ID: "admin", Admin: true}, ActionRead, testHandoff(), true},
		{"admin override does not grant annotate", NewPolicy(dir, true), Actor{ID: "admin", Admin: true}, ActionAnnotate, testHandoff(), false},
		{"anonymous actor", NewPolicy(dir, true), Actor{}, ActionRead, testHandoff(), false},
		{"create for self", NewPolicy(dir, false), Actor{ID: "sup-a"}, ActionCreate, testHandoff(), true},
		{"create for someone else", NewPolicy(dir, false), Actor{ID: "sup-b"}, ActionCreate, testHandoff(), false},
		{"creator edits", NewPolicy(dir, false), Actor{ID: "sup-a"}, ActionEdit, testHandoff(), true},
		{"overlapping actor cannot edit", NewPolicy(dir, false), Actor{ID: "sup-b"}, ActionEdit, testHandoff(), false},
		{"overlapping actor annotates", NewPolicy(dir, false), Actor{ID: "sup-b"}, ActionAnnotate, testHandoff(), true},
		{"overlapping actor acknowledges", NewPolicy(dir, false), Actor{ID: "sup-b"}, ActionAcknowledge, testHandoff(), true},
		{"creator cannot acknowledge", NewPolicy(dir, false), Actor{ID: "sup-a"}, ActionAcknowledge, testHandoff(), false},
		{"non-overlapping actor cannot acknowledge", NewPolicy(dir, false), Actor{ID: "sup-c"}, ActionAcknowledge, testHandoff(), false},
		{"admin cannot acknowledge without overlap", NewPolicy(dir, true), Actor{ID: "admin", Admin: true}, ActionAcknowledge, testHandoff(), false},
		{"unknown action", NewPolicy(dir, false), Actor{ID: "sup-a"}, Action("delete"), testHandoff(), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Authorize(context.Background(), tc.actor, tc.action, tc.handoff)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, apperr.ErrNotAuthorized), "got %v", err)
			}
		})
	}
}

func TestAuthorizeDirectoryFailure(t *testing.T) {
	p := NewPolicy(failingDirectory{}, false)

	err := p.Authorize(context.Background(), Actor{ID: "sup-b"}, ActionAcknowledge, testHandoff())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrNotAuthorized), "lookup failures are not authorization decisions")

	assert.NoError(t, p.Authorize(context.Background(), Actor{ID: "sup-a"}, ActionRead, testHandoff()),
		"the creator never needs a directory lookup")
}
