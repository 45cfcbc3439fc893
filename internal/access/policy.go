// Package access decides which actor may do what to a handoff.
//
// Access is capability based: authorship, recorded acknowledgment and
// overlap between the actor's asset assignments and the handoff's covered
// assets. All checks go through Policy.Authorize.
package access

import (
	"context"
	"fmt"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/model"
)

// Actor is an authenticated caller.
type Actor struct {
	ID    string
	Admin bool
}

// Action is an operation an actor attempts on a handoff.
type Action string

const (
	ActionRead        Action = "read"
	ActionCreate      Action = "create"
	ActionEdit        Action = "edit"
	ActionAnnotate    Action = "annotate"
	ActionAcknowledge Action = "acknowledge"
)

// Directory answers which assets an actor currently covers. It is an
// external, read-only source.
type Directory interface {
	AssetsFor(ctx context.Context, actorID string) ([]string, error)
}

// Policy evaluates access for every read and write.
type Policy struct {
	dir               Directory
	adminReadOverride bool
}

// NewPolicy creates a policy over the given directory. When adminReadOverride
// is set, admins may read any handoff; they gain no write capability.
func NewPolicy(dir Directory, adminReadOverride bool) *Policy {
	return &Policy{dir: dir, adminReadOverride: adminReadOverride}
}

// Authorize returns nil if actor may perform action on h, an
// apperr.ErrNotAuthorized error if not, or a lookup error.
func (p *Policy) Authorize(ctx context.Context, actor Actor, action Action, h *model.Handoff) error {
	if actor.ID == "" {
		return apperr.New(apperr.KindNotAuthorized, "unauthenticated actor")
	}

	switch action {
	case ActionCreate:
		if h.CreatorID != actor.ID {
			return denied(actor, action)
		}
		return nil

	case ActionEdit:
		if h.CreatorID != actor.ID {
			return denied(actor, action)
		}
		return nil

	case ActionRead, ActionAnnotate:
		if h.CreatorID == actor.ID {
			return nil
		}
		if h.AcknowledgedBy != nil && *h.AcknowledgedBy == actor.ID {
			return nil
		}
		if action == ActionRead && actor.Admin && p.adminReadOverride {
			return nil
		}
		ok, err := p.covers(ctx, actor.ID, h)
		if err != nil {
			return err
		}
		if !ok {
			return denied(actor, action)
		}
		return nil

	case ActionAcknowledge:
		if h.CreatorID == actor.ID {
			return apperr.New(apperr.KindNotAuthorized, "the author cannot acknowledge their own handoff")
		}
		ok, err := p.covers(ctx, actor.ID, h)
		if err != nil {
			return err
		}
		if !ok {
			return denied(actor, action)
		}
		return nil
	}

	return apperr.New(apperr.KindNotAuthorized, "unknown action %q", action)
}

// AssetsFor exposes the actor's current assignments, used to scope listings.
func (p *Policy) AssetsFor(ctx context.Context, actorID string) ([]string, error) {
	assets, err := p.dir.AssetsFor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset assignments for %s: %w", actorID, err)
	}
	return assets, nil
}

func (p *Policy) covers(ctx context.Context, actorID string, h *model.Handoff) (bool, error) {
	assets, err := p.AssetsFor(ctx, actorID)
	if err != nil {
		return false, err
	}
	covered := make(map[string]struct{}, len(h.Assets))
	for _, a := range h.Assets {
		covered[a.AssetID] = struct{}{}
	}
	for _, a := range assets {
		if _, ok := covered[a]; ok {
			return true, nil
		}
	}
	return false, nil
}

func denied(actor Actor, action Action) error {
	return apperr.New(apperr.KindNotAuthorized, "actor %s may not %s this handoff", actor.ID, action)
}
