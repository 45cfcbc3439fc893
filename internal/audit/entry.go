package audit

import (
	"encoding/json"
	"fmt"

	"handoff-backend/internal/model"
)

// Entry builds an audit entry with JSON-encoded before/after states. A nil
// state is stored empty.
func Entry(actorID string, action model.AuditAction, targetType, targetID string, before, after any) (*model.AuditEntry, error) {
	b, err := encode(before)
	if err != nil {
		return nil, fmt.Errorf("failed to encode before state: %w", err)
	}
	a, err := encode(after)
	if err != nil {
		return nil, fmt.Errorf("failed to encode after state: %w", err)
	}
	return &model.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     b,
		After:      a,
	}, nil
}

// WithMetadata attaches JSON metadata to the entry.
func WithMetadata(e *model.AuditEntry, meta map[string]any) (*model.AuditEntry, error) {
	m, err := encode(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	e.Metadata = m
	return e, nil
}

func encode(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
