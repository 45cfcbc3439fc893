package notification

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"handoff-backend/internal/model"
)

const acknowledgedTitle = "Handoff acknowledged"

// Payload is the JSON body delivered to a subscribed browser.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Data  PayloadData `json:"data"`
}

// PayloadData lets the client navigate to the acknowledged handoff.
type PayloadData struct {
	Type             string `json:"type"`
	HandoffID        string `json:"handoff_id"`
	AcknowledgmentID string `json:"acknowledgment_id"`
	AcknowledgedBy   string `json:"acknowledged_by"`
	AcknowledgedAt   string `json:"acknowledged_at"`
}

func acknowledgedBody(h *model.Handoff, ack *model.Acknowledgment) string {
	return fmt.Sprintf("%s acknowledged your %s shift handoff for %s at %s",
		ack.AcknowledgerID, h.ShiftType, h.ShiftDate, ack.AcknowledgedAt.UTC().Format("15:04 MST"))
}

// BuildPayload encodes the push message for an acknowledgment.
func BuildPayload(h *model.Handoff, ack *model.Acknowledgment) ([]byte, error) {
	b, err := json.Marshal(Payload{
		Title: acknowledgedTitle,
		Body:  acknowledgedBody(h, ack),
		Data: PayloadData{
			Type:             model.NotificationKindHandoffAcknowledged,
			HandoffID:        h.ID,
			AcknowledgmentID: ack.ID,
			AcknowledgedBy:   ack.AcknowledgerID,
			AcknowledgedAt:   ack.AcknowledgedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode push payload: %w", err)
	}
	return b, nil
}

// InApp builds the durable in-app notification for the handoff's creator.
func InApp(h *model.Handoff, ack *model.Acknowledgment) *model.Notification {
	return &model.Notification{
		ID:               uuid.NewString(),
		UserID:           h.CreatorID,
		Kind:             model.NotificationKindHandoffAcknowledged,
		Title:            acknowledgedTitle,
		Body:             acknowledgedBody(h, ack),
		HandoffID:        h.ID,
		AcknowledgmentID: ack.ID,
		CreatedAt:        ack.AcknowledgedAt,
	}
}
