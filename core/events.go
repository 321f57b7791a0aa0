package core

import (
	"context"
	"time"
)

// Routing keys of the published domain events.
const (
	EventClassroomJoined = "classroom.joined"
	EventQuizSubmitted   = "quiz.submitted"
	EventUserSignedUp    = "user.signed_up"
)

type (
	Event struct {
		Type       string      `json:"type"`
		OccurredAt time.Time   `json:"occurred_at"`
		Payload    interface{} `json:"payload"`
	}

	// EventPublisher is any service that can broadcast domain events.
	// Publishing never fails the operation that triggered it.
	EventPublisher interface {
		Publish(ctx context.Context, eventType string, payload interface{})
	}
)

func NewEvent(eventType string, payload interface{}) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}
