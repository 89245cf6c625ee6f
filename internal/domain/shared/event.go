package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about a committed change, addressed by the
// aggregate that changed and the owner it belongs to
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	OwnerID() uuid.UUID
}

// AggregateRef names the aggregate an event is about
type AggregateRef struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// BaseDomainEvent implements DomainEvent; concrete events embed it and add
// their payload.
type BaseDomainEvent struct {
	ID        uuid.UUID    `json:"id"`
	Type      string       `json:"type"`
	At        time.Time    `json:"occurred_at"`
	Aggregate AggregateRef `json:"aggregate"`
	Owner     uuid.UUID    `json:"owner_id"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate.ID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Aggregate.Type }
func (e *BaseDomainEvent) OwnerID() uuid.UUID     { return e.Owner }

// NewBaseDomainEvent stamps a new event ID and the current time
func NewBaseDomainEvent(eventType, aggType string, aggID, ownerID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        NewID(),
		Type:      eventType,
		At:        time.Now(),
		Aggregate: AggregateRef{Type: aggType, ID: aggID},
		Owner:     ownerID,
	}
}
