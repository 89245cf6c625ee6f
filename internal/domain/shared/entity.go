package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps every stored entity has
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch records a modification
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// NewBaseEntity stamps a fresh ID and both timestamps with the same instant
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: NewID(), CreatedAt: now, UpdatedAt: now}
}

// NewID returns a UUIDv7 so that ID order follows creation order.
// Cost layers sharing an acquisition timestamp are tie-broken by ID.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
