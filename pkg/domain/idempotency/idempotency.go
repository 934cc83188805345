// Package idempotency models the per-business record of client operation keys.
package idempotency

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a key.
//
//	pending -> success   (the operation committed; response cached forever)
//	pending -> failed    (the operation was rejected; key may be reserved again)
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is the stored state for one (business, key) pair.
type Record struct {
	BusinessID   uuid.UUID
	Key          string
	Status       Status
	ResponseBody []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Outcome is the result of trying to reserve a key.
type Outcome int

const (
	// Fresh means the caller now owns the key and must execute the operation.
	Fresh Outcome = iota
	// Duplicate means the operation already succeeded; Response holds the cached body.
	Duplicate
	// Conflict means another execution holds the key right now.
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Duplicate:
		return "duplicate"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Reservation is the tagged result of Reserve.
type Reservation struct {
	Outcome  Outcome
	Response []byte
}
