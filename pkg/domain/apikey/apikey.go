package apikey

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// APIKey maps the hash of a presented credential to a business. Raw keys are
// never stored.
type APIKey struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	KeyHash    string
	IsActive   bool
	CreatedAt  time.Time
}

// Hash returns the lowercase hex SHA-256 of raw, the form keys are stored in.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
