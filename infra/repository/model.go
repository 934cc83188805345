package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business represents a tenant record in the database.
type Business struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     string    `gorm:"size:255;not null;uniqueIndex"`
	CreatedAt time.Time
}

// Account represents an account record in the database.
type Account struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`
	Balance    int64     `gorm:"not null;default:0;check:balance >= 0"`
	Currency   string    `gorm:"type:varchar(3);not null"`
	CreatedAt  time.Time
}

// Transaction represents a persisted ledger movement.
type Transaction struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BusinessID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_transactions_business_key,priority:1"`
	FromAccountID  *uuid.UUID `gorm:"type:uuid;index"`
	ToAccountID    *uuid.UUID `gorm:"type:uuid;index"`
	Amount         int64      `gorm:"not null"`
	Type           string     `gorm:"column:transaction_type;size:20;not null"`
	Status         string     `gorm:"size:20;not null"`
	IdempotencyKey *string    `gorm:"size:255;uniqueIndex:idx_transactions_business_key,priority:2"`
	CreatedAt      time.Time
}

// IdempotencyKey is the reservation row for one client operation key.
type IdempotencyKey struct {
	BusinessID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key          string    `gorm:"column:key;size:255;primaryKey"`
	Status       string    `gorm:"size:20;not null"`
	ResponseBody *string   `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WebhookEndpoint is a registered receiver URL.
type WebhookEndpoint struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`
	URL        string    `gorm:"column:url;not null"`
	Secret     string    `gorm:"not null"`
	IsActive   bool      `gorm:"not null"`
	CreatedAt  time.Time
}

// WebhookEvent is an outbox row.
type WebhookEvent struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	WebhookEndpointID uuid.UUID  `gorm:"type:uuid;not null;index"`
	EventType         string     `gorm:"size:50;not null"`
	Payload           string     `gorm:"type:jsonb;not null"`
	Status            string     `gorm:"size:20;not null;index:idx_webhook_events_due,priority:1"`
	Attempts          int        `gorm:"not null;default:0"`
	LastAttemptAt     *time.Time
	NextAttemptAt     *time.Time `gorm:"index:idx_webhook_events_due,priority:2"`
	LastError         *string
	LeaseID           *uuid.UUID `gorm:"type:uuid"`
	CreatedAt         time.Time  `gorm:"index"`
}

// APIKey is a hashed credential owned by a business.
type APIKey struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`
	KeyHash    string    `gorm:"size:64;not null;uniqueIndex"`
	IsActive   bool      `gorm:"not null"`
	CreatedAt  time.Time
}

func (Business) TableName() string        { return "businesses" }
func (Account) TableName() string         { return "accounts" }
func (Transaction) TableName() string     { return "transactions" }
func (IdempotencyKey) TableName() string  { return "idempotency_keys" }
func (WebhookEndpoint) TableName() string { return "webhook_endpoints" }
func (WebhookEvent) TableName() string    { return "webhook_events" }
func (APIKey) TableName() string          { return "api_keys" }

// AutoMigrate creates the schema from the models. Production databases are
// migrated with the SQL files under internal/migrations; this is used for
// throwaway databases.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&Account{},
		&Transaction{},
		&IdempotencyKey{},
		&WebhookEndpoint{},
		&WebhookEvent{},
		&APIKey{},
	)
}
