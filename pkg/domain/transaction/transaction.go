package transaction

import (
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/google/uuid"
)

// Type is the kind of balance movement a transaction records.
type Type string

const (
	TypeTransfer Type = "transfer"
	TypeCredit   Type = "credit"
	TypeDebit    Type = "debit"
)

// Status of a recorded transaction. Only successful transactions are
// persisted today; failed is reserved for audit rows.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ParseSingleAccountType accepts the transaction types allowed on the
// single-account credit/debit operation.
func ParseSingleAccountType(s string) (Type, error) {
	switch Type(s) {
	case TypeCredit, TypeDebit:
		return Type(s), nil
	default:
		return "", domain.ErrInvalidTransactionType
	}
}

// Transaction is an immutable record of one applied balance movement.
//
// A transfer sets both account ids, a credit only ToAccountID and a debit
// only FromAccountID.
type Transaction struct {
	ID             uuid.UUID
	BusinessID     uuid.UUID
	FromAccountID  *uuid.UUID
	ToAccountID    *uuid.UUID
	Amount         int64
	Type           Type
	Status         Status
	IdempotencyKey *string
	CreatedAt      time.Time
}

// NewTransfer records amount moved from one account to another.
func NewTransfer(businessID, from, to uuid.UUID, amount int64, key string, now time.Time) *Transaction {
	return &Transaction{
		ID:             uuid.New(),
		BusinessID:     businessID,
		FromAccountID:  &from,
		ToAccountID:    &to,
		Amount:         amount,
		Type:           TypeTransfer,
		Status:         StatusSuccess,
		IdempotencyKey: optionalKey(key),
		CreatedAt:      now,
	}
}

// NewSingleAccount records a credit into or a debit out of accountID.
func NewSingleAccount(businessID, accountID uuid.UUID, typ Type, amount int64, key string, now time.Time) *Transaction {
	t := &Transaction{
		ID:             uuid.New(),
		BusinessID:     businessID,
		Amount:         amount,
		Type:           typ,
		Status:         StatusSuccess,
		IdempotencyKey: optionalKey(key),
		CreatedAt:      now,
	}
	if typ == TypeDebit {
		t.FromAccountID = &accountID
	} else {
		t.ToAccountID = &accountID
	}
	return t
}

func optionalKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
