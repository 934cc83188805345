package account

import (
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain/account"
	"github.com/amirasaad/tenantledger/pkg/domain/business"
	"github.com/amirasaad/tenantledger/pkg/domain/transaction"
	"github.com/google/uuid"
)

// CreateAccountRequest opens an account. Currency defaults to USD.
type CreateAccountRequest struct {
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// ListAccountsQuery filters GET /accounts.
type ListAccountsQuery struct {
	Currency string `query:"currency"`
}

// TransactionsQuery pages GET /accounts/:id/transactions.
type TransactionsQuery struct {
	Limit int `query:"limit"`
}

// AccountDTO is the API representation of an account.
type AccountDTO struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	BusinessName  string    `json:"business_name,omitempty"`
	BusinessEmail string    `json:"business_email,omitempty"`
	Balance       int64     `json:"balance"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

func toDTO(a *account.Account, owner *business.Business) AccountDTO {
	dto := AccountDTO{
		ID:         a.ID.String(),
		BusinessID: a.BusinessID.String(),
		Balance:    a.Balance,
		Currency:   a.Currency,
		CreatedAt:  a.CreatedAt,
	}
	if owner != nil {
		dto.BusinessName = owner.Name
		dto.BusinessEmail = owner.Email
	}
	return dto
}

// TransactionDTO is one entry of an account's history.
type TransactionDTO struct {
	ID             string    `json:"id"`
	Type           string    `json:"transaction_type"`
	FromAccountID  string    `json:"from_account_id,omitempty"`
	ToAccountID    string    `json:"to_account_id,omitempty"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toTransactionDTO(t *transaction.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            t.ID.String(),
		Type:          string(t.Type),
		FromAccountID: idString(t.FromAccountID),
		ToAccountID:   idString(t.ToAccountID),
		Amount:        t.Amount,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
	}
	if t.IdempotencyKey != nil {
		dto.IdempotencyKey = *t.IdempotencyKey
	}
	return dto
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
