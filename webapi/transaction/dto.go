package transaction

// TransferRequest moves amount between two accounts. Ids stay strings so a
// malformed id is reported as a ledger error naming the field.
type TransferRequest struct {
	FromAccountID  string `json:"from_account_id"`
	ToAccountID    string `json:"to_account_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=255"`
}

// CreditDebitRequest adds to or takes from a single account.
type CreditDebitRequest struct {
	AccountID       string `json:"account_id"`
	Amount          int64  `json:"amount"`
	TransactionType string `json:"transaction_type"`
	IdempotencyKey  string `json:"idempotency_key" validate:"max=255"`
}
