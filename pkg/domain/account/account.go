package account

import (
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/google/uuid"
)

// DefaultCurrency is used when an account is opened without an explicit currency.
const DefaultCurrency = "USD"

var (
	// ErrInvalidCurrencyCode is returned for codes that are not three ASCII letters.
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	// ErrMissingBusiness is returned when building an account without an owner.
	ErrMissingBusiness = errors.New("account must belong to a business")
	// ErrNegativeBalance is returned when building an account with a balance below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")
)

// Account is a balance held by a business in a single currency.
//
// Invariants:
//   - Balance is expressed in the currency's smallest unit and never negative.
//   - Currency never changes after creation.
//   - Only the owning business may debit the account; any business may transfer into it.
type Account struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Balance    int64
	Currency   string
	CreatedAt  time.Time
}

// Builder provides a fluent API for constructing Account instances.
type Builder struct {
	id         uuid.UUID
	businessID uuid.UUID
	balance    int64
	currency   string
	createdAt  time.Time
}

// New creates a new Builder with a fresh id and the default currency.
func New() *Builder {
	return &Builder{
		id:        uuid.New(),
		currency:  DefaultCurrency,
		createdAt: time.Now().UTC(),
	}
}

func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithBusinessID sets the owning business. This is a mandatory field.
func (b *Builder) WithBusinessID(businessID uuid.UUID) *Builder {
	b.businessID = businessID
	return b
}

func (b *Builder) WithCurrency(code string) *Builder {
	if code != "" {
		b.currency = strings.ToUpper(code)
	}
	return b
}

// WithBalance sets the opening balance. Used when hydrating from storage or
// seeding fixtures.
func (b *Builder) WithBalance(balance int64) *Builder {
	b.balance = balance
	return b
}

func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// Build validates the invariants and returns the account.
func (b *Builder) Build() (*Account, error) {
	if b.businessID == uuid.Nil {
		return nil, ErrMissingBusiness
	}
	if !IsValidCurrencyCode(b.currency) {
		return nil, ErrInvalidCurrencyCode
	}
	if b.balance < 0 {
		return nil, ErrNegativeBalance
	}
	return &Account{
		ID:         b.id,
		BusinessID: b.businessID,
		Balance:    b.balance,
		Currency:   b.currency,
		CreatedAt:  b.createdAt,
	}, nil
}

// OwnedBy reports whether the account belongs to the given business.
func (a *Account) OwnedBy(businessID uuid.UUID) bool {
	return a.BusinessID == businessID
}

// ValidateDebit checks that amount can be taken from the account without
// driving the balance negative.
func (a *Account) ValidateDebit(amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if a.Balance < amount {
		return domain.InsufficientBalance(a.Balance, amount)
	}
	return nil
}

// ValidateTransferTo checks the currency rule and the source balance for a
// transfer from a into dest.
func (a *Account) ValidateTransferTo(dest *Account, amount int64) error {
	if a.Currency != dest.Currency {
		return domain.CurrencyMismatch(a.Currency, dest.Currency)
	}
	return a.ValidateDebit(amount)
}

// IsValidCurrencyCode reports whether code looks like an ISO 4217 code.
func IsValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
