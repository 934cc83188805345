package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("transfer: %w", domain.InsufficientBalance(500, 1000))

	assert.ErrorIs(t, wrapped, domain.ErrInsufficientBalance)
	assert.False(t, errors.Is(wrapped, domain.ErrCurrencyMismatch))

	e, ok := domain.AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Insufficient balance: available 500, required 1000", e.Error())
}

func TestAccountNotFoundRoles(t *testing.T) {
	assert.Equal(t, "Source account not found", domain.AccountNotFound(domain.RoleSource).Message)
	assert.Equal(t, "Destination account not found", domain.AccountNotFound(domain.RoleDestination).Message)
	assert.ErrorIs(t, domain.AccountNotFound(domain.RoleAccount), domain.ErrAccountNotFound)
}

func TestInvalidIDNamesField(t *testing.T) {
	err := domain.InvalidID("from_account_id")
	assert.Equal(t, "Invalid from_account_id format", err.Error())
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestAsErrorIgnoresInfrastructureErrors(t *testing.T) {
	_, ok := domain.AsError(errors.New("connection reset"))
	assert.False(t, ok)
}
