// Package transaction exposes the transaction engine over HTTP.
package transaction

import (
	"github.com/amirasaad/tenantledger/pkg/middleware"
	txsvc "github.com/amirasaad/tenantledger/pkg/service/transaction"
	"github.com/amirasaad/tenantledger/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the balance-moving endpoints.
//
// Routes:
//   - POST /transactions/transfer     : Move funds between two accounts.
//   - POST /transactions/credit-debit : Credit or debit a single account.
func Routes(app *fiber.App, svc *txsvc.Service, auth middleware.Authenticator) {
	group := app.Group("/transactions", middleware.Authenticated(auth))
	group.Post("/transfer", Transfer(svc))
	group.Post("/credit-debit", CreditDebit(svc))
}

// Transfer returns a handler for POST /transactions/transfer. Rejections are
// rendered with status 200 and an error body; a replayed idempotency key
// returns the original body with cached set.
func Transfer(svc *txsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[TransferRequest](c)
		if input == nil {
			return err
		}
		result, err := svc.Transfer(c.UserContext(), txsvc.TransferCommand{
			BusinessID:     businessID,
			FromAccountID:  input.FromAccountID,
			ToAccountID:    input.ToAccountID,
			Amount:         input.Amount,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return common.ErrorJSON(c, "Transfer failed", err)
		}
		return c.JSON(result)
	}
}

// CreditDebit returns a handler for POST /transactions/credit-debit.
func CreditDebit(svc *txsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[CreditDebitRequest](c)
		if input == nil {
			return err
		}
		result, err := svc.CreditDebit(c.UserContext(), txsvc.CreditDebitCommand{
			BusinessID:      businessID,
			AccountID:       input.AccountID,
			Amount:          input.Amount,
			TransactionType: input.TransactionType,
			IdempotencyKey:  input.IdempotencyKey,
		})
		if err != nil {
			return common.ErrorJSON(c, "Credit/debit failed", err)
		}
		return c.JSON(result)
	}
}
