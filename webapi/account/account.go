// Package account exposes account management over HTTP.
package account

import (
	"errors"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/middleware"
	accountsvc "github.com/amirasaad/tenantledger/pkg/service/account"
	"github.com/amirasaad/tenantledger/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Routes registers account endpoints for the authenticated business.
//
// Routes:
//   - POST /accounts            : Open an empty account.
//   - GET  /accounts?currency=  : List the business's accounts.
//   - GET  /accounts/:id/transactions?limit= : Movement history of one account.
func Routes(app *fiber.App, svc *accountsvc.Service, auth middleware.Authenticator) {
	group := app.Group("/accounts", middleware.Authenticated(auth))
	group.Post("/", CreateAccount(svc))
	group.Get("/", ListAccounts(svc))
	group.Get("/:id/transactions", ListTransactions(svc))
}

// CreateAccount returns a handler that opens an account with a zero balance.
func CreateAccount(svc *accountsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[CreateAccountRequest](c)
		if input == nil {
			return err
		}
		a, err := svc.Create(c.UserContext(), businessID, input.Currency)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to create account", err)
		}
		return c.Status(fiber.StatusCreated).JSON(toDTO(a, nil))
	}
}

// ListAccounts returns a handler listing the caller's accounts, oldest first.
func ListAccounts(svc *accountsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		var q ListAccountsQuery
		if err := c.QueryParser(&q); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid query", err, err.Error(), fiber.StatusBadRequest)
		}
		owner, accounts, err := svc.List(c.UserContext(), businessID, q.Currency)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list accounts", err)
		}
		out := make([]AccountDTO, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, toDTO(a, owner))
		}
		return c.JSON(out)
	}
}

// ListTransactions returns a handler for an account's transaction history.
// Accounts of other businesses are reported as not found.
func ListTransactions(svc *accountsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		accountID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid account id", domain.InvalidID("id"))
		}
		var q TransactionsQuery
		if err := c.QueryParser(&q); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid query", err, err.Error(), fiber.StatusBadRequest)
		}
		history, err := svc.Transactions(c.UserContext(), businessID, accountID, q.Limit)
		if errors.Is(err, domain.ErrNotOwner) {
			err = domain.AccountNotFound(domain.RoleAccount)
		}
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		out := make([]TransactionDTO, 0, len(history))
		for _, t := range history {
			out = append(out, toTransactionDTO(t))
		}
		return c.JSON(out)
	}
}
