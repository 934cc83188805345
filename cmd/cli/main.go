// Command ledger is the operator CLI: it runs migrations, posts ledger
// operations on behalf of a business and drives webhook delivery by hand.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/amirasaad/tenantledger/infra"
	"github.com/amirasaad/tenantledger/infra/initializer"
	"github.com/amirasaad/tenantledger/pkg/app"
	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/service/auth"
	txsvc "github.com/amirasaad/tenantledger/pkg/service/transaction"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var Version = "dev"

// loader builds the application once per command invocation.
type loader func() (*app.App, error)

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadApp() (*app.App, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, err := initializer.InitializeDependencies(cfg, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	return app.New(deps, cfg), nil
}

func newRootCmd(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Operate the multi-tenant ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(load),
		accountCmd(load),
		transferCmd(load),
		creditDebitCmd(load, "credit"),
		creditDebitCmd(load, "debit"),
		deliverCmd(load),
		tokenCmd(load),
	)
	return root
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			return infra.RunMigrations(a.Deps.DB, a.Config.DB.MigrationsPath, a.Deps.Logger)
		},
	}
}

func accountCmd(load loader) *cobra.Command {
	var businessID, currency string
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Open an empty account for a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business: %w", err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			acc, err := a.AccountService.Create(cmd.Context(), id, currency)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"id":          acc.ID,
				"business_id": acc.BusinessID,
				"balance":     acc.Balance,
				"currency":    acc.Currency,
			})
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "owning business id")
	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO 4217 currency code")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}

func transferCmd(load loader) *cobra.Command {
	var businessID, from, to, key string
	var amount int64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business: %w", err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			res, err := a.TransactionService.Transfer(cmd.Context(), txsvc.TransferCommand{
				BusinessID:     id,
				FromAccountID:  from,
				ToAccountID:    to,
				Amount:         amount,
				IdempotencyKey: key,
			})
			return printResult(cmd, res, err)
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "acting business id")
	cmd.Flags().StringVar(&from, "from", "", "source account id")
	cmd.Flags().StringVar(&to, "to", "", "destination account id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key")
	for _, f := range []string{"business", "from", "to", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func creditDebitCmd(load loader, typ string) *cobra.Command {
	var businessID, accountID, key string
	var amount int64
	cmd := &cobra.Command{
		Use:   typ,
		Short: fmt.Sprintf("Post a %s to a single account", typ),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business: %w", err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			res, err := a.TransactionService.CreditDebit(cmd.Context(), txsvc.CreditDebitCommand{
				BusinessID:      id,
				AccountID:       accountID,
				Amount:          amount,
				TransactionType: typ,
				IdempotencyKey:  key,
			})
			return printResult(cmd, res, err)
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "acting business id")
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key")
	for _, f := range []string{"business", "account", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func deliverCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Run one webhook delivery pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			stats, err := a.Worker.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{
				"claimed":   stats.Claimed,
				"delivered": stats.Delivered,
				"retried":   stats.Retried,
				"failed":    stats.Failed,
				"skipped":   stats.Skipped,
			})
		},
	}
}

func tokenCmd(load loader) *cobra.Command {
	var businessID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a business (AUTH_STRATEGY=jwt)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(businessID)
			if err != nil {
				return fmt.Errorf("invalid --business: %w", err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			if a.Config.Auth.Jwt == nil || a.Config.Auth.Jwt.Secret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}
			token, err := auth.NewJWTStrategy(a.Deps.Uow, a.Config.Auth.Jwt, a.Deps.Logger).GenerateToken(id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "business id carried in the token")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}

// printResult prints ledger rejections the way the API renders them and
// returns every other error.
func printResult(cmd *cobra.Command, res any, err error) error {
	if e, ok := domain.AsError(err); ok {
		if perr := printJSON(cmd, map[string]any{"error": e.Error(), "code": e.Code}); perr != nil {
			return perr
		}
		return fmt.Errorf("rejected: %s", e.Code)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
