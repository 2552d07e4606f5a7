// Command seed fills the configured storage backend with plausible
// demo data for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/garyjeong/household-ledger-server/internal/cli"
	"github.com/garyjeong/household-ledger-server/internal/core"
	applog "github.com/garyjeong/household-ledger-server/internal/log"
	"github.com/garyjeong/household-ledger-server/internal/services"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

var expenseCategories = []string{"식비", "교통", "주거", "통신", "쇼핑", "의료", "문화생활"}

func main() {
	users := flag.Int("users", 2, "number of demo users")
	months := flag.Int("months", 3, "months of transaction history")
	perMonth := flag.Int("per-month", 20, "transactions per user per month")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	logger := cli.SetupLogger("seed")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenStorage(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("storage cleanup failed", "error", err)
		}
	}()

	gofakeit.Seed(*seed)
	rng := rand.New(rand.NewSource(*seed))

	if err := run(ctx, logger, store.Repository, rng, *users, *months, *perMonth); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *applog.Logger, repo storage.Repository, rng *rand.Rand, users, months, perMonth int) error {
	userSvc := services.NewUserService(repo)
	txSvc := services.NewTransactionService(repo, nil)

	for i := 0; i < users; i++ {
		email := fmt.Sprintf("demo%d@%s", i+1, gofakeit.DomainName())
		user, err := userSvc.Register(ctx, email, "demo-password", gofakeit.Username())
		if err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}

		categories := make([]core.Category, 0, len(expenseCategories))
		for _, name := range expenseCategories {
			c := core.Category{CreatedBy: user.ID, Name: name, Type: core.Expense}
			if err := repo.CreateCategory(ctx, &c); err != nil {
				return fmt.Errorf("category %s: %w", name, err)
			}
			categories = append(categories, c)
		}
		salaryCat := core.Category{CreatedBy: user.ID, Name: "급여", Type: core.Income}
		if err := repo.CreateCategory(ctx, &salaryCat); err != nil {
			return fmt.Errorf("category 급여: %w", err)
		}

		today := core.Today()
		created := 0
		for m := 0; m < months; m++ {
			monthStart := today.AddDays(-30 * (m + 1))

			salary := core.Transaction{
				OwnerUserID: user.ID,
				Type:        core.Income,
				Date:        monthStart,
				Amount:      core.Money{Cents: 300_000_000},
				CategoryID:  salaryCat.ID,
				Memo:        "월급",
			}
			if err := repo.CreateTransaction(ctx, &salary); err != nil {
				return fmt.Errorf("salary transaction: %w", err)
			}
			created++

			for n := 0; n < perMonth; n++ {
				cat := categories[rng.Intn(len(categories))]
				t := core.Transaction{
					OwnerUserID: user.ID,
					Type:        core.Expense,
					Date:        monthStart.AddDays(rng.Intn(28)),
					Amount:      core.Money{Cents: int64(rng.Intn(90_000)+1_000) * 100},
					CategoryID:  cat.ID,
					Merchant:    gofakeit.Company(),
					Memo:        gofakeit.ProductName(),
				}
				if err := repo.CreateTransaction(ctx, &t); err != nil {
					return fmt.Errorf("transaction: %w", err)
				}
				created++
			}
		}

		rentCat := categories[2] // 주거
		rule := core.RecurringRule{
			CreatedBy: user.ID,
			Template: core.TransactionTemplate{
				Type:       core.Expense,
				Amount:     core.Money{Cents: 50_000_000},
				CategoryID: rentCat.ID,
				Memo:       "월세",
			},
			Freq:      core.Frequency{Unit: core.Monthly, Interval: 1},
			StartDate: today.AddDays(-30 * months),
			IsActive:  true,
		}
		if err := repo.CreateRule(ctx, &rule); err != nil {
			return fmt.Errorf("recurring rule: %w", err)
		}

		budget := core.Budget{
			OwnerType:   core.OwnerUser,
			OwnerID:     user.ID,
			Period:      fmt.Sprintf("%04d-%02d", today.Year(), today.Month()),
			TotalAmount: core.Money{Cents: 200_000_000},
			Status:      core.BudgetActive,
		}
		if err := repo.UpsertBudget(ctx, &budget); err != nil {
			return fmt.Errorf("budget: %w", err)
		}

		// Quick-add path, so the demo data includes an auto-created
		// category too.
		if _, err := txSvc.QuickAdd(ctx, user.ID, services.QuickAddInput{
			AmountText:   "4500.00",
			CategoryName: "커피",
			Merchant:     gofakeit.Company(),
		}); err != nil {
			return fmt.Errorf("quick add: %w", err)
		}
		created++

		logger.Info("seeded user",
			applog.FieldUserID, user.ID,
			"email", user.Email,
			"transactions", created)
	}
	return nil
}
