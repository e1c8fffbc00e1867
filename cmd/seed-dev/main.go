// seed-dev creates a sample site, estimate, category and line item for
// local development.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/zawbuild/sitebooks_backend/config"
	"github.com/zawbuild/sitebooks_backend/models"
	"github.com/zawbuild/sitebooks_backend/utils"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	limit := mustDecimal("500000")
	site, err := models.CreateSite(ctx, &models.NewSite{
		Name:        "Riverside Apartments",
		Address:     "14 Strand Rd",
		BudgetLimit: &limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create site: %v\n", err)
		os.Exit(1)
	}

	estimate, err := models.CreateEstimate(ctx, &models.NewEstimate{
		SiteId: site.ID,
		Name:   "Foundation works",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create estimate: %v\n", err)
		os.Exit(1)
	}

	category, err := models.CreateCategory(ctx, &models.NewCategory{Name: "Concrete"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create category: %v\n", err)
		os.Exit(1)
	}

	item, err := models.CreateLineItem(ctx, &models.NewLineItem{
		EstimateId:         estimate.ID,
		CategoryId:         category.ID,
		Description:        "Ready-mix concrete C25",
		Unit:               "m3",
		EstimatedQty:       mustDecimal("100"),
		EstimatedUnitPrice: mustDecimal("120.00"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create line item: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded site=%d estimate=%d category=%d item=%d\n", site.ID, estimate.ID, category.ID, item.ID)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := utils.ParseDecimal(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse decimal %q: %v\n", s, err)
		os.Exit(1)
	}
	return d
}
