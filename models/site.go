package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zawbuild/sitebooks_backend/config"
	"github.com/zawbuild/sitebooks_backend/utils"
)

type Site struct {
	ID      int    `gorm:"primary_key" json:"id"`
	Name    string `gorm:"size:255;not null" json:"name" binding:"required"`
	Address string `gorm:"type:text;default:null" json:"address"`
	// BudgetLimit is advisory; exceeding it never blocks a write.
	BudgetLimit    *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"budget_limit"`
	EstimatedTotal decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"estimated_total"`
	// sum(estimates.estimated_total)
	PurchasedTotal decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchased_total"`
	// sum(actual_entries.actual_total) across the site's estimates
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSite struct {
	Name        string           `json:"name" binding:"required"`
	Address     string           `json:"address"`
	BudgetLimit *decimal.Decimal `json:"budget_limit"`
}

// SiteRollup is the read-only aggregate view served to dashboards.
// Both totals are derived state; the actual_entries table remains the
// source of truth for what was purchased.
type SiteRollup struct {
	SiteId         int              `json:"site_id"`
	EstimatedTotal decimal.Decimal  `json:"estimated_total"`
	PurchasedTotal decimal.Decimal  `json:"purchased_total"`
	BudgetLimit    *decimal.Decimal `json:"budget_limit"`
	OverBudget     bool             `json:"over_budget"`
}

func CreateSite(ctx context.Context, input *NewSite) (*Site, error) {
	db := config.GetDB()

	if input.BudgetLimit != nil && !input.BudgetLimit.IsPositive() {
		return nil, errors.New("budget limit must be greater than zero")
	}

	site := Site{
		Name:        input.Name,
		Address:     input.Address,
		BudgetLimit: input.BudgetLimit,
	}
	if err := db.WithContext(ctx).Create(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func GetSite(ctx context.Context, id int) (*Site, error) {
	site, err := utils.FetchModel[Site](ctx, id)
	if err != nil {
		return nil, ErrSiteNotFound
	}
	return site, nil
}

// GetSiteRollup reads the committed site totals. Redis is a read-through
// cache; misses and redis outages fall back to the DB row.
func GetSiteRollup(ctx context.Context, siteId int) (*SiteRollup, error) {
	var rollup SiteRollup
	exists, err := config.GetRedisObject(siteRollupKey(siteId), &rollup)
	if err == nil && exists {
		return &rollup, nil
	}

	site, err := GetSite(ctx, siteId)
	if err != nil {
		return nil, err
	}

	rollup = SiteRollup{
		SiteId:         site.ID,
		EstimatedTotal: site.EstimatedTotal,
		PurchasedTotal: site.PurchasedTotal,
		BudgetLimit:    site.BudgetLimit,
	}
	if site.BudgetLimit != nil && site.PurchasedTotal.GreaterThan(*site.BudgetLimit) {
		rollup.OverBudget = true
	}

	if err := config.SetRedisObject(siteRollupKey(siteId), &rollup, 5*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "site.go", "GetSiteRollup", "cache rollup", siteId, err)
	}
	return &rollup, nil
}

func siteRollupKey(siteId int) string {
	return "site:rollup:" + fmt.Sprint(siteId)
}
