package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zawbuild/sitebooks_backend/config"
	"github.com/zawbuild/sitebooks_backend/utils"
	"gorm.io/gorm"
)

type Estimate struct {
	ID            int            `gorm:"primary_key" json:"id"`
	SiteId        int            `gorm:"index;not null" json:"site_id" binding:"required"`
	Name          string         `gorm:"size:255;not null" json:"name" binding:"required"`
	CurrentStatus EstimateStatus `gorm:"type:enum('Draft','Submitted','Approved','Rejected','Archived');not null" json:"current_status"`
	// sum(line_items.estimated_total); recomputed inside the same
	// transaction as every item mutation.
	EstimatedTotal decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_total"`
	// Version increments with every committed mutation that touched the
	// rollup, for optimistic-concurrency reporting.
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEstimate struct {
	SiteId int    `json:"site_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

type EstimateRollup struct {
	EstimateId     int             `json:"estimate_id"`
	EstimatedTotal decimal.Decimal `json:"estimated_total"`
	Version        int64           `json:"version"`
}

func CreateEstimate(ctx context.Context, input *NewEstimate) (*Estimate, error) {
	db := config.GetDB()

	if err := utils.ValidateResourceId[Site](ctx, input.SiteId); err != nil {
		return nil, ErrSiteNotFound
	}

	estimate := Estimate{
		SiteId:        input.SiteId,
		Name:          input.Name,
		CurrentStatus: EstimateStatusDraft,
	}
	if err := db.WithContext(ctx).Create(&estimate).Error; err != nil {
		return nil, err
	}
	return &estimate, nil
}

func GetEstimate(ctx context.Context, id int) (*Estimate, error) {
	estimate, err := utils.FetchModel[Estimate](ctx, id)
	if err != nil {
		return nil, ErrEstimateNotFound
	}
	return estimate, nil
}

func GetEstimates(ctx context.Context, siteId int) ([]*Estimate, error) {
	return utils.FetchModelsWhere[Estimate](ctx, "site_id = ?", siteId)
}

// UpdateEstimateStatus applies one transition of the status machine:
// Draft -> Submitted -> {Approved, Rejected}; anything -> Archived;
// Archived is terminal. Status never touches the numeric rollups.
func UpdateEstimateStatus(ctx context.Context, id int, status EstimateStatus) (*Estimate, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatusChange
	}

	var updated *Estimate
	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		// Validate under the row lock. A transition committed by a
		// concurrent writer is visible here, so a terminal state cannot
		// be overwritten by a writer that read the state earlier.
		estimate, err := getEstimateLocked(tx, id)
		if err != nil {
			return err
		}
		if !estimate.CurrentStatus.CanTransitionTo(status) {
			return ErrInvalidStatusChange
		}
		oldStatus := estimate.CurrentStatus

		if err := tx.Model(&Estimate{}).Where("id = ?", id).
			UpdateColumn("current_status", status).Error; err != nil {
			return err
		}
		estimate.CurrentStatus = status
		updated = estimate
		return publishLedgerEvent(ctx, tx, LedgerEntityEstimate, id, LedgerEventActionUpdate, map[string]any{
			"old_status": oldStatus,
			"new_status": status,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetEstimateRollup reads the committed estimate total, redis-cached.
func GetEstimateRollup(ctx context.Context, estimateId int) (*EstimateRollup, error) {
	var rollup EstimateRollup
	exists, err := config.GetRedisObject(estimateRollupKey(estimateId), &rollup)
	if err == nil && exists {
		return &rollup, nil
	}

	estimate, err := GetEstimate(ctx, estimateId)
	if err != nil {
		return nil, err
	}

	rollup = EstimateRollup{
		EstimateId:     estimate.ID,
		EstimatedTotal: estimate.EstimatedTotal,
		Version:        estimate.Version,
	}
	if err := config.SetRedisObject(estimateRollupKey(estimateId), &rollup, 5*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "estimate.go", "GetEstimateRollup", "cache rollup", estimateId, err)
	}
	return &rollup, nil
}

func estimateRollupKey(estimateId int) string {
	return "estimate:rollup:" + fmt.Sprint(estimateId)
}
