package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zawbuild/sitebooks_backend/config"
	"github.com/zawbuild/sitebooks_backend/utils"
	"gorm.io/gorm"
)

type LineItem struct {
	ID          int    `gorm:"primary_key" json:"id"`
	EstimateId  int    `gorm:"index;not null" json:"estimate_id" binding:"required"`
	CategoryId  int    `gorm:"index;not null" json:"category_id" binding:"required"`
	Description string `gorm:"size:255;default:null" json:"description"`
	Unit        string `gorm:"size:50;not null" json:"unit" binding:"required"`
	// unit code, e.g. "m3", "ton", "pcs"
	EstimatedQty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"estimated_qty" binding:"required"`
	EstimatedUnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"estimated_unit_price" binding:"required"`
	EstimatedTotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_total"`
	// always qty * unit price, recomputed on every write, never accepted
	// from input
	Notes     string    `gorm:"type:text;default:null" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLineItem struct {
	EstimateId         int             `json:"estimate_id" binding:"required"`
	CategoryId         int             `json:"category_id" binding:"required"`
	Description        string          `json:"description"`
	Unit               string          `json:"unit" binding:"required"`
	EstimatedQty       decimal.Decimal `json:"estimated_qty" binding:"required"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price" binding:"required"`
	Notes              string          `json:"notes"`
}

func (input NewLineItem) validate(ctx context.Context) error {
	if !input.EstimatedQty.IsPositive() {
		return ErrInvalidQuantity
	}
	if !input.EstimatedUnitPrice.IsPositive() {
		return ErrInvalidPrice
	}
	if err := utils.ValidateResourceId[Category](ctx, input.CategoryId); err != nil {
		return ErrCategoryNotFound
	}
	return nil
}

func CreateLineItem(ctx context.Context, input *NewLineItem) (*LineItem, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Estimate](ctx, input.EstimateId); err != nil {
		return nil, ErrEstimateNotFound
	}

	item := LineItem{
		EstimateId:         input.EstimateId,
		CategoryId:         input.CategoryId,
		Description:        input.Description,
		Unit:               input.Unit,
		EstimatedQty:       input.EstimatedQty,
		EstimatedUnitPrice: input.EstimatedUnitPrice,
		EstimatedTotal:     input.EstimatedQty.Mul(input.EstimatedUnitPrice),
		Notes:              input.Notes,
	}

	release := obtainEstimateLock(ctx, input.EstimateId)
	defer release()

	var siteId int
	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		var err error
		siteId, err = rollupParents(tx, item.EstimateId)
		if err != nil {
			return err
		}
		return publishLedgerEvent(ctx, tx, LedgerEntityLineItem, item.ID, LedgerEventActionCreate, &item)
	})
	if err != nil {
		return nil, err
	}

	invalidateRollupCache(item.EstimateId, siteId)
	return &item, nil
}

// UpdateLineItem edits quantity/price/category/description of an item.
// The item stays under its estimate; estimated_total is recomputed and
// the estimate and site rollups follow in the same transaction.
func UpdateLineItem(ctx context.Context, id int, input *NewLineItem) (*LineItem, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	var updated *LineItem
	var estimateId, siteId int

	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		item, err := getLineItemLocked(tx, id)
		if err != nil {
			return err
		}
		estimateId = item.EstimateId
		release := obtainEstimateLock(ctx, estimateId)
		defer release()

		item.CategoryId = input.CategoryId
		item.Description = input.Description
		item.Unit = input.Unit
		item.EstimatedQty = input.EstimatedQty
		item.EstimatedUnitPrice = input.EstimatedUnitPrice
		item.EstimatedTotal = input.EstimatedQty.Mul(input.EstimatedUnitPrice)
		item.Notes = input.Notes

		if err := tx.Save(item).Error; err != nil {
			return err
		}
		siteId, err = rollupParents(tx, item.EstimateId)
		if err != nil {
			return err
		}
		updated = item
		return publishLedgerEvent(ctx, tx, LedgerEntityLineItem, item.ID, LedgerEventActionUpdate, item)
	})
	if err != nil {
		return nil, err
	}

	invalidateRollupCache(estimateId, siteId)
	return updated, nil
}

// DeleteLineItem removes an item. An item that has recorded actual
// entries is only deleted when cascade is true, in which case the
// entries go with it; otherwise the call fails with
// ErrHasDependentActuals and nothing changes.
func DeleteLineItem(ctx context.Context, id int, cascade bool) (*LineItem, error) {
	var deleted *LineItem
	var estimateId, siteId int

	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		item, err := getLineItemLocked(tx, id)
		if err != nil {
			return err
		}
		estimateId = item.EstimateId
		release := obtainEstimateLock(ctx, estimateId)
		defer release()

		count, err := countActualEntries(tx, item.ID)
		if err != nil {
			return err
		}
		if count > 0 && !cascade {
			return ErrHasDependentActuals
		}
		if count > 0 {
			if _, err := deleteAllActualEntries(tx, item.ID); err != nil {
				return err
			}
		}

		if err := tx.Delete(&LineItem{}, item.ID).Error; err != nil {
			return err
		}
		siteId, err = rollupParents(tx, item.EstimateId)
		if err != nil {
			return err
		}
		deleted = item
		return publishLedgerEvent(ctx, tx, LedgerEntityLineItem, item.ID, LedgerEventActionDelete, map[string]any{
			"item":            item,
			"cascaded_actual": count,
		})
	})
	if err != nil {
		return nil, err
	}

	invalidateRollupCache(estimateId, siteId)
	return deleted, nil
}

func GetLineItem(ctx context.Context, id int) (*LineItem, error) {
	item, err := utils.FetchModel[LineItem](ctx, id)
	if err != nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func GetLineItems(ctx context.Context, estimateId int) ([]*LineItem, error) {
	return utils.FetchModelsWhere[LineItem](ctx, "estimate_id = ?", estimateId)
}

// GetItemVariance is the read path: it never writes rollups. Reads are
// not retried so a store failure is visible to the caller instead of
// being masked. Item and entries come out of one transaction so an
// interleaved item edit cannot produce a mismatched snapshot.
func GetItemVariance(ctx context.Context, itemId int) (*ItemVariance, error) {
	db := config.GetDB()

	var item LineItem
	var entries []ActualEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, itemId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		var err error
		entries, err = listActualEntriesTx(tx, itemId)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ComputeItemVariance(&item, entries), nil
}
