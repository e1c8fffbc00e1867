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

// ActualEntry is one recorded purchase ("batch") against a line item.
// The actual_entries table is the ledger: append-mostly, the system of
// record for what was actually bought.
type ActualEntry struct {
	ID     int `gorm:"primary_key" json:"id"`
	ItemId int `gorm:"not null;uniqueIndex:idx_item_sequence,priority:1" json:"item_id" binding:"required"`
	// Sequence is monotonic per item and defines batch order. Two
	// entries recorded in the same instant are still deterministically
	// ordered. The composite unique index rejects duplicate sequence
	// numbers for the same item at the schema level too.
	Sequence        int             `gorm:"not null;uniqueIndex:idx_item_sequence,priority:2" json:"sequence"`
	ActualQty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"actual_qty"`
	ActualUnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"actual_unit_price"`
	ActualTotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_total"`
	// always qty * unit price
	RecordedAt time.Time `gorm:"not null" json:"recorded_at"`
	RecordedBy int       `gorm:"default:null" json:"recorded_by"`
	Supplier   string    `gorm:"size:255;default:null" json:"supplier"`
	Notes      string    `gorm:"type:text;default:null" json:"notes"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewActualEntry struct {
	ActualUnitPrice decimal.Decimal `json:"actual_unit_price" binding:"required"`
	// ActualQty nil means "use the item's estimated quantity".
	ActualQty  *decimal.Decimal `json:"actual_qty"`
	RecordedAt *time.Time       `json:"recorded_at"`
	Supplier   string           `json:"supplier"`
	Notes      string           `json:"notes"`
}

type UpdateActualEntryInput struct {
	ActualUnitPrice *decimal.Decimal `json:"actual_unit_price"`
	ActualQty       *decimal.Decimal `json:"actual_qty"`
	RecordedAt      *time.Time       `json:"recorded_at"`
	Supplier        *string          `json:"supplier"`
	Notes           *string          `json:"notes"`
}

// RecordActual appends a purchase batch to the item's ledger. Omitted
// quantity falls back to the item's estimated quantity, so a bare
// "bought it at this price" call books the full estimated amount.
func RecordActual(ctx context.Context, itemId int, input *NewActualEntry) (*ActualEntry, error) {
	if !input.ActualUnitPrice.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if input.ActualQty != nil && !input.ActualQty.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	recordedAt := time.Now().UTC()
	if input.RecordedAt != nil {
		recordedAt = input.RecordedAt.UTC()
	}
	recordedBy, _ := utils.GetUserIdFromContext(ctx)

	var entry ActualEntry
	var estimateId, siteId int

	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		// Item row lock serializes concurrent RecordActual calls on the
		// same item: sequence assignment and the parent rollup below
		// cannot interleave with another writer's.
		item, err := getLineItemLocked(tx, itemId)
		if err != nil {
			return err
		}
		estimateId = item.EstimateId
		release := obtainEstimateLock(ctx, estimateId)
		defer release()

		qty := item.EstimatedQty
		if input.ActualQty != nil {
			qty = *input.ActualQty
		}

		entry = ActualEntry{
			ItemId:          item.ID,
			ActualQty:       qty,
			ActualUnitPrice: input.ActualUnitPrice,
			ActualTotal:     qty.Mul(input.ActualUnitPrice),
			RecordedAt:      recordedAt,
			RecordedBy:      recordedBy,
			Supplier:        input.Supplier,
			Notes:           input.Notes,
		}
		if err := insertActualEntry(tx, &entry); err != nil {
			return err
		}

		siteId, err = rollupParents(tx, item.EstimateId)
		if err != nil {
			return err
		}
		return publishLedgerEvent(ctx, tx, LedgerEntityActualEntry, entry.ID, LedgerEventActionCreate, &entry)
	})
	if err != nil {
		return nil, err
	}

	invalidateRollupCache(estimateId, siteId)
	return &entry, nil
}

// UpdateActual edits one batch. actual_total is recomputed when price
// or quantity changed; rollups follow in the same transaction.
func UpdateActual(ctx context.Context, id int, input *UpdateActualEntryInput) (*ActualEntry, error) {
	if input.ActualUnitPrice != nil && !input.ActualUnitPrice.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if input.ActualQty != nil && !input.ActualQty.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	var updated *ActualEntry
	var estimateId, siteId int

	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		var entry ActualEntry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActualNotFound
			}
			return err
		}
		// Lock the owning item before touching the row so we serialize
		// with RecordActual/DeleteActual on the same item.
		item, err := getLineItemLocked(tx, entry.ItemId)
		if err != nil {
			return err
		}
		estimateId = item.EstimateId
		release := obtainEstimateLock(ctx, estimateId)
		defer release()

		if input.ActualQty != nil {
			entry.ActualQty = *input.ActualQty
		}
		if input.ActualUnitPrice != nil {
			entry.ActualUnitPrice = *input.ActualUnitPrice
		}
		entry.ActualTotal = entry.ActualQty.Mul(entry.ActualUnitPrice)
		if input.RecordedAt != nil {
			entry.RecordedAt = input.RecordedAt.UTC()
		}
		if input.Supplier != nil {
			entry.Supplier = *input.Supplier
		}
		if input.Notes != nil {
			entry.Notes = *input.Notes
		}

		if err := tx.Save(&entry).Error; err != nil {
			return err
		}
		siteId, err = rollupParents(tx, item.EstimateId)
		if err != nil {
			return err
		}
		updated = &entry
		return publishLedgerEvent(ctx, tx, LedgerEntityActualEntry, entry.ID, LedgerEventActionUpdate, &entry)
	})
	if err != nil {
		return nil, err
	}

	invalidateRollupCache(estimateId, siteId)
	return updated, nil
}

// DeleteActual removes one batch and rolls the parents up. Remaining
// entries keep their sequence numbers; batch numbering in reports is
// positional, so reports renumber naturally.
func DeleteActual(ctx context.Context, id int) (*ActualEntry, error) {
	var deleted *ActualEntry
	var estimateId, siteId int

	err := runLedgerWrite(ctx, func(tx *gorm.DB) error {
		var entry ActualEntry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActualNotFound
			}
			return err
		}
		item, err := getLineItemLocked(tx, entry.ItemId)
		if err != nil {
			return err
		}
		estimateId = item.EstimateId
		release := obtainEstimateLock(ctx, estimateId)
		defer release()

		if err := tx.Delete(&ActualEntry{}, entry.ID).Error; err != nil {
			return err
		}
		siteId, err = rollupParents(tx, item.EstimateId)
		if err != nil {
			return err
		}
		deleted = &entry
		return publishLedgerEvent(ctx, tx, LedgerEntityActualEntry, entry.ID, LedgerEventActionDelete, &entry)
	})
	if err != nil {
		return nil, err
	}

	invalidateRollupCache(estimateId, siteId)
	return deleted, nil
}

func GetActualEntry(ctx context.Context, id int) (*ActualEntry, error) {
	entry, err := utils.FetchModel[ActualEntry](ctx, id)
	if err != nil {
		return nil, ErrActualNotFound
	}
	return entry, nil
}

// GetActualEntries lists an item's batches in sequence order.
func GetActualEntries(ctx context.Context, itemId int) ([]*ActualEntry, error) {
	if err := utils.ValidateResourceId[LineItem](ctx, itemId); err != nil {
		return nil, ErrItemNotFound
	}
	db := config.GetDB()
	var entries []*ActualEntry
	err := db.WithContext(ctx).Where("item_id = ?", itemId).Order("sequence").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
