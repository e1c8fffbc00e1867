package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/zawbuild/sitebooks_backend/config"
	"github.com/zawbuild/sitebooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger store: row-level operations. Every function here takes the
// caller's transaction and never commits; the operation that opened the
// transaction owns the commit/rollback decision.

const writeRetryLimit = 3

// runLedgerWrite opens a transaction, runs fn, and commits. Lock
// conflicts (MySQL deadlock / lock wait timeout) are retried up to
// writeRetryLimit times, then surfaced as ErrConcurrentModification.
// Other store failures surface as ErrUnavailable. Domain errors pass
// through untouched and always roll the transaction back, so a failed
// operation leaves zero persisted side effects.
func runLedgerWrite(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()

	var err error
	for attempt := 1; attempt <= writeRetryLimit; attempt++ {
		tx := db.WithContext(ctx).Begin()
		if tx.Error != nil {
			err = tx.Error
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
			continue
		}

		err = fn(tx)
		if err == nil {
			err = tx.Commit().Error
			if err == nil {
				return nil
			}
		} else {
			tx.Rollback()
		}

		if !utils.IsLockConflict(err) {
			if isDomainError(err) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}

	if utils.IsLockConflict(err) {
		return ErrConcurrentModification
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isDomainError(err error) bool {
	for _, domainErr := range []error{
		ErrSiteNotFound, ErrEstimateNotFound, ErrCategoryNotFound,
		ErrItemNotFound, ErrActualNotFound,
		ErrInvalidQuantity, ErrInvalidPrice,
		ErrHasDependentActuals, ErrInvalidStatusChange,
	} {
		if errors.Is(err, domainErr) {
			return true
		}
	}
	return false
}

// obtainEstimateLock takes a best-effort redis lock scoped to the
// estimate being rolled up. Correctness does not depend on it: the
// FOR UPDATE row locks below are the real serialization mechanism, the
// redis lock just keeps hot estimates from piling up on DB locks.
func obtainEstimateLock(ctx context.Context, estimateId int) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	lock, err := locker.Obtain(ctx, "estimateLock:"+fmt.Sprint(estimateId), 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if err != nil {
		// Proceed without it; DB locks still guard the rollup.
		return func() {}
	}
	return func() { _ = lock.Release(ctx) }
}

// getLineItemLocked fetches the line item FOR UPDATE. Writers against
// the same item serialize here, which also makes sequence assignment
// race-free.
func getLineItemLocked(tx *gorm.DB, id int) (*LineItem, error) {
	var item LineItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func getEstimateLocked(tx *gorm.DB, id int) (*Estimate, error) {
	var estimate Estimate
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&estimate, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEstimateNotFound
		}
		return nil, err
	}
	return &estimate, nil
}

func getSiteLocked(tx *gorm.DB, id int) (*Site, error) {
	var site Site
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&site, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return &site, nil
}

// listActualEntriesTx returns the item's entries in batch order.
func listActualEntriesTx(tx *gorm.DB, itemId int) ([]ActualEntry, error) {
	var entries []ActualEntry
	err := tx.Where("item_id = ?", itemId).Order("sequence").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// insertActualEntry assigns the next per-item sequence and inserts the
// row. The caller must hold the item's row lock; MAX(sequence)+1 is
// safe because concurrent inserters on the same item cannot reach this
// point together. Gaps after deletes are fine, duplicates are not.
func insertActualEntry(tx *gorm.DB, entry *ActualEntry) error {
	var maxSeq int
	err := tx.Model(&ActualEntry{}).Where("item_id = ?", entry.ItemId).
		Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq).Error
	if err != nil {
		return err
	}
	entry.Sequence = maxSeq + 1
	return tx.Create(entry).Error
}

func deleteAllActualEntries(tx *gorm.DB, itemId int) (int64, error) {
	result := tx.Where("item_id = ?", itemId).Delete(&ActualEntry{})
	return result.RowsAffected, result.Error
}

func countActualEntries(tx *gorm.DB, itemId int) (int64, error) {
	var count int64
	err := tx.Model(&ActualEntry{}).Where("item_id = ?", itemId).Count(&count).Error
	return count, err
}
