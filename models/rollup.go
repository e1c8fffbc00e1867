package models

import (
	"github.com/shopspring/decimal"
	"github.com/zawbuild/sitebooks_backend/config"
	"gorm.io/gorm"
)

// Rollup engine: recompute-by-full-sum of the parent aggregates inside
// the caller's transaction. Recomputing from current children instead
// of patching deltas is self-healing against drift; item counts per
// estimate are tens, not millions, so the extra aggregate query is
// cheap.
//
// The parent row is locked FOR UPDATE before the sum, so concurrent
// writers on the same parent serialize their read-children/write-parent
// sequence. A writer that waited on the lock re-reads after the holder
// committed and therefore sees its rows (read committed is enough).

// rollupEstimate recomputes the estimate's estimated_total from its
// current line items, bumps the version, and returns the owning site id
// so the caller can roll that up too.
func rollupEstimate(tx *gorm.DB, estimateId int) (siteId int, err error) {
	estimate, err := getEstimateLocked(tx, estimateId)
	if err != nil {
		return 0, err
	}

	var total decimal.Decimal
	err = tx.Model(&LineItem{}).Where("estimate_id = ?", estimateId).
		Select("COALESCE(SUM(estimated_total), 0)").Scan(&total).Error
	if err != nil {
		return 0, err
	}

	err = tx.Model(&Estimate{}).Where("id = ?", estimateId).
		UpdateColumns(map[string]interface{}{
			"estimated_total": total,
			"version":         gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return 0, err
	}
	return estimate.SiteId, nil
}

// rollupSite recomputes the site's estimated_total (over its estimates)
// and purchased_total (over every actual entry under the site).
func rollupSite(tx *gorm.DB, siteId int) error {
	if _, err := getSiteLocked(tx, siteId); err != nil {
		return err
	}

	var estimated decimal.Decimal
	err := tx.Model(&Estimate{}).Where("site_id = ?", siteId).
		Select("COALESCE(SUM(estimated_total), 0)").Scan(&estimated).Error
	if err != nil {
		return err
	}

	var purchased decimal.Decimal
	err = tx.Model(&ActualEntry{}).
		Joins("JOIN line_items ON line_items.id = actual_entries.item_id").
		Joins("JOIN estimates ON estimates.id = line_items.estimate_id").
		Where("estimates.site_id = ?", siteId).
		Select("COALESCE(SUM(actual_entries.actual_total), 0)").Scan(&purchased).Error
	if err != nil {
		return err
	}

	return tx.Model(&Site{}).Where("id = ?", siteId).
		UpdateColumns(map[string]interface{}{
			"estimated_total": estimated,
			"purchased_total": purchased,
		}).Error
}

// rollupParents runs both rollups in child-to-parent order and returns
// the site id for cache invalidation after commit.
func rollupParents(tx *gorm.DB, estimateId int) (siteId int, err error) {
	siteId, err = rollupEstimate(tx, estimateId)
	if err != nil {
		return 0, err
	}
	if err := rollupSite(tx, siteId); err != nil {
		return 0, err
	}
	return siteId, nil
}

// invalidateRollupCache drops the cached rollup reads after a commit.
// Cache misses rebuild from the committed rows, so losing this call to
// a redis outage only delays freshness by the TTL.
func invalidateRollupCache(estimateId, siteId int) {
	if err := config.RemoveRedisKey(estimateRollupKey(estimateId), siteRollupKey(siteId)); err != nil {
		config.LogError(config.GetLogger(), "rollup.go", "invalidateRollupCache", "remove keys", estimateId, err)
	}
}
