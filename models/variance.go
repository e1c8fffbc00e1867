package models

import (
	"github.com/shopspring/decimal"
)

// Variance calculator: pure functions over a line item snapshot and its
// ordered actual entries. No I/O, no state.

var oneHundred = decimal.NewFromInt(100)

type BatchVariance struct {
	EntryId            int             `json:"entry_id"`
	BatchNumber        int             `json:"batch_number"`
	ActualQty          decimal.Decimal `json:"actual_qty"`
	ActualUnitPrice    decimal.Decimal `json:"actual_unit_price"`
	ActualTotal        decimal.Decimal `json:"actual_total"`
	VarianceAmount     decimal.Decimal `json:"variance_amount"`
	VariancePercentage decimal.Decimal `json:"variance_percentage"`
}

type ItemVariance struct {
	ItemId             int             `json:"item_id"`
	EstimatedQty       decimal.Decimal `json:"estimated_qty"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price"`
	EstimatedTotal     decimal.Decimal `json:"estimated_total"`

	HasActuals bool            `json:"has_actuals"`
	Batches    []BatchVariance `json:"batches"`

	TotalQtyPurchased          decimal.Decimal `json:"total_qty_purchased"`
	TotalActual                decimal.Decimal `json:"total_actual"`
	CumulativeVarianceAmount   decimal.Decimal `json:"cumulative_variance_amount"`
	CumulativeVariancePct      decimal.Decimal `json:"cumulative_variance_pct"`
	RemainingQty               decimal.Decimal `json:"remaining_qty"`
	RemainingBudget            decimal.Decimal `json:"remaining_budget"`
	WeightedAverageActualPrice decimal.Decimal `json:"weighted_average_actual_price"`
}

// CalculateBatchVariance derives one batch's variance against the
// item's estimated unit price. An item estimated at price zero reports
// zero percentage rather than an error; the amount still carries the
// full signal.
func CalculateBatchVariance(item *LineItem, entry *ActualEntry) (amount, percentage decimal.Decimal) {
	priceDelta := entry.ActualUnitPrice.Sub(item.EstimatedUnitPrice)
	amount = priceDelta.Mul(entry.ActualQty)
	if item.EstimatedUnitPrice.IsPositive() {
		percentage = priceDelta.Div(item.EstimatedUnitPrice).Mul(oneHundred)
	}
	return amount, percentage
}

// ComputeItemVariance folds the item's entries (already in sequence
// order) into per-batch and cumulative figures. Zero entries is the
// normal "not yet purchased" state: cumulative figures are zero,
// remaining figures equal the estimate.
func ComputeItemVariance(item *LineItem, entries []ActualEntry) *ItemVariance {
	result := ItemVariance{
		ItemId:             item.ID,
		EstimatedQty:       item.EstimatedQty,
		EstimatedUnitPrice: item.EstimatedUnitPrice,
		EstimatedTotal:     item.EstimatedTotal,
		Batches:            make([]BatchVariance, 0, len(entries)),
	}

	var totalQty, totalActual decimal.Decimal
	for i := range entries {
		entry := &entries[i]
		amount, percentage := CalculateBatchVariance(item, entry)
		result.Batches = append(result.Batches, BatchVariance{
			EntryId:            entry.ID,
			BatchNumber:        i + 1,
			ActualQty:          entry.ActualQty,
			ActualUnitPrice:    entry.ActualUnitPrice,
			ActualTotal:        entry.ActualTotal,
			VarianceAmount:     amount,
			VariancePercentage: percentage,
		})
		totalQty = totalQty.Add(entry.ActualQty)
		totalActual = totalActual.Add(entry.ActualTotal)
	}

	result.HasActuals = len(entries) > 0
	result.TotalQtyPurchased = totalQty
	result.TotalActual = totalActual

	estimatedCost := item.EstimatedUnitPrice.Mul(totalQty)
	result.CumulativeVarianceAmount = totalActual.Sub(estimatedCost)
	if item.EstimatedUnitPrice.IsPositive() && totalQty.IsPositive() {
		result.CumulativeVariancePct = result.CumulativeVarianceAmount.Div(estimatedCost).Mul(oneHundred)
	}

	remaining := item.EstimatedQty.Sub(totalQty)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	result.RemainingQty = remaining
	result.RemainingBudget = item.EstimatedTotal.Sub(totalActual)

	if totalQty.IsPositive() {
		result.WeightedAverageActualPrice = totalActual.Div(totalQty)
	}

	return &result
}
