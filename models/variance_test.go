package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zawbuild/sitebooks_backend/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testItem(qty, price string) *models.LineItem {
	q := dec(qty)
	p := dec(price)
	return &models.LineItem{
		ID:                 1,
		EstimateId:         1,
		CategoryId:         1,
		Unit:               "m3",
		EstimatedQty:       q,
		EstimatedUnitPrice: p,
		EstimatedTotal:     q.Mul(p),
	}
}

func testEntry(id int, qty, price string) models.ActualEntry {
	q := dec(qty)
	p := dec(price)
	return models.ActualEntry{
		ID:              id,
		ItemId:          1,
		Sequence:        id,
		ActualQty:       q,
		ActualUnitPrice: p,
		ActualTotal:     q.Mul(p),
		RecordedAt:      time.Now().UTC(),
	}
}

func mustEqual(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: got %s, want %s", name, got.String(), want.String())
	}
}

// Worked scenario: 100 m3 estimated at 10.00, batch 1 buys 40 at 12.00,
// batch 2 buys 30 at 9.00.
func TestComputeItemVariance_Scenario(t *testing.T) {
	item := testItem("100", "10.00")
	entries := []models.ActualEntry{
		testEntry(1, "40", "12.00"),
		testEntry(2, "30", "9.00"),
	}

	result := models.ComputeItemVariance(item, entries)

	if !result.HasActuals {
		t.Fatal("expected HasActuals=true")
	}
	if len(result.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(result.Batches))
	}

	b1 := result.Batches[0]
	if b1.BatchNumber != 1 {
		t.Fatalf("batch 1 numbered %d", b1.BatchNumber)
	}
	mustEqual(t, "batch1 actual_total", b1.ActualTotal, dec("480.00"))
	mustEqual(t, "batch1 variance_amount", b1.VarianceAmount, dec("80.00"))
	mustEqual(t, "batch1 variance_pct", b1.VariancePercentage, dec("20"))

	b2 := result.Batches[1]
	mustEqual(t, "batch2 actual_total", b2.ActualTotal, dec("270.00"))
	mustEqual(t, "batch2 variance_amount", b2.VarianceAmount, dec("-30.00"))
	mustEqual(t, "batch2 variance_pct", b2.VariancePercentage, dec("-10"))

	mustEqual(t, "total_qty_purchased", result.TotalQtyPurchased, dec("70"))
	mustEqual(t, "total_actual", result.TotalActual, dec("750.00"))
	mustEqual(t, "cumulative_variance_amount", result.CumulativeVarianceAmount, dec("50.00"))
	mustEqual(t, "cumulative_variance_pct (2dp)", result.CumulativeVariancePct.Round(2), dec("7.14"))
	mustEqual(t, "remaining_qty", result.RemainingQty, dec("30"))
	mustEqual(t, "remaining_budget", result.RemainingBudget, dec("250.00"))
	mustEqual(t, "weighted_average_actual_price (4dp)", result.WeightedAverageActualPrice.Round(4), dec("10.7143"))
}

// Zero batches is the normal "not yet purchased" state, not an error.
func TestComputeItemVariance_NoBatches(t *testing.T) {
	item := testItem("100", "10.00")

	result := models.ComputeItemVariance(item, nil)

	if result.HasActuals {
		t.Fatal("expected HasActuals=false")
	}
	if len(result.Batches) != 0 {
		t.Fatalf("expected no batches, got %d", len(result.Batches))
	}
	mustEqual(t, "total_actual", result.TotalActual, decimal.Zero)
	mustEqual(t, "cumulative_variance_amount", result.CumulativeVarianceAmount, decimal.Zero)
	mustEqual(t, "cumulative_variance_pct", result.CumulativeVariancePct, decimal.Zero)
	mustEqual(t, "remaining_qty", result.RemainingQty, item.EstimatedQty)
	mustEqual(t, "remaining_budget", result.RemainingBudget, item.EstimatedTotal)
	mustEqual(t, "weighted_average_actual_price", result.WeightedAverageActualPrice, decimal.Zero)
}

// Cumulative variance must equal the sum of batch variances exactly.
func TestComputeItemVariance_CumulativeEqualsBatchSum(t *testing.T) {
	item := testItem("250", "37.55")
	entries := []models.ActualEntry{
		testEntry(1, "12.5", "40.10"),
		testEntry(2, "100", "37.55"),
		testEntry(3, "3.333", "12.00"),
		testEntry(4, "80", "41.99"),
		testEntry(5, "55.5", "36.00"),
	}

	result := models.ComputeItemVariance(item, entries)

	var batchSum decimal.Decimal
	for _, b := range result.Batches {
		batchSum = batchSum.Add(b.VarianceAmount)
	}
	mustEqual(t, "sum(batch variance) == cumulative variance", batchSum, result.CumulativeVarianceAmount)
}

// Purchases beyond the estimate clamp remaining quantity at zero while
// remaining budget goes negative.
func TestComputeItemVariance_OverPurchased(t *testing.T) {
	item := testItem("10", "5.00")
	entries := []models.ActualEntry{
		testEntry(1, "8", "5.00"),
		testEntry(2, "7", "6.00"),
	}

	result := models.ComputeItemVariance(item, entries)

	mustEqual(t, "remaining_qty", result.RemainingQty, decimal.Zero)
	mustEqual(t, "remaining_budget", result.RemainingBudget, dec("-32.00"))
	mustEqual(t, "total_qty_purchased", result.TotalQtyPurchased, dec("15"))
}

// An item estimated at unit price zero reports zero percentages rather
// than failing; the variance amounts still carry the signal.
func TestComputeItemVariance_ZeroEstimatedPrice(t *testing.T) {
	item := testItem("10", "0")
	entries := []models.ActualEntry{
		testEntry(1, "4", "3.00"),
	}

	result := models.ComputeItemVariance(item, entries)

	mustEqual(t, "batch variance_pct", result.Batches[0].VariancePercentage, decimal.Zero)
	mustEqual(t, "batch variance_amount", result.Batches[0].VarianceAmount, dec("12.00"))
	mustEqual(t, "cumulative_variance_pct", result.CumulativeVariancePct, decimal.Zero)
	mustEqual(t, "cumulative_variance_amount", result.CumulativeVarianceAmount, dec("12.00"))
}

func TestCalculateBatchVariance(t *testing.T) {
	item := testItem("100", "10.00")
	entry := testEntry(1, "40", "12.00")

	amount, pct := models.CalculateBatchVariance(item, &entry)
	mustEqual(t, "amount", amount, dec("80.00"))
	mustEqual(t, "pct", pct, dec("20"))
}
