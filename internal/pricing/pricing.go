package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
)

// LineQuote is the frozen price snapshot written onto a cart or order line.
// Once persisted it is a point-in-time financial record and is never
// recomputed from live discount state.
type LineQuote struct {
	UnitPrice      int64
	TotalPrice     int64
	DiscountID     *uuid.UUID
	DiscountAmount int64
	FinalPrice     int64
}

// InForce reports whether the discount reduces prices right now: its status
// must be active or expiring and now must fall inside its date window.
func InForce(d *models.Discount, now time.Time) bool {
	if d == nil {
		return false
	}
	return d.Status.InForce() && d.Window(now)
}

// ResolveLine computes the snapshot for qty units at unitPrice with the
// currently bound discount, if any. A discount that is not in force is
// ignored, not an error. The per-unit reduction is the gap between the unit
// price and the discount's override price, clamped at zero so an override
// above the menu price never inflates the line.
func ResolveLine(unitPrice int64, qty int, disc *models.Discount, now time.Time) LineQuote {
	quote := LineQuote{
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice * int64(qty),
	}
	if !InForce(disc, now) {
		quote.FinalPrice = quote.TotalPrice
		return quote
	}
	perUnit := unitPrice - disc.NewPrice
	if perUnit < 0 {
		perUnit = 0
	}
	id := disc.ID
	quote.DiscountID = &id
	quote.DiscountAmount = perUnit * int64(qty)
	quote.FinalPrice = quote.TotalPrice - quote.DiscountAmount
	if quote.FinalPrice < 0 {
		quote.FinalPrice = 0
	}
	return quote
}

// PercentageReduction returns percent% of amount in whole currency units,
// rounded half up. Used for voucher-style percentage reductions applied on
// top of an already-priced total.
func PercentageReduction(amount int64, percent decimal.Decimal) int64 {
	if amount <= 0 || percent.Sign() <= 0 {
		return 0
	}
	reduction := decimal.NewFromInt(amount).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	value := reduction.IntPart()
	if value > amount {
		return amount
	}
	return value
}

// SumEffective totals line snapshots, counting a line's final price when one
// was frozen and its gross total otherwise.
func SumEffective(quotes []LineQuote) int64 {
	var total int64
	for _, q := range quotes {
		total += q.FinalPrice
	}
	return total
}
