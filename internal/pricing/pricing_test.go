package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

func activeDiscount(newPrice int64, now time.Time) *models.Discount {
	return &models.Discount{
		ID:        uuid.New(),
		NewPrice:  newPrice,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		Status:    enums.DiscountStatusActive,
	}
}

func TestResolveLine_DiscountApplied(t *testing.T) {
	now := time.Now()
	disc := activeDiscount(80000, now)

	quote := ResolveLine(100000, 2, disc, now)

	if quote.TotalPrice != 200000 {
		t.Fatalf("expected total 200000, got %d", quote.TotalPrice)
	}
	if quote.DiscountAmount != 40000 {
		t.Fatalf("expected discount amount 40000, got %d", quote.DiscountAmount)
	}
	if quote.FinalPrice != 160000 {
		t.Fatalf("expected final 160000, got %d", quote.FinalPrice)
	}
	if quote.DiscountID == nil || *quote.DiscountID != disc.ID {
		t.Fatalf("expected discount id %s on quote", disc.ID)
	}
}

func TestResolveLine_NoDiscount(t *testing.T) {
	quote := ResolveLine(50000, 3, nil, time.Now())
	if quote.FinalPrice != 150000 {
		t.Fatalf("expected final 150000, got %d", quote.FinalPrice)
	}
	if quote.DiscountID != nil || quote.DiscountAmount != 0 {
		t.Fatal("expected no discount on quote")
	}
}

func TestResolveLine_ExpiringStillReduces(t *testing.T) {
	now := time.Now()
	disc := activeDiscount(90000, now)
	disc.Status = enums.DiscountStatusExpiring

	quote := ResolveLine(100000, 1, disc, now)
	if quote.DiscountAmount != 10000 {
		t.Fatalf("expected expiring discount to reduce by 10000, got %d", quote.DiscountAmount)
	}
}

func TestResolveLine_TerminalStatusesIgnored(t *testing.T) {
	now := time.Now()
	for _, status := range []enums.DiscountStatus{
		enums.DiscountStatusScheduled,
		enums.DiscountStatusExpired,
		enums.DiscountStatusReplaced,
	} {
		disc := activeDiscount(80000, now)
		disc.Status = status
		quote := ResolveLine(100000, 1, disc, now)
		if quote.DiscountAmount != 0 || quote.DiscountID != nil {
			t.Fatalf("status %s should not reduce the line", status)
		}
	}
}

func TestResolveLine_WindowClosedIgnored(t *testing.T) {
	now := time.Now()
	disc := activeDiscount(80000, now)
	disc.EndDate = now.Add(-time.Minute)

	quote := ResolveLine(100000, 1, disc, now)
	if quote.DiscountAmount != 0 {
		t.Fatal("discount outside its window should not reduce the line")
	}
}

func TestResolveLine_OverrideAboveUnitPriceClampsToZero(t *testing.T) {
	now := time.Now()
	disc := activeDiscount(120000, now)

	quote := ResolveLine(100000, 2, disc, now)
	if quote.DiscountAmount != 0 {
		t.Fatalf("expected zero reduction, got %d", quote.DiscountAmount)
	}
	if quote.FinalPrice != quote.TotalPrice {
		t.Fatal("final price must equal total when the override is above the unit price")
	}
	if quote.DiscountID == nil {
		t.Fatal("binding should still be recorded even when clamped")
	}
}

func TestPercentageReduction(t *testing.T) {
	cases := []struct {
		amount  int64
		percent string
		want    int64
	}{
		{200000, "10", 20000},
		{99999, "10", 10000},
		{100000, "0", 0},
		{100000, "150", 100000},
		{0, "50", 0},
	}
	for _, tc := range cases {
		percent, err := decimal.NewFromString(tc.percent)
		if err != nil {
			t.Fatalf("parse percent %q: %v", tc.percent, err)
		}
		got := PercentageReduction(tc.amount, percent)
		if got != tc.want {
			t.Fatalf("PercentageReduction(%d, %s) = %d, want %d", tc.amount, tc.percent, got, tc.want)
		}
	}
}

func TestSumEffective(t *testing.T) {
	quotes := []LineQuote{
		{TotalPrice: 100000, FinalPrice: 80000},
		{TotalPrice: 50000, FinalPrice: 50000},
	}
	if got := SumEffective(quotes); got != 130000 {
		t.Fatalf("expected 130000, got %d", got)
	}
}
