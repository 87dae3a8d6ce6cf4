package discounts

import (
	"time"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// ExpiringWindow is how close to its end date a discount is flagged as
// expiring. The flag is advisory: an expiring discount still reduces prices.
const ExpiringWindow = 24 * time.Hour

// DeriveStatus computes the lifecycle status a discount should hold at the
// given instant. Replaced is absorbing: once a discount has been displaced by
// a successor it never re-enters the clock-driven states, regardless of its
// date window.
func DeriveStatus(d models.Discount, now time.Time) enums.DiscountStatus {
	if d.Status.Terminal() {
		return d.Status
	}
	if now.Before(d.StartDate) {
		return enums.DiscountStatusScheduled
	}
	if !now.Before(d.EndDate) {
		return enums.DiscountStatusExpired
	}
	if d.EndDate.Sub(now) < ExpiringWindow {
		return enums.DiscountStatusExpiring
	}
	return enums.DiscountStatusActive
}
