package enums

import "fmt"

// DiscountStatus tracks where a discount sits in its time-boxed lifecycle.
type DiscountStatus string

const (
	DiscountStatusScheduled DiscountStatus = "scheduled"
	DiscountStatusActive    DiscountStatus = "active"
	DiscountStatusExpiring  DiscountStatus = "expiring"
	DiscountStatusExpired   DiscountStatus = "expired"
	DiscountStatusReplaced  DiscountStatus = "replaced"
)

var validDiscountStatuses = []DiscountStatus{
	DiscountStatusScheduled,
	DiscountStatusActive,
	DiscountStatusExpiring,
	DiscountStatusExpired,
	DiscountStatusReplaced,
}

// String implements fmt.Stringer.
func (d DiscountStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountStatus.
func (d DiscountStatus) IsValid() bool {
	for _, candidate := range validDiscountStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// InForce reports whether a discount in this status still overrides prices.
// Expiring is an advisory sub-state of active, not a different enforcement.
func (d DiscountStatus) InForce() bool {
	return d == DiscountStatusActive || d == DiscountStatusExpiring
}

// Terminal reports whether the lifecycle engine may still move the discount.
func (d DiscountStatus) Terminal() bool {
	return d == DiscountStatusReplaced
}

// ParseDiscountStatus converts raw input into a DiscountStatus.
func ParseDiscountStatus(value string) (DiscountStatus, error) {
	for _, candidate := range validDiscountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount status %q", value)
}
