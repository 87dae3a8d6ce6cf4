package enums

import "fmt"

// AvailabilityStatus is the tri-state sell-ability flag on dishes and combos.
type AvailabilityStatus string

const (
	AvailabilityStatusAvailable    AvailabilityStatus = "available"
	AvailabilityStatusOutOfStock   AvailabilityStatus = "out_of_stock"
	AvailabilityStatusDiscontinued AvailabilityStatus = "discontinued"
)

var validAvailabilityStatuses = []AvailabilityStatus{
	AvailabilityStatusAvailable,
	AvailabilityStatusOutOfStock,
	AvailabilityStatusDiscontinued,
}

// String implements fmt.Stringer.
func (a AvailabilityStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AvailabilityStatus.
func (a AvailabilityStatus) IsValid() bool {
	for _, candidate := range validAvailabilityStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAvailabilityStatus converts raw input into an AvailabilityStatus.
func ParseAvailabilityStatus(value string) (AvailabilityStatus, error) {
	for _, candidate := range validAvailabilityStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid availability status %q", value)
}
