package enums

import "fmt"

// DiscountType distinguishes branch-wide price overrides from customer vouchers.
type DiscountType string

const (
	DiscountTypeBranch  DiscountType = "branch_discount"
	DiscountTypeVoucher DiscountType = "customer_voucher"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeBranch,
	DiscountTypeVoucher,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// RequiresCode reports whether discounts of this type carry a voucher code.
func (d DiscountType) RequiresCode() bool {
	return d == DiscountTypeVoucher
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
