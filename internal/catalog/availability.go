package catalog

import (
	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// DeriveComboAvailability folds member dish statuses into the combo's status.
// Any discontinued member discontinues the combo; otherwise any member that
// is not available puts the combo out of stock. A combo with no members is
// not sellable.
func DeriveComboAvailability(members []enums.AvailabilityStatus) enums.AvailabilityStatus {
	if len(members) == 0 {
		return enums.AvailabilityStatusOutOfStock
	}
	allAvailable := true
	for _, status := range members {
		if status == enums.AvailabilityStatusDiscontinued {
			return enums.AvailabilityStatusDiscontinued
		}
		if status != enums.AvailabilityStatusAvailable {
			allAvailable = false
		}
	}
	if allAvailable {
		return enums.AvailabilityStatusAvailable
	}
	return enums.AvailabilityStatusOutOfStock
}
