package pricedrop

import (
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/pkg/utils"
)

var hundred = decimal.NewFromInt(100)

// IsQualifyingDrop reports whether current is strictly below the snapshot
func IsQualifyingDrop(snapshot, current decimal.Decimal) bool {
	return current.LessThan(snapshot)
}

// DiscountPercent is the drop relative to the snapshot as a whole percent,
// rounded half away from zero. A non-positive snapshot yields 0.
func DiscountPercent(snapshot, current decimal.Decimal) int64 {
	if !snapshot.IsPositive() {
		return 0
	}
	return snapshot.Sub(current).Div(snapshot).Mul(hundred).Round(0).IntPart()
}

// owed decides whether a drop deserves a new notification given the lowest
// price the user was already told about (nil when never notified)
func owed(snapshot, current decimal.Decimal, lastNotified *decimal.Decimal) bool {
	if !IsQualifyingDrop(snapshot, current) {
		return false
	}
	return lastNotified == nil || current.LessThan(*lastNotified)
}

// Message renders the user-facing text for one drop
func Message(f *utils.CurrencyFormatter, name string, snapshot, current decimal.Decimal) string {
	return fmt.Sprintf("Your favorite '%s' is now %d%% off! Old price: %s, new price: %s",
		name, DiscountPercent(snapshot, current), f.Format(snapshot), f.Format(current))
}
