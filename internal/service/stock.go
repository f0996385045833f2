package service

import (
	"storefront/internal/apperr"
	"storefront/internal/models"
)

// CheckStock accepts the line when the snapshot holds at least the requested
// quantity. The check is point-in-time: nothing stops a concurrent order from
// consuming the same stock after it passes, which is why OrderWriter can
// follow it with a conditional decrement.
func CheckStock(line models.CartLine, snapshot models.ProductSnapshot) error {
	if snapshot.Stock < line.Quantity {
		return apperr.StockConflict(line.ProductID, line.Quantity, snapshot.Stock)
	}
	return nil
}
