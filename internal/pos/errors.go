package pos

import "fmt"

// ValidationError marks a malformed sale or stock request. Nothing is mutated
// when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// UnknownProductError is returned when a request references a product id that
// does not exist. It is treated as a validation failure.
type UnknownProductError struct {
	ProductID int64
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("unknown product %d", e.ProductID)
}

// InsufficientStockError aborts a deduction when the eligible lots cannot
// cover the requested quantity. The whole transaction rolls back, so the
// caller observes zero net change.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Shortfall is the number of units short of the requested quantity.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}
