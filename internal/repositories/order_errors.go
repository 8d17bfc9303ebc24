package repositories

import "fmt"

// OrderErrorCode enumerates repository error causes for order operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order document is missing.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorCartEmpty indicates placement was attempted with no cart lines.
	OrderErrorCartEmpty OrderErrorCode = "order_cart_empty"
	// OrderErrorProductNotFound indicates a cart line references a missing product or variant.
	OrderErrorProductNotFound OrderErrorCode = "order_product_not_found"
	// OrderErrorShippingRegionMismatch indicates a product does not ship to the destination region.
	OrderErrorShippingRegionMismatch OrderErrorCode = "order_shipping_region_mismatch"
	// OrderErrorInsufficientStock indicates requested quantity exceeds availability.
	OrderErrorInsufficientStock OrderErrorCode = "order_insufficient_stock"
	// OrderErrorStatusConflict indicates the stored status diverged from the expected one.
	OrderErrorStatusConflict OrderErrorCode = "order_status_conflict"
)

// OrderError wraps order-specific failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
