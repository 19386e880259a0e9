package order

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrderID = errors.New("order with this ID already exists")
	ErrInvalidOrder     = errors.New("invalid order")

	ErrForbidden      = errors.New("not authorized to perform this action")
	ErrInvalidAction  = errors.New("invalid action")
	ErrEmptyOrderIDs  = errors.New("orderIds must be a non-empty array")
	ErrTooManyOrders  = errors.New("too many orders in one request")
	ErrInvalidPayload = errors.New("invalid data")
)

// Per-item failure messages, returned to clients verbatim.
const (
	msgOrderNotFound      = "Order not found"
	msgNotAuthorized      = "Not authorized to edit this order"
	msgUpdateDataRequired = "Update data is required"
)
