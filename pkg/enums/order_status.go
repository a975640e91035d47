package enums

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
)

// IsValid reports whether the status is one of the known lifecycle values.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusCanceled,
		OrderStatusRefunded, OrderStatusShipped, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// IsFulfilled reports whether the status counts as revenue-qualifying: the
// order left the warehouse or the sale closed.
func (s OrderStatus) IsFulfilled() bool {
	return s == OrderStatusShipped || s == OrderStatusCompleted
}
