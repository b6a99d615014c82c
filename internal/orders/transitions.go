package orders

import "github.com/angelmondragon/foodapp-backend/pkg/enums"

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:       {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:  {enums.OrderStatusReady},
	enums.OrderStatusReady:      {enums.OrderStatusDelivering},
	enums.OrderStatusDelivering: {enums.OrderStatusDelivered},
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the legal successors of from. Terminal states return nil.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := allowedTransitions[from]
	if len(next) == 0 {
		return nil
	}
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}
