package model

var (
	// KitchenStatuses are orders the kitchen still has to act on.
	KitchenStatuses = []Status{StatusOrdered, StatusPreparing, StatusReady}
	// DisplayStatuses are orders shown on the public status board.
	DisplayStatuses = []Status{StatusPreparing, StatusReady}
)

// Filter keeps orders whose status is one of statuses, preserving order.
// The result is never nil so it encodes as an empty JSON array.
func Filter(orders []Order, statuses ...Status) []Order {
	keep := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		keep[s] = struct{}{}
	}

	res := make([]Order, 0, len(orders))
	for _, o := range orders {
		if _, ok := keep[o.Status]; ok {
			res = append(res, o)
		}
	}
	return res
}
