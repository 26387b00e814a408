package models

// OrderStatus is the closed set of states an order moves through.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

// AllStatuses lists every valid status, in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
}

// allowedTransitions is the full transition table. Terminal states map to an
// empty target set.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusRefunded, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusRefunded},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0 && s.Valid()
}

// CanTransitionTo reports whether the transition s -> target is allowed.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ReleasesInventory reports whether entering s hands the order's committed
// stock back to the inventory ledger.
func (s OrderStatus) ReleasesInventory() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// StatusDisplay carries the UI metadata the admin surface renders for a
// status badge.
type StatusDisplay struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Display returns the badge metadata for s. Every status has an entry; an
// unknown value falls back to a gray badge with the raw string.
func (s OrderStatus) Display() StatusDisplay {
	switch s {
	case StatusPending:
		return StatusDisplay{Label: "Pending", Color: "orange"}
	case StatusPaid:
		return StatusDisplay{Label: "Paid", Color: "blue"}
	case StatusShipped:
		return StatusDisplay{Label: "Shipped", Color: "purple"}
	case StatusDelivered:
		return StatusDisplay{Label: "Delivered", Color: "green"}
	case StatusCancelled:
		return StatusDisplay{Label: "Cancelled", Color: "red"}
	case StatusRefunded:
		return StatusDisplay{Label: "Refunded", Color: "gray"}
	default:
		return StatusDisplay{Label: string(s), Color: "gray"}
	}
}
