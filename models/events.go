package models

import "time"

// OrderCreatedEvent is published after a successful checkout.
type OrderCreatedEvent struct {
	EventType   string    `json:"event_type"` // "order.created"
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	TotalAmount string    `json:"total_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent is published after every successful transition.
type OrderStatusChangedEvent struct {
	EventType  string      `json:"event_type"` // "order.status_changed"
	OrderID    string      `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	ChangedBy  string      `json:"changed_by"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PaymentEvent is the signal consumed from the payment events topic.
type PaymentEvent struct {
	Type      string    `json:"type"` // payment_succeeded | payment_failed
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}
