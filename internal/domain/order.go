package domain

import "time"

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Order represents a purchase created by consuming a hold.
type Order struct {
	ID          string
	HoldID      string
	ProductID   string
	Quantity    int
	Status      OrderStatus
	PaymentMeta map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
