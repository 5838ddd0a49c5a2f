package domain

import "time"

// ResultOrderNotFound is stored for payment events whose order did not exist yet.
const ResultOrderNotFound = "order_not_found"

// WebhookRecord is the append-only dedup entry for one payment event key.
type WebhookRecord struct {
	IdempotencyKey string
	OrderID        string
	ProcessedAt    time.Time
	PayloadHash    string
	ResultState    string
}

// ParsePaymentStatus accepts only the statuses a payment event may carry.
func ParsePaymentStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPaid, OrderStatusCancelled:
		return OrderStatus(s), nil
	default:
		return "", ErrInvalidPaymentStatus
	}
}
