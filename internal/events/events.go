// Package events publishes state changes for downstream consumers after commit.
package events

import (
	"context"
	"time"
)

type Type string

const (
	HoldCreated    Type = "hold.created"
	HoldExpired    Type = "hold.expired"
	OrderCreated   Type = "order.created"
	OrderPaid      Type = "order.paid"
	OrderCancelled Type = "order.cancelled"
)

// Event is the JSON body published for every state change.
type Event struct {
	Type       Type      `json:"type"`
	ProductID  string    `json:"product_id"`
	HoldID     string    `json:"hold_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Quantity   int       `json:"qty,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Delivery is best effort; the database stays the
// source of truth.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
