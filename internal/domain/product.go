package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item with a fixed stock pool.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	TotalStock int
	CreatedAt  time.Time
}
