package domain

import "time"

type HoldStatus string

const (
	HoldStatusActive  HoldStatus = "active"
	HoldStatusUsed    HoldStatus = "used"
	HoldStatusExpired HoldStatus = "expired"
)

// Hold represents reserved stock for a limited time.
// Status only moves forward: active -> used or active -> expired.
type Hold struct {
	ID        string
	ProductID string
	Quantity  int
	Status    HoldStatus
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the hold's TTL has elapsed at now.
func (h Hold) IsExpired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
