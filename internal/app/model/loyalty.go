package model

import (
	"time"
)

type PointsAction string // ledger entry kind

const (
	PointsActionEarned   PointsAction = "EARNED"   // accrued from a completed order
	PointsActionRedeemed PointsAction = "REDEEMED" // spent at checkout
	PointsActionExpired  PointsAction = "EXPIRED"  // lapsed unconsumed accrual
	PointsActionRefunded PointsAction = "REFUNDED" // reversal of a redemption
)

// LoyaltyPoints holds the current balance, one row per user. The balance
// is mutated only by the loyalty service, inside the same transaction
// that appends the matching PointsHistory entry.
type LoyaltyPoints struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"` // points, never negative
	Version   int64     `gorm:"default:0" json:"-"`                // optimistic concurrency token
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (LoyaltyPoints) TableName() string {
	return "loyalty_points"
}

// PointsHistory is the append-only ledger. Rows are never updated or
// deleted; reversals are new compensating entries. The unique
// (order_id, action) pair guards retried earn/redeem/refund calls.
// EXPIRED entries reference the earning order but sit outside the
// guard: one accrual can lapse in slices across sweeps when a refund
// re-exposes points. The sweep stays idempotent by reconstructing
// consumption from the ledger instead.
type PointsHistory struct {
	ID        uint         `gorm:"primarykey" json:"id"`
	UserID    uint         `gorm:"not null;index" json:"user_id"`
	Action    PointsAction `gorm:"type:varchar(10);not null;uniqueIndex:idx_points_order_action,where:action <> 'EXPIRED'" json:"action"`
	Points    int64        `gorm:"not null" json:"points"` // magnitude, always positive
	OrderID   *uint        `gorm:"uniqueIndex:idx_points_order_action" json:"order_id,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"` // set on EARNED entries only
	CreatedAt time.Time    `json:"created_at"`

	User  User   `gorm:"foreignKey:UserID" json:"-"`
	Order *Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (PointsHistory) TableName() string {
	return "points_history"
}
