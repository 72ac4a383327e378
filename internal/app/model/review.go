package model

import (
	"time"

	"gorm.io/gorm"
)

// Review is tied to exactly one completed order and one of its products.
// A freshly submitted review has both Approved and Rejected false; a
// moderation decision sets exactly one of them and is final.
type Review struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	OrderID         uint           `gorm:"not null;uniqueIndex:idx_review_order_product" json:"order_id"`
	ProductID       uint           `gorm:"not null;uniqueIndex:idx_review_order_product" json:"product_id"`
	Rating          int            `gorm:"not null" json:"rating"` // 1-5
	Comment         string         `gorm:"type:text" json:"comment"`
	Approved        bool           `gorm:"default:false;index" json:"approved"`
	Rejected        bool           `gorm:"default:false" json:"rejected"`
	RejectionReason string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Order   Order   `gorm:"foreignKey:OrderID" json:"-"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}

// Moderated reports whether a decision has already been recorded.
func (r *Review) Moderated() bool {
	return r.Approved || r.Rejected
}
