package model

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

// Values are persisted verbatim; clients filter on them.
const (
	NotificationTypeOrderStatus         NotificationType = "ORDER_STATUS"
	NotificationTypePointsExpiring      NotificationType = "POINTS_EXPIRING"
	NotificationTypePromotion           NotificationType = "PROMOTION"
	NotificationTypeReviewStatus        NotificationType = "REVIEW_STATUS"
	NotificationTypeNewOrder            NotificationType = "NEW_ORDER"
	NotificationTypeLowStock            NotificationType = "LOW_STOCK"
	NotificationTypeCustomerFeedback    NotificationType = "CUSTOMER_FEEDBACK"
	NotificationTypeNewReview           NotificationType = "NEW_REVIEW"
	NotificationTypeLoyaltyPoints       NotificationType = "LOYALTY_POINTS"
	NotificationTypePaymentVerification NotificationType = "PAYMENT_VERIFICATION"
)

// Notification is a fire-and-forget record. The engine writes rows and
// pushes them to connected clients; delivery beyond that is external.
type Notification struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(30);not null;index" json:"type"`
	Title     string           `gorm:"type:text;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Link      string           `gorm:"type:text" json:"link,omitempty"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
