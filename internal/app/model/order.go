package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string    // order lifecycle state
type PaymentStatus string  // payment verification state
type PaymentMethod string  // how the customer pays
type DeliveryMethod string // how the order reaches the customer

const (
	OrderStatusReceived       OrderStatus = "RECEIVED"         // order placed
	OrderStatusPreparing      OrderStatus = "PREPARING"        // barista working on it
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY" // rider on the way
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP" // waiting at the counter
	OrderStatusDelivered      OrderStatus = "DELIVERED"        // handed over by rider
	OrderStatusCompleted      OrderStatus = "COMPLETED"        // terminal
	OrderStatusCancelled      OrderStatus = "CANCELLED"        // terminal

	PaymentStatusPending  PaymentStatus = "PENDING"  // awaiting staff verification
	PaymentStatusVerified PaymentStatus = "VERIFIED" // proof reconciled against total
	PaymentStatusRejected PaymentStatus = "REJECTED" // proof did not match

	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodInStore        PaymentMethod = "IN_STORE"
	PaymentMethodGCash          PaymentMethod = "GCASH"

	DeliveryMethodDelivery DeliveryMethod = "DELIVERY"
	DeliveryMethodPickup   DeliveryMethod = "PICKUP"
)

// allowedTransitions is the closed order-status graph. A status missing
// from the map is terminal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusReceived:       {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusOutForDelivery, OrderStatusReadyForPickup, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusReadyForPickup: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusDelivered:      {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransition reports whether the edge from -> to exists in the graph.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type Order struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                      // order ID
	ReferenceNo     string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"reference_no"` // customer-facing reference
	UserID          uint           `gorm:"not null;index" json:"user_id"`                             // ordering customer
	Status          OrderStatus    `gorm:"type:varchar(20);default:'RECEIVED';index" json:"status"`   // lifecycle state
	Total           int64          `gorm:"not null" json:"total"`                                     // amount due in centavos
	DeliveryMethod  DeliveryMethod `gorm:"type:varchar(20);default:'PICKUP'" json:"delivery_method"`  // delivery or pickup
	DeliveryAddress string         `gorm:"type:text" json:"delivery_address,omitempty"`               // required for delivery orders
	DeliveryFee     int64          `gorm:"default:0" json:"delivery_fee"`                             // centavos, waived on cancellation
	PaymentMethod   PaymentMethod  `gorm:"type:varchar(20);not null" json:"payment_method"`           // COD, in-store, or GCash
	PaymentProof    string         `gorm:"type:text" json:"payment_proof,omitempty"`                  // uploaded proof image URL
	PaymentStatus   PaymentStatus  `gorm:"type:varchar(20);default:'PENDING'" json:"payment_status"`  // verification state
	PointsUsed      int64          `gorm:"default:0" json:"points_used"`                              // loyalty points redeemed at checkout
	PointsEarned    int64          `gorm:"default:0" json:"points_earned"`                            // loyalty points accrued on completion
	ContactNumber   string         `gorm:"type:varchar(20)" json:"contact_number"`                    // customer phone for this order
	Version         int64          `gorm:"default:0" json:"-"`                                        // optimistic concurrency token
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	User          User                 `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrderItems    []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type ItemSize string
type ItemTemperature string

const (
	SizeSmall  ItemSize = "SMALL"
	SizeMedium ItemSize = "MEDIUM"
	SizeLarge  ItemSize = "LARGE"

	TemperatureHot  ItemTemperature = "HOT"
	TemperatureIced ItemTemperature = "ICED"
)

// OrderItem snapshots price and selections at checkout. The snapshot is
// never updated when the product changes later.
type OrderItem struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	Size        ItemSize        `gorm:"type:varchar(10)" json:"size,omitempty"`
	Temperature ItemTemperature `gorm:"type:varchar(10)" json:"temperature,omitempty"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       int64           `gorm:"not null" json:"price"`                   // unit price snapshot in centavos
	AddOns      []string        `gorm:"serializer:json" json:"addons,omitempty"` // selected add-on names
	CreatedAt   time.Time       `json:"created_at"`

	Order   Order   `gorm:"foreignKey:OrderID" json:"-"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusHistory is append-only. The unique (order_id, status) pair
// makes retried appends of the same transition a no-op.
type OrderStatusHistory struct {
	ID        uint        `gorm:"primarykey" json:"id"`
	OrderID   uint        `gorm:"not null;uniqueIndex:idx_order_status_once" json:"order_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null;uniqueIndex:idx_order_status_once" json:"status"`
	Actor     string      `gorm:"type:varchar(50)" json:"actor,omitempty"` // who triggered the transition
	CreatedAt time.Time   `json:"created_at"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
