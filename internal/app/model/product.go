package model

import (
	"time"

	"gorm.io/gorm"
)

type CategoryType string // menu section

const (
	CategoryCoffee CategoryType = "coffee"
	CategoryTea    CategoryType = "tea"
	CategoryPastry CategoryType = "pastry"
	CategoryMeal   CategoryType = "meal"
)

type Product struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Name          string         `gorm:"not null;index" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Category      CategoryType   `gorm:"type:varchar(20);not null;index" json:"category"`
	BasePrice     int64          `gorm:"not null" json:"base_price"` // centavos, before size/add-on upcharges
	ImageURL      string         `gorm:"type:text" json:"image_url,omitempty"`
	StockQuantity int            `gorm:"not null;default:0" json:"stock_quantity"`
	Available     bool           `gorm:"default:true" json:"available"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	AddOns []ProductAddOn `gorm:"foreignKey:ProductID" json:"add_ons,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// ProductAddOn is a selectable extra (espresso shot, oat milk, pearls).
type ProductAddOn struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Name      string    `gorm:"not null" json:"name"`
	Price     int64     `gorm:"not null;default:0" json:"price"` // upcharge in centavos
	CreatedAt time.Time `json:"created_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"-"`
}

func (ProductAddOn) TableName() string {
	return "product_add_ons"
}
