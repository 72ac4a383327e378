package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string // account permission level

const (
	RoleCustomer UserRole = "customer" // ordering customer
	RoleStaff    UserRole = "staff"    // barista / counter staff
	RoleAdmin    UserRole = "admin"    // shop administrator
)

type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Phone        string         `json:"phone"`                                           // digits only, e.g. 09171234567
	Role         UserRole       `gorm:"type:varchar(20);default:'customer'" json:"role"` // permission level
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Orders []Order `gorm:"foreignKey:UserID" json:"orders,omitempty"`
}

func (User) TableName() string {
	return "users"
}
