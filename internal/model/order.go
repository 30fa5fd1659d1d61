package model

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

// Order represents a customer order placed against one store
type Order struct {
	ID            uint           `json:"id" gorm:"primarykey"`
	CustomerName  string         `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerEmail string         `json:"customer_email" gorm:"type:varchar(100);not null"`
	Status        string         `json:"status" gorm:"type:varchar(50);not null;default:'pending'"`
	Total         float64        `json:"total" gorm:"not null"`
	StoreID       uint           `json:"store_id" gorm:"index;not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// Items are loaded explicitly through the scoped accessor, never via
	// an implicit association query.
	Items []OrderItem `json:"items,omitempty" gorm:"-"`
}

// GetStoreID implements scope.Record
func (o *Order) GetStoreID() uint { return o.StoreID }

// SetStoreID implements scope.Record
func (o *Order) SetStoreID(id uint) { o.StoreID = id }

// OrderItem represents one line of an order. It carries its own store
// reference so the isolation predicate applies to item queries directly.
type OrderItem struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	OrderID   uint           `json:"order_id" gorm:"index;not null"`
	ProductID uint           `json:"product_id" gorm:"index;not null"`
	Quantity  int            `json:"quantity" gorm:"not null"`
	UnitPrice float64        `json:"unit_price" gorm:"not null"`
	StoreID   uint           `json:"store_id" gorm:"index;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// GetStoreID implements scope.Record
func (i *OrderItem) GetStoreID() uint { return i.StoreID }

// SetStoreID implements scope.Record
func (i *OrderItem) SetStoreID(id uint) { i.StoreID = id }
