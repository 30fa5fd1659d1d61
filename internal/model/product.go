package model

import (
	"time"

	"gorm.io/gorm"
)

// Product represents the product master data of one store
type Product struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	SKU         string         `json:"sku" gorm:"type:varchar(100);not null;uniqueIndex:idx_products_store_sku,where:deleted_at IS NULL"`
	Price       float64        `json:"price" gorm:"not null"`
	Stock       int            `json:"stock" gorm:"default:0"`
	StoreID     uint           `json:"store_id" gorm:"not null;uniqueIndex:idx_products_store_sku;index"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// GetStoreID implements scope.Record
func (p *Product) GetStoreID() uint { return p.StoreID }

// SetStoreID implements scope.Record
func (p *Product) SetStoreID(id uint) { p.StoreID = id }
