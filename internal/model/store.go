package model

import (
	"time"

	"gorm.io/gorm"
)

// Membership roles within a store
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Store represents the isolation boundary of the system. Every scoped
// record carries a reference to exactly one store.
type Store struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Slug        string         `json:"slug" gorm:"type:varchar(100);uniqueIndex:idx_stores_slug,where:deleted_at IS NULL;not null"`
	Description string         `json:"description" gorm:"type:text"`
	OwnerID     uint           `json:"owner_id" gorm:"index;not null"`
	Active      bool           `json:"active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// StoreMember represents the association between users and stores. Ownership
// always grants access; membership rows grant access to staff.
type StoreMember struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index;not null"`
	StoreID   uint           `json:"store_id" gorm:"index;not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User  User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Store Store `json:"store,omitempty" gorm:"foreignKey:StoreID"`
}
