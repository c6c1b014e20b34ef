package order

import (
	"time"

	"gorm.io/datatypes"

	"storefront/internal/domain/product"
	"storefront/internal/domain/user"
)

type Order struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Status      Status    `gorm:"size:32;not null;index" json:"status"`
	TotalAmount int64     `gorm:"not null;check:total_amount >= 0" json:"total_amount"`
	Currency    string    `gorm:"not null;check:length(currency) = 3" json:"currency"`
	CreatedAt   time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	User      *user.User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StatusRef *StatusRecord `gorm:"foreignKey:Status;references:Name;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Order) TableName() string { return "orders" }

type Item struct {
	ID               int64  `gorm:"primaryKey" json:"id"`
	OrderID          string `gorm:"size:64;not null;index" json:"order_id"`
	ProductVariantID int64  `gorm:"not null;index" json:"product_variant_id"`
	Quantity         int    `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitAmount       int64  `gorm:"not null;check:unit_amount >= 0" json:"unit_amount"`
	Currency         string `gorm:"not null;check:length(currency) = 3" json:"currency"`

	Order          *Order           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProductVariant *product.Variant `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (Item) TableName() string { return "order_items" }

// Change is an append-only record of a status transition.
type Change struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	OrderID        string            `gorm:"size:64;not null;index" json:"order_id"`
	PreviousStatus *Status           `gorm:"size:32" json:"previous_status,omitempty"`
	Status         Status            `gorm:"size:32;not null" json:"status"`
	Changelog      datatypes.JSONMap `json:"changelog,omitempty"`
	CreatedAt      time.Time         `gorm:"<-:create" json:"created_at"`

	Order    *Order        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Previous *StatusRecord `gorm:"foreignKey:PreviousStatus;references:Name;constraint:OnDelete:RESTRICT" json:"-"`
	Current  *StatusRecord `gorm:"foreignKey:Status;references:Name;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Change) TableName() string { return "order_changes" }

// Detail is an order with its line items.
type Detail struct {
	Order
	Items []Item `json:"items"`
}
