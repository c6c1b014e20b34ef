package product

import (
	"time"

	"gorm.io/datatypes"
)

type Size struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Category string `gorm:"size:64" json:"category,omitempty"`
	System   string `gorm:"size:16" json:"system,omitempty"`
}

func (Size) TableName() string { return "sizes" }

type Color struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:64;not null;uniqueIndex" json:"name"`
	HexCode string `gorm:"size:7" json:"hex_code,omitempty"`
}

func (Color) TableName() string { return "colors" }

type Product struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	Active      bool              `gorm:"not null" json:"active"`
	Name        string            `gorm:"size:255;not null" json:"name"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	Image       string            `gorm:"size:1024" json:"image,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"<-:create" json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// Variant is a purchasable product x size x color unit. The schema allows at
// most one row per triple and never a negative quantity.
type Variant struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_product_variants_combo,priority:1" json:"product_id"`
	SizeID    int64     `gorm:"not null;uniqueIndex:idx_product_variants_combo,priority:2" json:"size_id"`
	ColorID   int64     `gorm:"not null;uniqueIndex:idx_product_variants_combo,priority:3;index" json:"color_id"`
	Quantity  int       `gorm:"not null;check:quantity >= 0" json:"quantity"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product *Product `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Size    *Size    `gorm:"constraint:OnDelete:RESTRICT" json:"size,omitempty"`
	Color   *Color   `gorm:"constraint:OnDelete:RESTRICT" json:"color,omitempty"`
}

func (Variant) TableName() string { return "product_variants" }

// Change is an append-only audit entry for a product and/or variant mutation.
type Change struct {
	ID               int64             `gorm:"primaryKey" json:"id"`
	ProductID        *int64            `gorm:"index" json:"product_id,omitempty"`
	ProductVariantID *int64            `gorm:"index" json:"product_variant_id,omitempty"`
	Changelog        datatypes.JSONMap `json:"changelog"`
	CreatedAt        time.Time         `gorm:"<-:create" json:"created_at"`

	Product        *Product `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ProductVariant *Variant `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

func (Change) TableName() string { return "product_changes" }

// Detail is a product with its variants, as served on product pages.
type Detail struct {
	Product
	Variants []Variant `json:"variants"`
}
