package price

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"storefront/internal/domain/money"
	"storefront/internal/domain/product"
)

type Type string

const (
	TypeOneTime   Type = "one_time"
	TypeRecurring Type = "recurring"
)

type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

var ErrInvalidPrice = errors.New("invalid price")

// Price is an offer for a variant. UnitAmount is in minor currency units.
type Price struct {
	ID               string            `gorm:"primaryKey;size:255" json:"id"`
	ProductVariantID int64             `gorm:"not null;index" json:"product_variant_id"`
	Active           bool              `gorm:"not null" json:"active"`
	Description      *string           `gorm:"type:text" json:"description,omitempty"`
	UnitAmount       int64             `gorm:"not null;check:unit_amount >= 0" json:"unit_amount"`
	Currency         string            `gorm:"not null;check:length(currency) = 3" json:"currency"`
	Type             Type              `gorm:"size:16;not null" json:"type"`
	Interval         *Interval         `gorm:"size:16" json:"interval,omitempty"`
	IntervalCount    *int              `json:"interval_count,omitempty"`
	TrialPeriodDays  *int              `json:"trial_period_days,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"<-:create" json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`

	ProductVariant *product.Variant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Price) TableName() string { return "prices" }

// Validate checks the fields the schema cannot express on its own, plus the
// currency rule so callers get a readable error before a round-trip.
func (p *Price) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPrice)
	}
	if p.ProductVariantID == 0 {
		return fmt.Errorf("%w: product_variant_id is required", ErrInvalidPrice)
	}
	if err := money.ValidateCurrency(p.Currency); err != nil {
		return err
	}
	switch p.Type {
	case TypeOneTime:
		if p.Interval != nil {
			return fmt.Errorf("%w: one_time prices have no interval", ErrInvalidPrice)
		}
	case TypeRecurring:
		if p.Interval == nil {
			return fmt.Errorf("%w: recurring prices need an interval", ErrInvalidPrice)
		}
		switch *p.Interval {
		case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		default:
			return fmt.Errorf("%w: unknown interval %q", ErrInvalidPrice, *p.Interval)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPrice, p.Type)
	}
	return nil
}
