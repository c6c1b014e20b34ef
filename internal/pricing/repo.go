package pricing

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/db"
	"storefront/internal/domain/money"
	"storefront/internal/domain/price"
	"storefront/internal/policy"
	"storefront/internal/realtime"
)

type Repo struct {
	db     *gorm.DB
	pol    *policy.Policy
	notify realtime.Notifier
}

func NewRepo(gdb *gorm.DB, pol *policy.Policy, notify realtime.Notifier) *Repo {
	if notify == nil {
		notify = realtime.Nop
	}
	return &Repo{db: gdb, pol: pol, notify: notify}
}

// UpsertPrice inserts or replaces a price by id, the way the payment
// processor's price webhooks deliver them.
func (r *Repo) UpsertPrice(ctx context.Context, p policy.Principal, in price.Price) (price.Price, error) {
	if _, err := r.pol.Authorize(p, policy.TablePrices, policy.OpInsert); err != nil {
		return price.Price{}, err
	}
	if _, err := r.pol.Authorize(p, policy.TablePrices, policy.OpUpdate); err != nil {
		return price.Price{}, err
	}
	in.Currency = money.NormalizeCurrency(in.Currency)
	if err := in.Validate(); err != nil {
		return price.Price{}, err
	}

	var old *price.Price
	var out price.Price
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev price.Price
		err := tx.First(&prev, "id = ?", in.ID).Error
		switch {
		case err == nil:
			old = &prev
			in.CreatedAt = prev.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to upsert price: %w", db.Translate(err))
		}

		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"product_variant_id", "active", "description", "unit_amount", "currency",
				"type", "interval", "interval_count", "trial_period_days", "metadata", "updated_at",
			}),
		}).Create(&in).Error
		if err != nil {
			return fmt.Errorf("failed to upsert price: %w", db.Translate(err))
		}
		return tx.First(&out, "id = ?", in.ID).Error
	})
	if err != nil {
		return price.Price{}, err
	}

	ev := realtime.Event{Table: policy.TablePrices, Type: realtime.EventInsert, Record: out}
	if old != nil {
		ev.Type = realtime.EventUpdate
		ev.OldRecord = *old
	}
	r.notify.Notify(ctx, ev)
	return out, nil
}

type ListFilter struct {
	ProductVariantID int64
	ActiveOnly       bool
}

func (r *Repo) ListPrices(ctx context.Context, p policy.Principal, f ListFilter) ([]price.Price, error) {
	out := []price.Price{}
	scope, ok := r.pol.ReadScope(p, policy.TablePrices)
	if !ok {
		return out, nil
	}
	q := r.db.WithContext(ctx).Scopes(scope)
	if f.ProductVariantID > 0 {
		q = q.Where("product_variant_id = ?", f.ProductVariantID)
	}
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("product_variant_id ASC, unit_amount ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", db.Translate(err))
	}
	return out, nil
}

func (r *Repo) GetPrice(ctx context.Context, p policy.Principal, id string) (price.Price, error) {
	scope, ok := r.pol.ReadScope(p, policy.TablePrices)
	if !ok {
		return price.Price{}, fmt.Errorf("failed to get price: %w", db.ErrNotFound)
	}
	var out price.Price
	if err := r.db.WithContext(ctx).Scopes(scope).First(&out, "id = ?", id).Error; err != nil {
		return price.Price{}, fmt.Errorf("failed to get price: %w", db.Translate(err))
	}
	return out, nil
}

// DeactivatePrice keeps the row for historical orders but stops offering it.
func (r *Repo) DeactivatePrice(ctx context.Context, p policy.Principal, id string) (price.Price, error) {
	if _, err := r.pol.Authorize(p, policy.TablePrices, policy.OpUpdate); err != nil {
		return price.Price{}, err
	}
	var before, after price.Price
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to deactivate price: %w", db.Translate(err))
		}
		if err := tx.Model(&price.Price{}).Where("id = ?", id).Update("active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate price: %w", db.Translate(err))
		}
		return tx.First(&after, "id = ?", id).Error
	})
	if err != nil {
		return price.Price{}, err
	}
	r.notify.Notify(ctx, realtime.Event{Table: policy.TablePrices, Type: realtime.EventUpdate, Record: after, OldRecord: before})
	return after, nil
}

func (r *Repo) DeletePrice(ctx context.Context, p policy.Principal, id string) error {
	if _, err := r.pol.Authorize(p, policy.TablePrices, policy.OpDelete); err != nil {
		return err
	}
	var before price.Price
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete price: %w", db.Translate(err))
		}
		if err := tx.Delete(&price.Price{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete price: %w", db.Translate(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notify.Notify(ctx, realtime.Event{Table: policy.TablePrices, Type: realtime.EventDelete, OldRecord: before})
	return nil
}
