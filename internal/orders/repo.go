package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront/internal/db"
	"storefront/internal/domain/money"
	"storefront/internal/domain/order"
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

type CreateOrderInput struct {
	ID       string
	UserID   string
	Status   order.Status
	Currency string
	// Total defaults to the sum of the line items.
	Total     *int64
	Items     []ItemInput
	Changelog datatypes.JSONMap
}

type ItemInput struct {
	ProductVariantID int64
	Quantity         int
	UnitAmount       int64
	Currency         string
}

type check struct {
	t  policy.Table
	op policy.Op
}

func (r *Repo) authorizeAll(p policy.Principal, checks ...check) error {
	for _, c := range checks {
		if _, err := r.pol.Authorize(p, c.t, c.op); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrder records an order, its items and the initial order_changes
// row in one transaction.
func (r *Repo) CreateOrder(ctx context.Context, p policy.Principal, in CreateOrderInput) (order.Detail, error) {
	err := r.authorizeAll(p,
		check{policy.TableOrders, policy.OpInsert},
		check{policy.TableOrderItems, policy.OpInsert},
		check{policy.TableOrderChanges, policy.OpInsert},
	)
	if err != nil {
		return order.Detail{}, err
	}

	status := in.Status
	if status == "" {
		status = order.StatusPendingPayment
	}
	if !status.Valid() {
		return order.Detail{}, fmt.Errorf("%w: %q", order.ErrUnknownStatus, status)
	}
	currency := money.NormalizeCurrency(in.Currency)
	if err := money.ValidateCurrency(currency); err != nil {
		return order.Detail{}, err
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	d := order.Detail{Order: order.Order{ID: id, UserID: in.UserID, Status: status, Currency: currency}}
	var sum int64
	for _, it := range in.Items {
		c := currency
		if it.Currency != "" {
			c = money.NormalizeCurrency(it.Currency)
			if err := money.ValidateCurrency(c); err != nil {
				return order.Detail{}, err
			}
		}
		d.Items = append(d.Items, order.Item{
			OrderID:          id,
			ProductVariantID: it.ProductVariantID,
			Quantity:         it.Quantity,
			UnitAmount:       it.UnitAmount,
			Currency:         c,
		})
		sum += int64(it.Quantity) * it.UnitAmount
	}
	d.TotalAmount = sum
	if in.Total != nil {
		d.TotalAmount = *in.Total
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&d.Order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", db.Translate(err))
		}
		for i := range d.Items {
			if err := tx.Create(&d.Items[i]).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", db.Translate(err))
			}
		}
		log := datatypes.JSONMap{}
		for k, v := range in.Changelog {
			log[k] = v
		}
		log["event"] = "created"
		log["total_amount"] = d.TotalAmount
		return appendChange(tx, id, nil, status, log)
	})
	if err != nil {
		return order.Detail{}, err
	}
	if d.Items == nil {
		d.Items = []order.Item{}
	}

	r.notify.Notify(ctx, realtime.Event{
		Table: policy.TableOrders, Type: realtime.EventInsert, Record: d.Order, OwnerID: d.UserID,
	})
	return d, nil
}

// UpdateStatus moves an order along the status machine and logs the move.
// The update is conditional on the status read, so two racing writers
// cannot both apply a transition from the same state.
func (r *Repo) UpdateStatus(ctx context.Context, p policy.Principal, id string, to order.Status, changelog datatypes.JSONMap) (order.Order, error) {
	err := r.authorizeAll(p,
		check{policy.TableOrders, policy.OpUpdate},
		check{policy.TableOrderChanges, policy.OpInsert},
	)
	if err != nil {
		return order.Order{}, err
	}

	var before, after order.Order
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", db.Translate(err))
		}
		if err := order.CheckTransition(before.Status, to); err != nil {
			return err
		}
		res := tx.Model(&order.Order{}).
			Where("id = ? AND status = ?", id, before.Status).
			Updates(map[string]any{"status": to})
		if res.Error != nil {
			return fmt.Errorf("failed to update order status: %w", db.Translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return order.ErrConcurrentUpdate
		}
		if changelog == nil {
			changelog = datatypes.JSONMap{}
		}
		prev := before.Status
		if err := appendChange(tx, id, &prev, to, changelog); err != nil {
			return err
		}
		return tx.First(&after, "id = ?", id).Error
	})
	if err != nil {
		return order.Order{}, err
	}

	r.notify.Notify(ctx, realtime.Event{
		Table: policy.TableOrders, Type: realtime.EventUpdate, Record: after, OldRecord: before, OwnerID: after.UserID,
	})
	return after, nil
}

func appendChange(tx *gorm.DB, orderID string, prev *order.Status, status order.Status, changelog datatypes.JSONMap) error {
	c := order.Change{OrderID: orderID, PreviousStatus: prev, Status: status, Changelog: changelog}
	if err := tx.Create(&c).Error; err != nil {
		return fmt.Errorf("failed to append order change: %w", db.Translate(err))
	}
	return nil
}

// ListOrders returns the orders p may see, newest first. Others' orders are
// simply absent.
func (r *Repo) ListOrders(ctx context.Context, p policy.Principal) ([]order.Order, error) {
	out := []order.Order{}
	scope, ok := r.pol.ReadScope(p, policy.TableOrders)
	if !ok {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Scopes(scope).Order("created_at DESC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", db.Translate(err))
	}
	return out, nil
}

func (r *Repo) GetOrder(ctx context.Context, p policy.Principal, id string) (order.Detail, error) {
	scope, ok := r.pol.ReadScope(p, policy.TableOrders)
	if !ok {
		return order.Detail{}, fmt.Errorf("failed to get order: %w", db.ErrNotFound)
	}
	var d order.Detail
	if err := r.db.WithContext(ctx).Scopes(scope).First(&d.Order, "id = ?", id).Error; err != nil {
		return order.Detail{}, fmt.Errorf("failed to get order: %w", db.Translate(err))
	}
	items, err := r.ListOrderItems(ctx, p, id)
	if err != nil {
		return order.Detail{}, err
	}
	d.Items = items
	return d, nil
}

// ListOrderItems filters by order when orderID is set. Items of orders p
// does not own are never returned.
func (r *Repo) ListOrderItems(ctx context.Context, p policy.Principal, orderID string) ([]order.Item, error) {
	out := []order.Item{}
	scope, ok := r.pol.ReadScope(p, policy.TableOrderItems)
	if !ok {
		return out, nil
	}
	q := r.db.WithContext(ctx).Scopes(scope)
	if orderID != "" {
		q = q.Where("order_id = ?", orderID)
	}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", db.Translate(err))
	}
	return out, nil
}

func (r *Repo) ListOrderChanges(ctx context.Context, p policy.Principal, orderID string) ([]order.Change, error) {
	out := []order.Change{}
	scope, ok := r.pol.ReadScope(p, policy.TableOrderChanges)
	if !ok {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Scopes(scope).Where("order_id = ?", orderID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list order changes: %w", db.Translate(err))
	}
	return out, nil
}

// DeleteOrder removes an order; items and change log rows cascade.
func (r *Repo) DeleteOrder(ctx context.Context, p policy.Principal, id string) error {
	if _, err := r.pol.Authorize(p, policy.TableOrders, policy.OpDelete); err != nil {
		return err
	}
	var before order.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", db.Translate(err))
		}
		if err := tx.Delete(&order.Order{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", db.Translate(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notify.Notify(ctx, realtime.Event{
		Table: policy.TableOrders, Type: realtime.EventDelete, OldRecord: before, OwnerID: before.UserID,
	})
	return nil
}
