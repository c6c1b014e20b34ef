package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront/internal/db"
	"storefront/internal/domain/product"
	"storefront/internal/httperr"
	"storefront/internal/policy"
	"storefront/internal/realtime"
)

// Repo is the catalog store: sizes, colors, products, variants and the
// product change log.
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

type SizePatch struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	System   *string `json:"system"`
}

func (p SizePatch) fields() map[string]any {
	f := map[string]any{}
	setIf(f, "name", p.Name)
	setIf(f, "category", p.Category)
	setIf(f, "system", p.System)
	return f
}

type ColorPatch struct {
	Name    *string `json:"name"`
	HexCode *string `json:"hex_code"`
}

func (p ColorPatch) fields() map[string]any {
	f := map[string]any{}
	setIf(f, "name", p.Name)
	setIf(f, "hex_code", p.HexCode)
	return f
}

type ProductPatch struct {
	Active      *bool             `json:"active"`
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Image       *string           `json:"image"`
	Metadata    datatypes.JSONMap `json:"metadata"`
}

func (p ProductPatch) fields() map[string]any {
	f := map[string]any{}
	setIf(f, "active", p.Active)
	setIf(f, "name", p.Name)
	setIf(f, "description", p.Description)
	setIf(f, "image", p.Image)
	if p.Metadata != nil {
		f["metadata"] = p.Metadata
	}
	return f
}

type VariantPatch struct {
	SizeID   *int64 `json:"size_id"`
	ColorID  *int64 `json:"color_id"`
	Quantity *int   `json:"quantity"`
}

func (p VariantPatch) fields() map[string]any {
	f := map[string]any{}
	setIf(f, "size_id", p.SizeID)
	setIf(f, "color_id", p.ColorID)
	setIf(f, "quantity", p.Quantity)
	return f
}

func setIf[T any](f map[string]any, col string, v *T) {
	if v != nil {
		f[col] = *v
	}
}

func listScoped[T any](ctx context.Context, r *Repo, p policy.Principal, t policy.Table, q func(*gorm.DB) *gorm.DB) ([]T, error) {
	out := []T{}
	scope, ok := r.pol.ReadScope(p, t)
	if !ok {
		return out, nil
	}
	if err := q(r.db.WithContext(ctx).Scopes(scope)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t, db.Translate(err))
	}
	return out, nil
}

func (r *Repo) ListSizes(ctx context.Context, p policy.Principal) ([]product.Size, error) {
	return listScoped[product.Size](ctx, r, p, policy.TableSizes, func(q *gorm.DB) *gorm.DB {
		return q.Order("name ASC")
	})
}

func (r *Repo) ListColors(ctx context.Context, p policy.Principal) ([]product.Color, error) {
	return listScoped[product.Color](ctx, r, p, policy.TableColors, func(q *gorm.DB) *gorm.DB {
		return q.Order("name ASC")
	})
}

func (r *Repo) ListProducts(ctx context.Context, p policy.Principal, activeOnly bool) ([]product.Product, error) {
	return listScoped[product.Product](ctx, r, p, policy.TableProducts, func(q *gorm.DB) *gorm.DB {
		if activeOnly {
			q = q.Where("active = ?", true)
		}
		return q.Order("created_at DESC, id DESC")
	})
}

// ListVariants lists variants, optionally of one product (productID > 0).
func (r *Repo) ListVariants(ctx context.Context, p policy.Principal, productID int64) ([]product.Variant, error) {
	return listScoped[product.Variant](ctx, r, p, policy.TableProductVariants, func(q *gorm.DB) *gorm.DB {
		if productID > 0 {
			q = q.Where("product_id = ?", productID)
		}
		return q.Preload("Size").Preload("Color").Order("id ASC")
	})
}

// GetProduct returns a product with its variants. Inactive products are
// hidden unless includeInactive is set.
func (r *Repo) GetProduct(ctx context.Context, p policy.Principal, id int64, includeInactive bool) (product.Detail, error) {
	scope, ok := r.pol.ReadScope(p, policy.TableProducts)
	if !ok {
		return product.Detail{}, db.ErrNotFound
	}
	q := r.db.WithContext(ctx).Scopes(scope)
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var d product.Detail
	if err := q.First(&d.Product, "id = ?", id).Error; err != nil {
		return product.Detail{}, fmt.Errorf("failed to get product: %w", db.Translate(err))
	}
	vs, err := r.ListVariants(ctx, p, id)
	if err != nil {
		return product.Detail{}, err
	}
	d.Variants = vs
	return d, nil
}

func (r *Repo) ListProductChanges(ctx context.Context, p policy.Principal, productID int64) ([]product.Change, error) {
	return listScoped[product.Change](ctx, r, p, policy.TableProductChanges, func(q *gorm.DB) *gorm.DB {
		if productID > 0 {
			q = q.Where("product_id = ?", productID)
		}
		return q.Order("id ASC")
	})
}

func (r *Repo) CreateSize(ctx context.Context, p policy.Principal, s product.Size) (product.Size, error) {
	if _, err := r.pol.Authorize(p, policy.TableSizes, policy.OpInsert); err != nil {
		return product.Size{}, err
	}
	s.ID = 0
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return product.Size{}, fmt.Errorf("failed to create size: %w", db.Translate(err))
	}
	return s, nil
}

func (r *Repo) UpdateSize(ctx context.Context, p policy.Principal, id int64, patch SizePatch) (product.Size, error) {
	var s product.Size
	err := r.updateRow(ctx, p, policy.TableSizes, &s, id, patch.fields())
	return s, err
}

func (r *Repo) DeleteSize(ctx context.Context, p policy.Principal, id int64) error {
	return r.deleteRow(ctx, p, policy.TableSizes, &product.Size{}, id)
}

func (r *Repo) CreateColor(ctx context.Context, p policy.Principal, c product.Color) (product.Color, error) {
	if _, err := r.pol.Authorize(p, policy.TableColors, policy.OpInsert); err != nil {
		return product.Color{}, err
	}
	c.ID = 0
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return product.Color{}, fmt.Errorf("failed to create color: %w", db.Translate(err))
	}
	return c, nil
}

func (r *Repo) UpdateColor(ctx context.Context, p policy.Principal, id int64, patch ColorPatch) (product.Color, error) {
	var c product.Color
	err := r.updateRow(ctx, p, policy.TableColors, &c, id, patch.fields())
	return c, err
}

func (r *Repo) DeleteColor(ctx context.Context, p policy.Principal, id int64) error {
	return r.deleteRow(ctx, p, policy.TableColors, &product.Color{}, id)
}

func (r *Repo) updateRow(ctx context.Context, p policy.Principal, t policy.Table, dest any, id int64, fields map[string]any) error {
	if _, err := r.pol.Authorize(p, t, policy.OpUpdate); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(dest).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("failed to update %s: %w", t, db.Translate(err))
			}
		}
		if err := tx.First(dest, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to update %s: %w", t, db.Translate(err))
		}
		return nil
	})
}

func (r *Repo) deleteRow(ctx context.Context, p policy.Principal, t policy.Table, model any, id int64) error {
	if _, err := r.pol.Authorize(p, t, policy.OpDelete); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(model, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", t, db.Translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete %s: %w", t, db.ErrNotFound)
	}
	return nil
}

type CreateProductInput struct {
	Active      bool
	Name        string
	Description string
	Image       string
	Metadata    datatypes.JSONMap

	Variants []CreateVariantInput
}

type CreateVariantInput struct {
	SizeID   int64
	ColorID  int64
	Quantity int
}

func (r *Repo) CreateProduct(ctx context.Context, p policy.Principal, in CreateProductInput) (product.Detail, error) {
	if _, err := r.pol.Authorize(p, policy.TableProducts, policy.OpInsert); err != nil {
		return product.Detail{}, err
	}
	if len(in.Variants) > 0 {
		if _, err := r.pol.Authorize(p, policy.TableProductVariants, policy.OpInsert); err != nil {
			return product.Detail{}, err
		}
	}

	d := product.Detail{Product: product.Product{
		Active:      in.Active,
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Metadata:    in.Metadata,
	}}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&d.Product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", db.Translate(err))
		}
		if err := appendChange(tx, &d.Product.ID, nil, "insert", nil, d.Product); err != nil {
			return err
		}
		for _, vin := range in.Variants {
			v := product.Variant{ProductID: d.Product.ID, SizeID: vin.SizeID, ColorID: vin.ColorID, Quantity: vin.Quantity}
			if err := tx.Create(&v).Error; err != nil {
				return fmt.Errorf("variant insert failed: %w", db.Translate(err))
			}
			if err := appendChange(tx, &d.Product.ID, &v.ID, "insert", nil, v); err != nil {
				return err
			}
			d.Variants = append(d.Variants, v)
		}
		return nil
	})
	if err != nil {
		return product.Detail{}, err
	}
	if d.Variants == nil {
		d.Variants = []product.Variant{}
	}
	r.publishProduct(ctx, realtime.EventInsert, &d.Product, nil)
	return d, nil
}

func (r *Repo) UpdateProduct(ctx context.Context, p policy.Principal, id int64, patch ProductPatch) (product.Product, error) {
	if _, err := r.pol.Authorize(p, policy.TableProducts, policy.OpUpdate); err != nil {
		return product.Product{}, err
	}
	var before, after product.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", db.Translate(err))
		}
		if f := patch.fields(); len(f) > 0 {
			if err := tx.Model(&product.Product{}).Where("id = ?", id).Updates(f).Error; err != nil {
				return fmt.Errorf("failed to update product: %w", db.Translate(err))
			}
		}
		if err := tx.First(&after, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", db.Translate(err))
		}
		return appendChange(tx, &id, nil, "update", before, after)
	})
	if err != nil {
		return product.Product{}, err
	}
	r.publishProduct(ctx, realtime.EventUpdate, &after, &before)
	return after, nil
}

// DeleteProduct removes a product; its variants cascade and its change log
// rows keep their payload with product_id nulled.
func (r *Repo) DeleteProduct(ctx context.Context, p policy.Principal, id int64) error {
	if _, err := r.pol.Authorize(p, policy.TableProducts, policy.OpDelete); err != nil {
		return err
	}
	var before product.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete product: %w", db.Translate(err))
		}
		if err := appendChange(tx, &id, nil, "delete", before, nil); err != nil {
			return err
		}
		if err := tx.Delete(&product.Product{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete product: %w", db.Translate(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.publishProduct(ctx, realtime.EventDelete, nil, &before)
	return nil
}

func (r *Repo) CreateVariant(ctx context.Context, p policy.Principal, in product.Variant) (product.Variant, error) {
	if _, err := r.pol.Authorize(p, policy.TableProductVariants, policy.OpInsert); err != nil {
		return product.Variant{}, err
	}
	v := product.Variant{ProductID: in.ProductID, SizeID: in.SizeID, ColorID: in.ColorID, Quantity: in.Quantity}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&v).Error; err != nil {
			return fmt.Errorf("failed to create variant: %w", db.Translate(err))
		}
		return appendChange(tx, &v.ProductID, &v.ID, "insert", nil, v)
	})
	if err != nil {
		return product.Variant{}, err
	}
	return v, nil
}

func (r *Repo) UpdateVariant(ctx context.Context, p policy.Principal, id int64, patch VariantPatch) (product.Variant, error) {
	return r.mutateVariant(ctx, p, id, "update", patch.fields())
}

// AdjustStock moves quantity by delta in a single UPDATE, so a result below
// zero is refused by the quantity check and the stored value is untouched.
func (r *Repo) AdjustStock(ctx context.Context, p policy.Principal, id int64, delta int) (product.Variant, error) {
	return r.mutateVariant(ctx, p, id, "adjust_stock", map[string]any{
		"quantity": gorm.Expr("quantity + ?", delta),
	})
}

func (r *Repo) mutateVariant(ctx context.Context, p policy.Principal, id int64, op string, fields map[string]any) (product.Variant, error) {
	if _, err := r.pol.Authorize(p, policy.TableProductVariants, policy.OpUpdate); err != nil {
		return product.Variant{}, err
	}
	var before, after product.Variant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to %s variant: %w", op, db.Translate(err))
		}
		if len(fields) > 0 {
			if err := tx.Model(&product.Variant{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("failed to %s variant: %w", op, db.Translate(err))
			}
		}
		if err := tx.First(&after, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to %s variant: %w", op, db.Translate(err))
		}
		return appendChange(tx, &after.ProductID, &id, op, before, after)
	})
	if err != nil {
		return product.Variant{}, err
	}
	return after, nil
}

func (r *Repo) DeleteVariant(ctx context.Context, p policy.Principal, id int64) error {
	if _, err := r.pol.Authorize(p, policy.TableProductVariants, policy.OpDelete); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before product.Variant
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete variant: %w", db.Translate(err))
		}
		if err := appendChange(tx, &before.ProductID, &id, "delete", before, nil); err != nil {
			return err
		}
		if err := tx.Delete(&product.Variant{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete variant: %w", db.Translate(err))
		}
		return nil
	})
}

// AppendProductChange records a change made outside this store, e.g. by the
// inventory system.
func (r *Repo) AppendProductChange(ctx context.Context, p policy.Principal, c product.Change) (product.Change, error) {
	if _, err := r.pol.Authorize(p, policy.TableProductChanges, policy.OpInsert); err != nil {
		return product.Change{}, err
	}
	if c.ProductID == nil && c.ProductVariantID == nil {
		return product.Change{}, fmt.Errorf("%w: product change needs product_id or product_variant_id", httperr.ErrInvalidInput)
	}
	row := product.Change{ProductID: c.ProductID, ProductVariantID: c.ProductVariantID, Changelog: c.Changelog}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return product.Change{}, fmt.Errorf("failed to append product change: %w", db.Translate(err))
	}
	return row, nil
}

func appendChange(tx *gorm.DB, productID, variantID *int64, op string, before, after any) error {
	log := datatypes.JSONMap{"op": op, "at": time.Now().UTC().Format(time.RFC3339Nano)}
	if before != nil {
		log["old"] = before
	}
	if after != nil {
		log["new"] = after
	}
	pid, vid := productID, variantID
	if pid != nil {
		v := *pid
		pid = &v
		log["product_id"] = v
	}
	if vid != nil {
		v := *vid
		vid = &v
		log["product_variant_id"] = v
	}
	if err := tx.Create(&product.Change{ProductID: pid, ProductVariantID: vid, Changelog: log}).Error; err != nil {
		return fmt.Errorf("failed to append product change: %w", db.Translate(err))
	}
	return nil
}

func (r *Repo) publishProduct(ctx context.Context, typ realtime.EventType, rec, old *product.Product) {
	ev := realtime.Event{Table: policy.TableProducts, Type: typ}
	if rec != nil {
		ev.Record = *rec
	}
	if old != nil {
		ev.OldRecord = *old
	}
	r.notify.Notify(ctx, ev)
}
