package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/db"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain/product"
	"storefront/internal/policy"
	"storefront/internal/realtime"
)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Notify(_ context.Context, ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

var admin = policy.Admin("admin-1")

type fixture struct {
	repo  *Repo
	rec   *recorder
	size  product.Size
	color product.Color
	tee   product.Detail
}

// newFixture seeds size Small/Shirt/US, color Red and product Tee.
func newFixture(t *testing.T) fixture {
	t.Helper()
	rec := &recorder{}
	repo := NewRepo(dbtest.New(t), policy.Default(), rec)
	ctx := context.Background()

	size, err := repo.CreateSize(ctx, admin, product.Size{Name: "Small", Category: "Shirt", System: "US"})
	require.NoError(t, err)
	color, err := repo.CreateColor(ctx, admin, product.Color{Name: "Red", HexCode: "#ff0000"})
	require.NoError(t, err)
	tee, err := repo.CreateProduct(ctx, admin, CreateProductInput{Active: true, Name: "Tee"})
	require.NoError(t, err)

	return fixture{repo: repo, rec: rec, size: size, color: color, tee: tee}
}

func TestVariantScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.repo.CreateVariant(ctx, admin, product.Variant{
		ProductID: f.tee.ID, SizeID: f.size.ID, ColorID: f.color.ID, Quantity: 10,
	})
	require.NoError(t, err)

	// public read
	vs, err := f.repo.ListVariants(ctx, policy.Anonymous(), f.tee.ID)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, v.ID, vs[0].ID)
	assert.Equal(t, 10, vs[0].Quantity)
	require.NotNil(t, vs[0].Size)
	assert.Equal(t, "Small", vs[0].Size.Name)
	require.NotNil(t, vs[0].Color)
	assert.Equal(t, "Red", vs[0].Color.Name)

	// duplicate triple
	_, err = f.repo.CreateVariant(ctx, admin, product.Variant{
		ProductID: f.tee.ID, SizeID: f.size.ID, ColorID: f.color.ID, Quantity: 3,
	})
	require.ErrorIs(t, err, db.ErrUniqueViolation)

	// negative quantity
	neg := -1
	_, err = f.repo.UpdateVariant(ctx, admin, v.ID, VariantPatch{Quantity: &neg})
	require.ErrorIs(t, err, db.ErrCheckViolation)

	vs, err = f.repo.ListVariants(ctx, policy.Anonymous(), f.tee.ID)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, 10, vs[0].Quantity)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.repo.CreateVariant(ctx, admin, product.Variant{
		ProductID: f.tee.ID, SizeID: f.size.ID, ColorID: f.color.ID, Quantity: 2,
	})
	require.NoError(t, err)

	v, err = f.repo.AdjustStock(ctx, admin, v.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Quantity)

	_, err = f.repo.AdjustStock(ctx, admin, v.ID, -1)
	require.ErrorIs(t, err, db.ErrCheckViolation)

	v, err = f.repo.AdjustStock(ctx, policy.Service(), v.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Quantity)

	_, err = f.repo.AdjustStock(ctx, admin, 9999, 1)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestWritesNeedAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.CreateSize(ctx, policy.User("u1"), product.Size{Name: "Large"})
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	_, err = f.repo.CreateProduct(ctx, policy.Anonymous(), CreateProductInput{Name: "Hoodie"})
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	err = f.repo.DeleteColor(ctx, policy.User("u1"), f.color.ID)
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	colors, err := f.repo.ListColors(ctx, policy.Anonymous())
	require.NoError(t, err)
	assert.Len(t, colors, 1)
}

func TestUniqueNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.CreateSize(ctx, admin, product.Size{Name: "Small"})
	require.ErrorIs(t, err, db.ErrUniqueViolation)
	_, err = f.repo.CreateColor(ctx, admin, product.Color{Name: "Red"})
	require.ErrorIs(t, err, db.ErrUniqueViolation)

	blue, err := f.repo.CreateColor(ctx, admin, product.Color{Name: "Blue"})
	require.NoError(t, err)
	red := "Red"
	_, err = f.repo.UpdateColor(ctx, admin, blue.ID, ColorPatch{Name: &red})
	require.ErrorIs(t, err, db.ErrUniqueViolation)
}

func TestCreateProductWithVariants_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.CreateProduct(ctx, admin, CreateProductInput{
		Active: true,
		Name:   "Polo",
		Variants: []CreateVariantInput{
			{SizeID: f.size.ID, ColorID: f.color.ID, Quantity: 1},
			{SizeID: f.size.ID, ColorID: f.color.ID, Quantity: 2},
		},
	})
	require.ErrorIs(t, err, db.ErrUniqueViolation)

	products, err := f.repo.ListProducts(ctx, policy.Anonymous(), true)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Tee", products[0].Name)
}

func TestInactiveProductsHiddenFromPublic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	off := false
	_, err := f.repo.UpdateProduct(ctx, admin, f.tee.ID, ProductPatch{Active: &off})
	require.NoError(t, err)

	_, err = f.repo.GetProduct(ctx, policy.Anonymous(), f.tee.ID, false)
	require.ErrorIs(t, err, db.ErrNotFound)

	d, err := f.repo.GetProduct(ctx, admin, f.tee.ID, true)
	require.NoError(t, err)
	assert.False(t, d.Active)

	all, err := f.repo.ListProducts(ctx, admin, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProductChangeLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.repo.CreateVariant(ctx, admin, product.Variant{
		ProductID: f.tee.ID, SizeID: f.size.ID, ColorID: f.color.ID, Quantity: 4,
	})
	require.NoError(t, err)
	_, err = f.repo.AdjustStock(ctx, admin, v.ID, 1)
	require.NoError(t, err)

	changes, err := f.repo.ListProductChanges(ctx, admin, f.tee.ID)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, "insert", changes[0].Changelog["op"])
	assert.Equal(t, "adjust_stock", changes[2].Changelog["op"])
	require.NotNil(t, changes[2].ProductVariantID)
	assert.Equal(t, v.ID, *changes[2].ProductVariantID)

	// end users never see the log
	hidden, err := f.repo.ListProductChanges(ctx, policy.User("u1"), 0)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	// external inventory process
	_, err = f.repo.AppendProductChange(ctx, policy.Service(), product.Change{
		ProductVariantID: &v.ID,
		Changelog:        map[string]any{"op": "recount", "source": "warehouse"},
	})
	require.NoError(t, err)
	_, err = f.repo.AppendProductChange(ctx, policy.User("u1"), product.Change{ProductID: &f.tee.ID})
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	// deleting the product cascades variants and keeps the log
	require.NoError(t, f.repo.DeleteProduct(ctx, admin, f.tee.ID))
	vs, err := f.repo.ListVariants(ctx, admin, 0)
	require.NoError(t, err)
	assert.Empty(t, vs)

	all, err := f.repo.ListProductChanges(ctx, admin, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for _, c := range all {
		assert.Nil(t, c.ProductID)
		assert.Nil(t, c.ProductVariantID)
	}
}

func TestProductEventsPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Tee v2"
	_, err := f.repo.UpdateProduct(ctx, admin, f.tee.ID, ProductPatch{Name: &name})
	require.NoError(t, err)
	require.NoError(t, f.repo.DeleteProduct(ctx, admin, f.tee.ID))

	evs := f.rec.all()
	require.Len(t, evs, 3)
	assert.Equal(t, realtime.EventInsert, evs[0].Type)
	assert.Equal(t, realtime.EventUpdate, evs[1].Type)
	assert.Equal(t, "Tee v2", evs[1].Record.(product.Product).Name)
	assert.Equal(t, "Tee", evs[1].OldRecord.(product.Product).Name)
	assert.Equal(t, realtime.EventDelete, evs[2].Type)
	for _, ev := range evs {
		assert.Equal(t, policy.TableProducts, ev.Table)
	}

	// a failed write publishes nothing
	_, err = f.repo.UpdateProduct(ctx, admin, f.tee.ID, ProductPatch{Name: &name})
	require.ErrorIs(t, err, db.ErrNotFound)
	assert.Len(t, f.rec.all(), 3)
}
