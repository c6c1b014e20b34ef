package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/db"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain/order"
	"storefront/internal/domain/product"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := db.Open(context.Background(), db.Config{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMigrate_CreatesSchemaAndSeedsStatuses(t *testing.T) {
	gdb := dbtest.New(t)

	for _, table := range []string{
		"identities", "users", "customers", "sizes", "colors", "products",
		"product_variants", "product_changes", "prices", "order_statuses",
		"orders", "order_items", "order_changes",
	} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}

	var n int64
	require.NoError(t, gdb.Model(&order.StatusRecord{}).Count(&n).Error)
	assert.EqualValues(t, len(order.All()), n)

	// seeding twice is a no-op
	require.NoError(t, db.Migrate(context.Background(), gdb))
	require.NoError(t, gdb.Model(&order.StatusRecord{}).Count(&n).Error)
	assert.EqualValues(t, len(order.All()), n)
}

func TestTranslate(t *testing.T) {
	gdb := dbtest.New(t)

	size := product.Size{Name: "Small"}
	require.NoError(t, gdb.Create(&size).Error)

	t.Run("unique", func(t *testing.T) {
		err := db.Translate(gdb.Create(&product.Size{Name: "Small"}).Error)
		assert.ErrorIs(t, err, db.ErrUniqueViolation)
		assert.True(t, db.IsConstraint(err))
	})

	t.Run("foreign key", func(t *testing.T) {
		err := db.Translate(gdb.Create(&product.Variant{ProductID: 999, SizeID: size.ID, ColorID: 999}).Error)
		assert.ErrorIs(t, err, db.ErrForeignKeyViolation)
	})

	t.Run("check", func(t *testing.T) {
		p := product.Product{Name: "Tee", Active: true}
		require.NoError(t, gdb.Create(&p).Error)
		c := product.Color{Name: "Red"}
		require.NoError(t, gdb.Create(&c).Error)

		err := db.Translate(gdb.Create(&product.Variant{ProductID: p.ID, SizeID: size.ID, ColorID: c.ID, Quantity: -1}).Error)
		assert.ErrorIs(t, err, db.ErrCheckViolation)
	})

	t.Run("not found", func(t *testing.T) {
		err := db.Translate(gdb.First(&product.Size{}, 12345).Error)
		assert.ErrorIs(t, err, db.ErrNotFound)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("passthrough", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Same(t, plain, db.Translate(plain))
		assert.NoError(t, db.Translate(nil))
	})
}
