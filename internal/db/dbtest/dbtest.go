// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"storefront/internal/db"
	"storefront/internal/domain/product"
	"storefront/internal/domain/user"
)

// New returns a fresh in-memory SQLite database with the full schema.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()
	gdb, closer, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, URL: db.MemoryDSN}, nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = closer() })

	if err := db.Migrate(ctx, gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

// SeedVariant inserts a product with one variant of the given stock,
// bypassing the stores.
func SeedVariant(t *testing.T, gdb *gorm.DB, name string, quantity int) product.Variant {
	t.Helper()

	size := product.Size{Name: name + "-size"}
	color := product.Color{Name: name + "-color"}
	p := product.Product{Name: name, Active: true}
	for _, row := range []any{&size, &color, &p} {
		if err := gdb.Create(row).Error; err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	v := product.Variant{ProductID: p.ID, SizeID: size.ID, ColorID: color.ID, Quantity: quantity}
	if err := gdb.Create(&v).Error; err != nil {
		t.Fatalf("seed variant %s: %v", name, err)
	}
	return v
}

// SeedIdentity registers an identity and its profile row.
func SeedIdentity(t *testing.T, gdb *gorm.DB, id string) user.User {
	t.Helper()

	if err := gdb.Create(&user.Identity{ID: id, Email: id + "@example.com"}).Error; err != nil {
		t.Fatalf("seed identity %s: %v", id, err)
	}
	var u user.User
	if err := gdb.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("seed identity %s: profile missing: %v", id, err)
	}
	return u
}
