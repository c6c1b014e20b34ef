package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/domain/order"
	"storefront/internal/domain/price"
	"storefront/internal/domain/product"
	"storefront/internal/domain/user"
)

// Models lists every persisted model. gorm orders the CREATE statements by
// foreign key dependency.
func Models() []any {
	return []any{
		&user.Identity{},
		&user.User{},
		&user.Customer{},
		&product.Size{},
		&product.Color{},
		&product.Product{},
		&product.Variant{},
		&product.Change{},
		&price.Price{},
		&order.StatusRecord{},
		&order.Order{},
		&order.Item{},
		&order.Change{},
	}
}

// Migrate creates or updates the schema and seeds order_statuses.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	gdb = gdb.WithContext(ctx)
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	statuses := order.StatusRecords()
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&statuses).Error; err != nil {
		return fmt.Errorf("seed order_statuses: %w", err)
	}
	return nil
}
