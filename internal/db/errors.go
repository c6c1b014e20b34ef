package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrCheckViolation      = errors.New("check constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

// Translate tags a driver error with one of the sentinels above. The driver
// error stays in the chain so callers can still inspect it.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if kind := classify(err); kind != nil && !errors.Is(err, kind) {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrUniqueViolation
		case "23514", "23502":
			return ErrCheckViolation
		case "23503":
			return ErrForeignKeyViolation
		}
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return ErrUniqueViolation
		case 3819, 1048:
			return ErrCheckViolation
		case 1451, 1452:
			return ErrForeignKeyViolation
		}
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrUniqueViolation
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return ErrCheckViolation
		case sqlite3.ErrConstraintForeignKey:
			return ErrForeignKeyViolation
		}
		if liteErr.Code != sqlite3.ErrConstraint {
			return nil
		}
	}

	// Some sqlite builds report the base code only.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrUniqueViolation
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return ErrCheckViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrForeignKeyViolation
	}
	return nil
}

// IsConstraint reports whether err is any schema constraint rejection.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrCheckViolation) ||
		errors.Is(err, ErrForeignKeyViolation)
}
