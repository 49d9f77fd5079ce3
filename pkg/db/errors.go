package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// SQLite reports the violated table.column rather than the index name.
var sqliteUniqueColumns = map[string]string{
	"ux_users_email":        "users.email",
	"ux_products_sku":       "products.sku",
	"ux_carts_user_id":      "carts.user_id",
	"ux_carts_guest_id":     "carts.guest_id",
	"ux_orders_checkout_id": "orders.checkout_id",
	"ux_subscribers_email":  "subscribers.email",
}

// IsUniqueViolation reports whether the provided error is a unique constraint violation on
// Postgres (pgx or lib/pq) or SQLite. When constraintName is provided, the helper also requires
// the constraint (or, on SQLite, the column list) to appear in the error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && constraintName == "" {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" || strings.Contains(msg, constraintName) {
		return true
	}
	if column, ok := sqliteUniqueColumns[constraintName]; ok {
		return strings.Contains(msg, column)
	}
	return false
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
