package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/db"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(conn *gorm.DB) Base {
	return Base{db: conn}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base that runs every statement on tx.
func (b Base) Bind(tx *gorm.DB) Base {
	return Base{db: tx}
}

// Dialect reports the driver name so queries can branch on JSON functions.
func (b Base) Dialect() string {
	return db.Dialect(b.db)
}
