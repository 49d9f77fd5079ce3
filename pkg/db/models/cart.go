package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/types"
)

// Cart belongs to exactly one owner: a registered user or a guest session.
type Cart struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID      `gorm:"column:user_id;type:uuid;uniqueIndex:ux_carts_user_id" json:"user,omitempty"`
	GuestID    *string         `gorm:"column:guest_id;type:text;uniqueIndex:ux_carts_guest_id" json:"guestId,omitempty"`
	Products   types.LineItems `gorm:"column:products;type:jsonb;not null" json:"products"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null;default:0" json:"totalPrice"`
	Version    int             `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Products == nil {
		c.Products = types.LineItems{}
	}
	return nil
}

// Recalculate restores totalPrice = sum(price * quantity).
func (c *Cart) Recalculate() {
	c.TotalPrice = c.Products.Total()
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Products) == 0
}
