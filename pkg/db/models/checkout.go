package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

// Checkout is a frozen snapshot of items awaiting payment confirmation and finalization.
type Checkout struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index" json:"user"`
	CheckoutItems   types.LineItems       `gorm:"column:checkout_items;type:jsonb;not null" json:"checkoutItems"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null" json:"shippingAddress"`
	PaymentMethod   string                `gorm:"column:payment_method;not null" json:"paymentMethod"`
	TotalPrice      decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null" json:"totalPrice"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'Pending'" json:"paymentStatus"`
	IsPaid          bool                  `gorm:"column:is_paid;not null;default:false" json:"isPaid"`
	PaidAt          *time.Time            `gorm:"column:paid_at" json:"paidAt,omitempty"`
	PaymentDetails  types.RawJSON         `gorm:"column:payment_details;type:jsonb" json:"paymentDetails,omitempty"`
	IsFinalized     bool                  `gorm:"column:is_finalized;not null;default:false" json:"isFinalized"`
	FinalizedAt     *time.Time            `gorm:"column:finalized_at" json:"finalizedAt,omitempty"`
	Version         int                   `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (c *Checkout) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.Version == 0 {
		c.Version = 1
	}
	if c.PaymentStatus == "" {
		c.PaymentStatus = enums.PaymentStatusPending
	}
	return nil
}
