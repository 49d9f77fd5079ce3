package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

// Order is the permanent record produced when a paid checkout is finalized.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index" json:"user"`
	CheckoutID      uuid.UUID             `gorm:"column:checkout_id;type:uuid;not null;uniqueIndex:ux_orders_checkout_id" json:"checkout"`
	OrderItems      types.LineItems       `gorm:"column:order_items;type:jsonb;not null" json:"orderItems"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null" json:"shippingAddress"`
	PaymentMethod   string                `gorm:"column:payment_method;not null" json:"paymentMethod"`
	TotalPrice      decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null" json:"totalPrice"`
	IsPaid          bool                  `gorm:"column:is_paid;not null;default:false" json:"isPaid"`
	PaidAt          *time.Time            `gorm:"column:paid_at" json:"paidAt,omitempty"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null" json:"paymentStatus"`
	PaymentDetails  types.RawJSON         `gorm:"column:payment_details;type:jsonb" json:"paymentDetails,omitempty"`
	IsDelivered     bool                  `gorm:"column:is_delivered;not null;default:false" json:"isDelivered"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	Status          enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'Processing'" json:"status"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Customer *User `gorm:"foreignKey:UserID;references:ID" json:"customer,omitempty"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Status == "" {
		o.Status = enums.OrderStatusProcessing
	}
	return nil
}
