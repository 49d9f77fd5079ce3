package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted inside the finalize transaction once a paid checkout becomes an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	CheckoutID    uuid.UUID       `json:"checkout_id"`
	UserID        uuid.UUID       `json:"user_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	ItemCount     int             `json:"item_count"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CheckoutPaidEvent records the one-shot payment confirmation of a checkout.
type CheckoutPaidEvent struct {
	CheckoutID uuid.UUID       `json:"checkout_id"`
	UserID     uuid.UUID       `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	PaidAt     time.Time       `json:"paid_at"`
}
