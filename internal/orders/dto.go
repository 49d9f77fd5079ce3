package orders

import (
	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
)

// MyOrders is the customer's order history.
type MyOrders struct {
	Orders      []models.Order `json:"orders"`
	TotalOrders int            `json:"totalOrders"`
}

// Actor is the authenticated caller reading an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.RoleAdmin
}
