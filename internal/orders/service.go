package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

var errOrderNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")

// Service exposes order reads for customers and order administration.
type Service interface {
	MyOrders(ctx context.Context, userID uuid.UUID) (*MyOrders, error)
	Detail(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	AdminList(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the order service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) MyOrders(ctx context.Context, userID uuid.UUID) (*MyOrders, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return &MyOrders{Orders: orders, TotalOrders: len(orders)}, nil
}

// Detail returns the order to its owner or an admin. Anyone else sees NotFound.
func (s *service) Detail(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID && !actor.isAdmin() {
		return nil, errOrderNotFound
	}
	return order, nil
}

func (s *service) AdminList(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders, nil
}

// UpdateStatus moves the order to status. Delivered also stamps isDelivered and deliveredAt.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	parsed, err := enums.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid order status").
			WithDetails(map[string]any{"status": status})
	}

	updates := map[string]any{"status": parsed}
	if parsed == enums.OrderStatusDelivered {
		updates["is_delivered"] = true
		updates["delivered_at"] = s.now().UTC()
	}
	rows, err := s.repo.Update(ctx, orderID, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
	}
	if rows == 0 {
		return nil, errOrderNotFound
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   parsed,
	}), "order status updated")
	return s.load(ctx, orderID)
}

func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
	}
	if rows == 0 {
		return errOrderNotFound
	}
	return nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errOrderNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

// FromCheckout builds the order for a paid checkout. Line items, address and totals are copied
// by value so the order no longer depends on the checkout row.
func FromCheckout(checkout *models.Checkout) *models.Order {
	order := &models.Order{
		UserID:          checkout.UserID,
		CheckoutID:      checkout.ID,
		OrderItems:      checkout.CheckoutItems.Clone(),
		ShippingAddress: checkout.ShippingAddress,
		PaymentMethod:   checkout.PaymentMethod,
		TotalPrice:      checkout.TotalPrice,
		IsPaid:          true,
		PaymentStatus:   enums.PaymentStatusPaid,
		Status:          enums.OrderStatusProcessing,
	}
	if checkout.PaidAt != nil {
		paidAt := *checkout.PaidAt
		order.PaidAt = &paidAt
	}
	if len(checkout.PaymentDetails) > 0 {
		order.PaymentDetails = append(order.PaymentDetails[:0:0], checkout.PaymentDetails...)
	}
	return order
}
