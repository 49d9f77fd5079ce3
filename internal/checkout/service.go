package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/orders"
	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	"github.com/storefront-labs/storefront-backend/pkg/outbox/payloads"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

var (
	errCheckoutNotFound  = pkgerrors.New(pkgerrors.CodeNotFound, "Checkout not found")
	errAlreadyPaid       = pkgerrors.New(pkgerrors.CodeConflict, "Checkout is already paid")
	errAlreadyFinalized  = pkgerrors.New(pkgerrors.CodeConflict, "Checkout is already finalized")
	errNotPaid           = pkgerrors.New(pkgerrors.CodeStateConflict, "Checkout is not paid yet")
	errInvalidPayStatus  = pkgerrors.New(pkgerrors.CodeValidation, "Payment status is not valid")
	errConcurrentPayment = pkgerrors.New(pkgerrors.CodeConflict, "checkout was modified concurrently, retry")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartPurger interface {
	PurgeUserCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// Service drives a checkout through Created, Paid and Finalized.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Checkout, error)
	Get(ctx context.Context, userID, checkoutID uuid.UUID) (*models.Checkout, error)
	Pay(ctx context.Context, userID, checkoutID uuid.UUID, input PayInput) (*models.Checkout, error)
	Finalize(ctx context.Context, userID, checkoutID uuid.UUID) (*models.Order, error)
}

// CreateInput is the snapshot a client submits to open a checkout.
type CreateInput struct {
	Items           types.LineItems
	ShippingAddress types.ShippingAddress
	PaymentMethod   string
	TotalPrice      decimal.Decimal
}

// PayInput carries the payment provider's confirmation.
type PayInput struct {
	PaymentStatus  string
	PaymentDetails types.RawJSON
}

type service struct {
	repo    *Repository
	orders  orders.Repository
	carts   cartPurger
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
	now     func() time.Time
}

// NewService builds the checkout service. m may be nil.
func NewService(
	repo *Repository,
	ordersRepo orders.Repository,
	carts cartPurger,
	tx txRunner,
	publisher outboxPublisher,
	logg *logger.Logger,
	m *metrics.CheckoutMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart purger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		orders:  ordersRepo,
		carts:   carts,
		tx:      tx,
		outbox:  publisher,
		logg:    logg,
		metrics: m,
		now:     time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (created *models.Checkout, err error) {
	defer func() { s.metrics.Record(metrics.TransitionCreate, metrics.ResultFor(err)) }()

	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No items in checkout")
	}
	for i, item := range input.Items {
		if item.Quantity < 1 || item.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid checkout item").
				WithDetails(map[string]any{"index": i, "productId": item.ProductID})
		}
	}
	if input.TotalPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Total price must not be negative")
	}

	checkout := &models.Checkout{
		UserID:          userID,
		CheckoutItems:   input.Items.Clone(),
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		TotalPrice:      input.TotalPrice,
		PaymentStatus:   enums.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, checkout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout")
	}

	s.logg.Info(s.fields(ctx, checkout), "checkout created")
	return checkout, nil
}

func (s *service) Get(ctx context.Context, userID, checkoutID uuid.UUID) (*models.Checkout, error) {
	return s.load(ctx, s.repo, userID, checkoutID)
}

// Pay is a one-shot transition from Created to Paid. Only the "paid" status is accepted.
func (s *service) Pay(ctx context.Context, userID, checkoutID uuid.UUID, input PayInput) (paid *models.Checkout, err error) {
	defer func() { s.metrics.Record(metrics.TransitionPay, metrics.ResultFor(err)) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		checkout, err := s.load(ctx, repo, userID, checkoutID)
		if err != nil {
			return err
		}
		// Only the exact lower-case literal confirms payment.
		if input.PaymentStatus != enums.PaymentStatusPaid.String() {
			return errInvalidPayStatus
		}
		switch {
		case checkout.IsFinalized:
			return errAlreadyFinalized
		case checkout.IsPaid:
			return errAlreadyPaid
		}

		paidAt := s.now().UTC()
		details := input.PaymentDetails
		if len(details) == 0 {
			details = nil
		}
		if err := repo.UpdateVersioned(ctx, checkout, map[string]any{
			"is_paid":         true,
			"payment_status":  enums.PaymentStatusPaid,
			"payment_details": details,
			"paid_at":         paidAt,
		}); err != nil {
			if errors.Is(err, ErrStaleVersion) {
				return errConcurrentPayment
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark checkout paid")
		}
		checkout.IsPaid = true
		checkout.PaymentStatus = enums.PaymentStatusPaid
		checkout.PaymentDetails = details
		checkout.PaidAt = &paidAt

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutPaid,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   checkout.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.CheckoutPaidEvent{
				CheckoutID: checkout.ID,
				UserID:     checkout.UserID,
				TotalPrice: checkout.TotalPrice,
				PaidAt:     paidAt,
			},
			OccurredAt: paidAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit checkout paid")
		}
		paid = checkout
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.fields(ctx, paid), "checkout paid")
	return paid, nil
}

// Finalize turns a paid checkout into an order. The checkout update, order insert, cart purge
// and order_created event commit together or not at all.
func (s *service) Finalize(ctx context.Context, userID, checkoutID uuid.UUID) (order *models.Order, err error) {
	defer func() { s.metrics.Record(metrics.TransitionFinalize, metrics.ResultFor(err)) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		checkout, err := s.load(ctx, repo, userID, checkoutID)
		if err != nil {
			return err
		}
		switch {
		case checkout.IsFinalized:
			return errAlreadyFinalized
		case !checkout.IsPaid:
			return errNotPaid
		}

		finalizedAt := s.now().UTC()
		// The version check runs first so a concurrent finalize blocks here and then loses.
		if err := repo.UpdateVersioned(ctx, checkout, map[string]any{
			"is_finalized": true,
			"finalized_at": finalizedAt,
		}); err != nil {
			if errors.Is(err, ErrStaleVersion) {
				return errAlreadyFinalized
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize checkout")
		}

		created, err := s.orders.WithTx(tx).Create(ctx, orders.FromCheckout(checkout))
		if err != nil {
			if db.IsUniqueViolation(err, "ux_orders_checkout_id") {
				return errAlreadyFinalized
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if err := s.carts.PurgeUserCart(ctx, tx, checkout.UserID); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCreatedEvent{
				OrderID:       created.ID,
				CheckoutID:    checkout.ID,
				UserID:        created.UserID,
				TotalPrice:    created.TotalPrice,
				ItemCount:     created.OrderItems.Quantity(),
				PaymentMethod: created.PaymentMethod,
				CreatedAt:     created.CreatedAt,
			},
			OccurredAt: finalizedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"checkout_id": checkoutID.String(),
		"order_id":    order.ID.String(),
		"user_id":     userID.String(),
		"total_price": order.TotalPrice.String(),
	}), "checkout finalized")
	return order, nil
}

func (s *service) load(ctx context.Context, repo *Repository, userID, checkoutID uuid.UUID) (*models.Checkout, error) {
	checkout, err := repo.FindForUser(ctx, checkoutID, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errCheckoutNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout")
	}
	return checkout, nil
}

func (s *service) fields(ctx context.Context, checkout *models.Checkout) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"checkout_id":    checkout.ID.String(),
		"user_id":        checkout.UserID.String(),
		"payment_status": checkout.PaymentStatus,
		"total_price":    checkout.TotalPrice.String(),
	})
}
