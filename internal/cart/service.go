package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

// maxWriteAttempts bounds the re-read and re-apply loop on stale versions.
const maxWriteAttempts = 3

const guestIDPrefix = "guest_"

var errConcurrentModification = pkgerrors.New(pkgerrors.CodeConflict, "cart was modified concurrently, retry")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service is the cart engine.
type Service interface {
	Resolve(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, bool, error)
	SetQuantity(ctx context.Context, owner Owner, key LineKey, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, key LineKey) (*models.Cart, error)
	Merge(ctx context.Context, guestID string, userID uuid.UUID) (*models.Cart, error)
	PurgeUserCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// AddItemInput is the line to fold into the owner's cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Size      string
	Color     string
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productLookup
	logg     *logger.Logger
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time

	lastGuest atomic.Int64
}

// NewService builds a cart service. m may be nil.
func NewService(repo *Repository, tx txRunner, products productLookup, logg *logger.Logger, m *metrics.CheckoutMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Resolve returns the owner's cart or nil when there is none.
func (s *service) Resolve(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, nil
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return cart, nil
}

// AddItem folds the line into the owner's cart, creating the cart when absent.
// The bool reports whether a new cart was created.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, bool, error) {
	input.Size = strings.TrimSpace(input.Size)
	input.Color = strings.TrimSpace(input.Color)

	product, err := s.products.Get(ctx, input.ProductID)
	if err != nil {
		return nil, false, err
	}

	generated := owner.IsZero()
	if generated {
		owner = GuestOwner(s.newGuestID())
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		cart, err := s.repo.FindByOwner(ctx, owner)
		switch {
		case db.IsNotFound(err):
			created, createErr := s.createWithLine(ctx, owner, product, input)
			if createErr == nil {
				return created, true, nil
			}
			if isOwnerRace(createErr) {
				// A generated guest id that collides belongs to someone else's cart.
				if generated {
					owner = GuestOwner(s.newGuestID())
				}
				continue
			}
			return nil, false, createErr
		case err != nil:
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}

		if err := addLine(cart, product, input); err != nil {
			return nil, false, err
		}
		cart.Recalculate()
		if err := s.repo.UpdateVersioned(ctx, cart); err != nil {
			if errors.Is(err, ErrStaleVersion) {
				continue
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart")
		}
		return cart, false, nil
	}
	return nil, false, errConcurrentModification
}

// SetQuantity replaces the line quantity; a non-positive quantity removes the line.
func (s *service) SetQuantity(ctx context.Context, owner Owner, key LineKey, quantity int) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(cart *models.Cart) error {
		idx := cart.Products.Find(key.ProductID, trim(key.Size), trim(key.Color))
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found in cart")
		}
		if quantity > 0 {
			cart.Products[idx].Quantity = quantity
		} else {
			cart.Products = removeAt(cart.Products, idx)
		}
		return nil
	})
}

// RemoveItem drops the line unconditionally.
func (s *service) RemoveItem(ctx context.Context, owner Owner, key LineKey) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(cart *models.Cart) error {
		idx := cart.Products.Find(key.ProductID, trim(key.Size), trim(key.Color))
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found in cart")
		}
		cart.Products = removeAt(cart.Products, idx)
		return nil
	})
}

// Merge folds the guest cart into the user's cart, or re-owns it when the user has none.
// Each attempt runs in one transaction; a stale version rolls it back and retries.
func (s *service) Merge(ctx context.Context, guestID string, userID uuid.UUID) (*models.Cart, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guestId is required")
	}

	var merged *models.Cart
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			merged, txErr = s.mergeTx(ctx, s.repo.WithTx(tx), guestID, userID)
			return txErr
		})
		if err == nil || !(errors.Is(err, ErrStaleVersion) || isOwnerRace(err)) {
			break
		}
	}
	if err != nil && (errors.Is(err, ErrStaleVersion) || isOwnerRace(err)) {
		err = errConcurrentModification
	}
	if err != nil && pkgerrors.As(err) == nil {
		err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart")
	}
	s.metrics.Record(metrics.TransitionMerge, metrics.ResultFor(err))
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cart_id":  merged.ID.String(),
		"guest_id": guestID,
		"user_id":  userID.String(),
	}), "guest cart merged")
	return merged, nil
}

func (s *service) mergeTx(ctx context.Context, repo *Repository, guestID string, userID uuid.UUID) (*models.Cart, error) {
	guest, err := repo.FindByGuest(ctx, guestID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Guest cart not found")
		}
		return nil, err
	}
	if guest.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "Guest cart is empty")
	}

	userCart, err := repo.FindByUser(ctx, userID)
	if err != nil && !db.IsNotFound(err) {
		return nil, err
	}

	if userCart == nil {
		guest.UserID = &userID
		guest.GuestID = nil
		if err := repo.UpdateVersioned(ctx, guest); err != nil {
			return nil, err
		}
		return guest, nil
	}

	for _, line := range guest.Products {
		if idx := userCart.Products.Find(line.ProductID, line.Size, line.Color); idx >= 0 {
			userCart.Products[idx].Quantity += line.Quantity
			continue
		}
		userCart.Products = append(userCart.Products, line)
	}
	userCart.Recalculate()
	if err := repo.UpdateVersioned(ctx, userCart); err != nil {
		return nil, err
	}
	if err := repo.DeleteVersioned(ctx, guest); err != nil {
		return nil, err
	}
	return userCart, nil
}

// PurgeUserCart deletes the user's cart on tx so it commits with the caller's transaction.
func (s *service) PurgeUserCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if _, err := s.repo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart")
	}
	return nil
}

// mutate loads the owner's cart, applies fn and writes it back, retrying on stale versions.
func (s *service) mutate(ctx context.Context, owner Owner, fn func(cart *models.Cart) error) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
	}
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		cart, err := s.repo.FindByOwner(ctx, owner)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if err := fn(cart); err != nil {
			return nil, err
		}
		cart.Recalculate()
		if err := s.repo.UpdateVersioned(ctx, cart); err != nil {
			if errors.Is(err, ErrStaleVersion) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart")
		}
		return cart, nil
	}
	return nil, errConcurrentModification
}

func (s *service) createWithLine(ctx context.Context, owner Owner, product *models.Product, input AddItemInput) (*models.Cart, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	cart := &models.Cart{Products: types.LineItems{snapshotLine(product, input)}}
	if uid := owner.userID(); uid != nil {
		id := *uid
		cart.UserID = &id
	} else {
		guestID := owner.GuestID
		cart.GuestID = &guestID
	}
	cart.Recalculate()
	if err := s.repo.Create(ctx, cart); err != nil {
		if isOwnerRace(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return cart, nil
}

// newGuestID returns guest_<unix millis>, bumped past the last issued value so ids from this
// process never repeat.
func (s *service) newGuestID() string {
	for {
		last := s.lastGuest.Load()
		next := s.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if s.lastGuest.CompareAndSwap(last, next) {
			return guestIDPrefix + strconv.FormatInt(next, 10)
		}
	}
}

func addLine(cart *models.Cart, product *models.Product, input AddItemInput) error {
	if idx := cart.Products.Find(product.ID, input.Size, input.Color); idx >= 0 {
		updated := cart.Products[idx].Quantity + input.Quantity
		if updated < 1 {
			cart.Products = removeAt(cart.Products, idx)
		} else {
			cart.Products[idx].Quantity = updated
		}
		return nil
	}
	if input.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	cart.Products = append(cart.Products, snapshotLine(product, input))
	return nil
}

func snapshotLine(product *models.Product, input AddItemInput) types.LineItem {
	return types.LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		Image:     product.Images.First(),
		Price:     product.Price,
		Size:      input.Size,
		Color:     input.Color,
		Quantity:  input.Quantity,
	}
}

func removeAt(items types.LineItems, idx int) types.LineItems {
	out := make(types.LineItems, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

// isOwnerRace reports a lost race on the one-cart-per-owner unique indexes.
func isOwnerRace(err error) bool {
	return db.IsUniqueViolation(err, "ux_carts_user_id") || db.IsUniqueViolation(err, "ux_carts_guest_id")
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
