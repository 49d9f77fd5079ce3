package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/repo"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
)

// ErrStaleVersion is returned when a versioned write matched no row.
var ErrStaleVersion = errors.New("cart version is stale")

// Repository persists carts with optimistic versioning.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{base: r.base.Bind(tx)}
}

// FindByOwner loads the owner's cart. The user id wins when both ids are set.
func (r *Repository) FindByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	if uid := owner.userID(); uid != nil {
		return r.FindByUser(ctx, *uid)
	}
	if owner.GuestID != "" {
		return r.FindByGuest(ctx, owner.GuestID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.base.DB(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *Repository) FindByGuest(ctx context.Context, guestID string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.base.DB(ctx).Where("guest_id = ?", guestID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new cart at version 1.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.base.DB(ctx).Create(cart).Error
}

// UpdateVersioned writes lines, totals and ownership only if the stored version still equals
// cart.Version. On success cart.Version is advanced to the stored value.
func (r *Repository) UpdateVersioned(ctx context.Context, cart *models.Cart) error {
	now := time.Now().UTC()
	res := r.base.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND version = ?", cart.ID, cart.Version).
		Updates(map[string]any{
			"products":    cart.Products,
			"total_price": cart.TotalPrice,
			"user_id":     cart.UserID,
			"guest_id":    cart.GuestID,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	cart.Version++
	cart.UpdatedAt = now
	return nil
}

// DeleteVersioned removes the cart only if nobody wrote to it since it was read.
func (r *Repository) DeleteVersioned(ctx context.Context, cart *models.Cart) error {
	res := r.base.DB(ctx).
		Where("id = ? AND version = ?", cart.ID, cart.Version).
		Delete(&models.Cart{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

// DeleteByUser removes the user's cart, if any.
func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).Where("user_id = ?", userID).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
