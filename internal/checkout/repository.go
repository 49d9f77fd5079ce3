package checkout

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
var ErrStaleVersion = errors.New("checkout version is stale")

// Repository persists checkout sessions.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a checkout repository bound to the provided DB.
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

func (r *Repository) Create(ctx context.Context, checkout *models.Checkout) error {
	return r.base.DB(ctx).Create(checkout).Error
}

// FindForUser loads the checkout only when userID owns it.
func (r *Repository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Checkout, error) {
	var checkout models.Checkout
	err := r.base.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&checkout).Error
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

// UpdateVersioned applies updates only if the stored version still equals checkout.Version and
// advances the version by one.
func (r *Repository) UpdateVersioned(ctx context.Context, checkout *models.Checkout, updates map[string]any) error {
	now := time.Now().UTC()
	fields := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		fields[k] = v
	}
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = now

	res := r.base.DB(ctx).
		Model(&models.Checkout{}).
		Where("id = ? AND version = ?", checkout.ID, checkout.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	checkout.Version++
	checkout.UpdatedAt = now
	return nil
}

// DeleteAbandonedBefore removes checkouts that were never paid and were opened before cutoff.
func (r *Repository) DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Where("is_paid = ? AND is_finalized = ? AND created_at < ?", false, false, cutoff).
		Delete(&models.Checkout{})
	return res.RowsAffected, res.Error
}
