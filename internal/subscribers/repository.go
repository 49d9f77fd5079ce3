package subscribers

import (
	"context"

	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/repo"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
)

// Repository persists newsletter subscribers.
type Repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

func (r *Repository) Create(ctx context.Context, sub *models.Subscriber) error {
	return r.base.DB(ctx).Create(sub).Error
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Subscriber{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
