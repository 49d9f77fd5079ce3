package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/repo"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
)

// Repository wires together product persistence helpers.
type Repository struct {
	base repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// FindByID loads a single product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Create(product).Error
}

// Save persists every column of an existing product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Save(product).Error
}

// Delete removes a product by ID and reports how many rows went away.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

// List applies the catalog filters. Filters must already be normalized.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]models.Product, error) {
	q := r.base.DB(ctx).Model(&models.Product{})

	if f.Collection != "" {
		q = q.Where("collections = ?", f.Collection)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if len(f.Materials) > 0 {
		q = q.Where("material IN ?", f.Materials)
	}
	if len(f.Brands) > 0 {
		q = q.Where("brand IN ?", f.Brands)
	}
	if len(f.Sizes) > 0 {
		q = q.Where(r.jsonOverlap("sizes"), f.Sizes)
	}
	if len(f.Colors) > 0 {
		q = q.Where(r.jsonOverlap("colors"), f.Colors)
	}
	if f.Gender != "" {
		q = q.Where("gender = ?", f.Gender)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	switch f.SortBy {
	case SortPriceAsc:
		q = q.Order("price ASC")
	case SortPriceDesc:
		q = q.Order("price DESC")
	case SortPopularity:
		q = q.Order("rating DESC")
	}
	q = q.Order("created_at ASC").Order("id ASC")

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []models.Product
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TopRated returns the single highest rated product.
func (r *Repository) TopRated(ctx context.Context) (*models.Product, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Order("rating DESC").
		Order("num_reviews DESC").
		Order("created_at ASC").
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Latest returns the newest products first.
func (r *Repository) Latest(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.base.DB(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Similar lists products sharing gender and category with p, excluding p itself.
func (r *Repository) Similar(ctx context.Context, p *models.Product) ([]models.Product, error) {
	var rows []models.Product
	err := r.base.DB(ctx).
		Where("id <> ?", p.ID).
		Where("gender = ?", p.Gender).
		Where("category = ?", p.Category).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListAll returns the whole catalog, newest first, published or not.
func (r *Repository) ListAll(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.base.DB(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// jsonOverlap matches rows whose JSON string array shares at least one value with the bound list.
// column is always a literal from this file.
func (r *Repository) jsonOverlap(column string) string {
	if r.base.Dialect() == "postgres" {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements_text(products.%s) AS elem(v) WHERE elem.v IN ?)", column)
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(products.%s) WHERE json_each.value IN ?)", column)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
