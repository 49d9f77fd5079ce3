package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

// Service exposes catalog reads and admin product management.
type Service interface {
	List(ctx context.Context, filters ListFilters) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	BestSeller(ctx context.Context) (*models.Product, error)
	NewArrivals(ctx context.Context) ([]models.Product, error)
	Similar(ctx context.Context, id uuid.UUID) ([]models.Product, error)
	AdminList(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name            string
	Description     string
	Price           decimal.Decimal
	DiscountPrice   *decimal.Decimal
	CountInStock    int
	SKU             string
	Category        string
	Brand           string
	Sizes           []string
	Colors          []string
	Collections     string
	Material        string
	Gender          enums.Gender
	Images          types.ProductImages
	IsFeatured      bool
	IsPublished     bool
	Tags            []string
	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	Dimensions      *types.Dimensions
	Weight          *float64
}

// UpdateProductInput holds optional replacement values; nil fields keep the stored value.
type UpdateProductInput struct {
	Name            *string
	Description     *string
	Price           *decimal.Decimal
	DiscountPrice   *decimal.Decimal
	CountInStock    *int
	SKU             *string
	Category        *string
	Brand           *string
	Sizes           *[]string
	Colors          *[]string
	Collections     *string
	Material        *string
	Gender          *enums.Gender
	Images          *types.ProductImages
	IsFeatured      *bool
	IsPublished     *bool
	Tags            *[]string
	MetaTitle       *string
	MetaDescription *string
	MetaKeywords    *string
	Dimensions      *types.Dimensions
	Weight          *float64
}

type service struct {
	repo  *Repository
	cache Cache
	logg  *logger.Logger
	sfg   singleflight.Group
}

// NewService constructs a product service. cache may be nil, in which case reads go straight to the DB.
func NewService(repo *Repository, cache Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:  repo,
		cache: cache,
		logg:  logg,
	}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]models.Product, error) {
	normalized, err := filters.Normalize()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return rows, nil
}

// Get reads through the cache. Concurrent misses for one id share a single DB read.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	v, err, _ := s.sfg.Do(id.String(), func() (interface{}, error) {
		if s.cache != nil {
			cached, err := s.cache.Get(ctx, id)
			if err == nil {
				return cached, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product cache read failed")
			}
		}

		product, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, product); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product cache write failed")
			}
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	product := *v.(*models.Product)
	return &product, nil
}

func (s *service) BestSeller(ctx context.Context) (*models.Product, error) {
	product, err := s.repo.TopRated(ctx)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No best sellers found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load best seller")
	}
	return product, nil
}

func (s *service) NewArrivals(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.Latest(ctx, NewArrivalsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load new arrivals")
	}
	return rows, nil
}

func (s *service) Similar(ctx context.Context, id uuid.UUID) ([]models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Similar(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load similar products")
	}
	return rows, nil
}

func (s *service) AdminList(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return rows, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*models.Product, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	owner := userID
	product := &models.Product{
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		Price:           input.Price,
		DiscountPrice:   input.DiscountPrice,
		CountInStock:    input.CountInStock,
		SKU:             strings.TrimSpace(input.SKU),
		Category:        strings.TrimSpace(input.Category),
		Brand:           strings.TrimSpace(input.Brand),
		Sizes:           copyStrings(input.Sizes),
		Colors:          copyStrings(input.Colors),
		Collections:     strings.TrimSpace(input.Collections),
		Material:        strings.TrimSpace(input.Material),
		Gender:          input.Gender,
		Images:          append(types.ProductImages{}, input.Images...),
		IsFeatured:      input.IsFeatured,
		IsPublished:     input.IsPublished,
		Tags:            copyStrings(input.Tags),
		UserID:          &owner,
		MetaTitle:       input.MetaTitle,
		MetaDescription: input.MetaDescription,
		MetaKeywords:    input.MetaKeywords,
		Dimensions:      input.Dimensions,
		Weight:          input.Weight,
	}
	if product.MetaTitle == "" {
		product.MetaTitle = product.Name
	}
	if product.MetaDescription == "" {
		product.MetaDescription = product.Description
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, translateWriteError(err, "create product")
	}
	return product, nil
}

// Update replaces only the fields present in input.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(product, input)
	if err := validateStored(product); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, translateWriteError(err, "update product")
	}
	s.invalidate(ctx, id)
	return product, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if n == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product cache invalidation failed")
	}
}

func translateWriteError(err error, action string) error {
	if db.IsUniqueViolation(err, "ux_products_sku") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "SKU already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func validateCreate(input CreateProductInput) error {
	missing := []string{}
	if strings.TrimSpace(input.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(input.SKU) == "" {
		missing = append(missing, "sku")
	}
	if strings.TrimSpace(input.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(input.Collections) == "" {
		missing = append(missing, "collections")
	}
	if len(input.Sizes) == 0 {
		missing = append(missing, "sizes")
	}
	if len(input.Colors) == 0 {
		missing = append(missing, "colors")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required product fields").
			WithDetails(map[string]any{"fields": missing})
	}
	return validatePricing(input.Price, input.DiscountPrice, input.CountInStock, input.Gender)
}

func validateStored(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.SKU) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and sku cannot be blank")
	}
	return validatePricing(p.Price, p.DiscountPrice, p.CountInStock, p.Gender)
}

func validatePricing(price decimal.Decimal, discount *decimal.Decimal, stock int, gender enums.Gender) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if discount != nil && (discount.IsNegative() || discount.GreaterThan(price)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discountPrice must be between 0 and price")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "countInStock cannot be negative")
	}
	if gender != "" && !gender.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
	}
	return nil
}

func applyUpdate(p *models.Product, in UpdateProductInput) {
	setString(&p.Name, in.Name)
	setString(&p.Description, in.Description)
	setString(&p.SKU, in.SKU)
	setString(&p.Category, in.Category)
	setString(&p.Brand, in.Brand)
	setString(&p.Collections, in.Collections)
	setString(&p.Material, in.Material)
	setString(&p.MetaTitle, in.MetaTitle)
	setString(&p.MetaDescription, in.MetaDescription)
	setString(&p.MetaKeywords, in.MetaKeywords)
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.DiscountPrice != nil {
		v := *in.DiscountPrice
		p.DiscountPrice = &v
	}
	if in.CountInStock != nil {
		p.CountInStock = *in.CountInStock
	}
	if in.Sizes != nil {
		p.Sizes = copyStrings(*in.Sizes)
	}
	if in.Colors != nil {
		p.Colors = copyStrings(*in.Colors)
	}
	if in.Tags != nil {
		p.Tags = copyStrings(*in.Tags)
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.Images != nil {
		p.Images = append(types.ProductImages{}, (*in.Images)...)
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	if in.IsPublished != nil {
		p.IsPublished = *in.IsPublished
	}
	if in.Dimensions != nil {
		d := *in.Dimensions
		p.Dimensions = &d
	}
	if in.Weight != nil {
		w := *in.Weight
		p.Weight = &w
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func copyStrings(in []string) types.StringList {
	out := make(types.StringList, 0, len(in))
	for _, v := range in {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
