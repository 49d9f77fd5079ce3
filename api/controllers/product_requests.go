package controllers

import (
	"strings"

	"github.com/shopspring/decimal"

	productsvc "github.com/storefront-labs/storefront-backend/internal/products"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

type createProductRequest struct {
	Name            string               `json:"name" validate:"required"`
	Description     string               `json:"description" validate:"required"`
	Price           decimal.Decimal      `json:"price"`
	DiscountPrice   *decimal.Decimal     `json:"discountPrice,omitempty"`
	CountInStock    int                  `json:"countInStock" validate:"min=0"`
	SKU             string               `json:"sku" validate:"required"`
	Category        string               `json:"category" validate:"required"`
	Brand           string               `json:"brand,omitempty"`
	Sizes           []string             `json:"sizes" validate:"required,min=1,dive,required"`
	Colors          []string             `json:"colors" validate:"required,min=1,dive,required"`
	Collections     string               `json:"collections" validate:"required"`
	Material        string               `json:"material,omitempty"`
	Gender          string               `json:"gender,omitempty"`
	Images          []types.ProductImage `json:"images,omitempty" validate:"omitempty,dive"`
	IsFeatured      bool                 `json:"isFeatured,omitempty"`
	IsPublished     bool                 `json:"isPublished,omitempty"`
	Tags            []string             `json:"tags,omitempty"`
	MetaTitle       string               `json:"metaTitle,omitempty"`
	MetaDescription string               `json:"metaDescription,omitempty"`
	MetaKeywords    string               `json:"metaKeywords,omitempty"`
	Dimensions      *types.Dimensions    `json:"dimensions,omitempty"`
	Weight          *float64             `json:"weight,omitempty" validate:"omitempty,gte=0"`
}

type updateProductRequest struct {
	Name            *string               `json:"name,omitempty"`
	Description     *string               `json:"description,omitempty"`
	Price           *decimal.Decimal      `json:"price,omitempty"`
	DiscountPrice   *decimal.Decimal      `json:"discountPrice,omitempty"`
	CountInStock    *int                  `json:"countInStock,omitempty" validate:"omitempty,min=0"`
	SKU             *string               `json:"sku,omitempty"`
	Category        *string               `json:"category,omitempty"`
	Brand           *string               `json:"brand,omitempty"`
	Sizes           *[]string             `json:"sizes,omitempty"`
	Colors          *[]string             `json:"colors,omitempty"`
	Collections     *string               `json:"collections,omitempty"`
	Material        *string               `json:"material,omitempty"`
	Gender          *string               `json:"gender,omitempty"`
	Images          *[]types.ProductImage `json:"images,omitempty"`
	IsFeatured      *bool                 `json:"isFeatured,omitempty"`
	IsPublished     *bool                 `json:"isPublished,omitempty"`
	Tags            *[]string             `json:"tags,omitempty"`
	MetaTitle       *string               `json:"metaTitle,omitempty"`
	MetaDescription *string               `json:"metaDescription,omitempty"`
	MetaKeywords    *string               `json:"metaKeywords,omitempty"`
	Dimensions      *types.Dimensions     `json:"dimensions,omitempty"`
	Weight          *float64              `json:"weight,omitempty" validate:"omitempty,gte=0"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	gender, err := parseGender(r.Gender)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	return productsvc.CreateProductInput{
		Name:            r.Name,
		Description:     r.Description,
		Price:           r.Price,
		DiscountPrice:   r.DiscountPrice,
		CountInStock:    r.CountInStock,
		SKU:             r.SKU,
		Category:        r.Category,
		Brand:           r.Brand,
		Sizes:           r.Sizes,
		Colors:          r.Colors,
		Collections:     r.Collections,
		Material:        r.Material,
		Gender:          gender,
		Images:          types.ProductImages(r.Images),
		IsFeatured:      r.IsFeatured,
		IsPublished:     r.IsPublished,
		Tags:            r.Tags,
		MetaTitle:       r.MetaTitle,
		MetaDescription: r.MetaDescription,
		MetaKeywords:    r.MetaKeywords,
		Dimensions:      r.Dimensions,
		Weight:          r.Weight,
	}, nil
}

func (r updateProductRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		Name:            r.Name,
		Description:     r.Description,
		Price:           r.Price,
		DiscountPrice:   r.DiscountPrice,
		CountInStock:    r.CountInStock,
		SKU:             r.SKU,
		Category:        r.Category,
		Brand:           r.Brand,
		Sizes:           r.Sizes,
		Colors:          r.Colors,
		Collections:     r.Collections,
		Material:        r.Material,
		IsFeatured:      r.IsFeatured,
		IsPublished:     r.IsPublished,
		Tags:            r.Tags,
		MetaTitle:       r.MetaTitle,
		MetaDescription: r.MetaDescription,
		MetaKeywords:    r.MetaKeywords,
		Dimensions:      r.Dimensions,
		Weight:          r.Weight,
	}
	if r.Gender != nil {
		gender, err := parseGender(*r.Gender)
		if err != nil {
			return input, err
		}
		input.Gender = &gender
	}
	if r.Images != nil {
		images := types.ProductImages(*r.Images)
		input.Images = &images
	}
	return input, nil
}

func parseGender(raw string) (enums.Gender, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	gender, err := enums.ParseGender(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gender")
	}
	return gender, nil
}
