package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

// Product is a catalog entry.
type Product struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string              `gorm:"column:name;not null" json:"name"`
	Description     string              `gorm:"column:description;not null" json:"description"`
	Price           decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	DiscountPrice   *decimal.Decimal    `gorm:"column:discount_price;type:numeric(12,2)" json:"discountPrice,omitempty"`
	CountInStock    int                 `gorm:"column:count_in_stock;not null;default:0" json:"countInStock"`
	SKU             string              `gorm:"column:sku;not null;uniqueIndex:ux_products_sku" json:"sku"`
	Category        string              `gorm:"column:category;not null;index" json:"category"`
	Brand           string              `gorm:"column:brand" json:"brand,omitempty"`
	Sizes           types.StringList    `gorm:"column:sizes;type:jsonb;not null" json:"sizes"`
	Colors          types.StringList    `gorm:"column:colors;type:jsonb;not null" json:"colors"`
	Collections     string              `gorm:"column:collections;not null" json:"collections"`
	Material        string              `gorm:"column:material" json:"material,omitempty"`
	Gender          enums.Gender        `gorm:"column:gender;type:text" json:"gender,omitempty"`
	Images          types.ProductImages `gorm:"column:images;type:jsonb;not null" json:"images"`
	IsFeatured      bool                `gorm:"column:is_featured;not null;default:false" json:"isFeatured"`
	IsPublished     bool                `gorm:"column:is_published;not null;default:false" json:"isPublished"`
	Rating          float64             `gorm:"column:rating;not null;default:0" json:"rating"`
	NumReviews      int                 `gorm:"column:num_reviews;not null;default:0" json:"numReviews"`
	Tags            types.StringList    `gorm:"column:tags;type:jsonb;not null" json:"tags"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid" json:"user,omitempty"`
	MetaTitle       string              `gorm:"column:meta_title" json:"metaTitle,omitempty"`
	MetaDescription string              `gorm:"column:meta_description" json:"metaDescription,omitempty"`
	MetaKeywords    string              `gorm:"column:meta_keywords" json:"metaKeywords,omitempty"`
	Dimensions      *types.Dimensions   `gorm:"column:dimensions;type:jsonb" json:"dimensions,omitempty"`
	Weight          *float64            `gorm:"column:weight" json:"weight,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
