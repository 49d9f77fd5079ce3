package main

import (
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

type sample struct {
	name, description, sku, category, brand, collection, material string
	price, discount                                                int64
	stock                                                          int
	gender                                                         enums.Gender
	sizes, colors, tags                                            []string
	rating                                                         float64
	reviews                                                        int
	featured                                                       bool
}

var samples = []sample{
	{
		name: "Classic Oxford Button-Down Shirt", description: "A timeless oxford shirt with a button-down collar.",
		sku: "OX-SH-001", category: "Top Wear", brand: "Urban Threads", collection: "Business Casual", material: "Cotton",
		price: 40, discount: 35, stock: 20, gender: enums.GenderMen,
		sizes: []string{"S", "M", "L", "XL", "XXL"}, colors: []string{"Red", "Blue", "Yellow"}, tags: []string{"shirt", "oxford"},
		rating: 4.5, reviews: 12, featured: true,
	},
	{
		name: "Slim-Fit Stretch Shirt", description: "A slim-fit shirt with a touch of stretch for all-day comfort.",
		sku: "SLIM-SH-002", category: "Top Wear", brand: "Modern Fit", collection: "Casual Collection", material: "Cotton Blend",
		price: 50, discount: 45, stock: 35, gender: enums.GenderMen,
		sizes: []string{"S", "M", "L", "XL"}, colors: []string{"White", "Black", "Navy"}, tags: []string{"shirt", "slim-fit"},
		rating: 4.8, reviews: 15,
	},
	{
		name: "Casual Denim Shirt", description: "A washed denim shirt with snap buttons.",
		sku: "CAS-DEN-003", category: "Top Wear", brand: "Street Style", collection: "Casual Collection", material: "Denim",
		price: 60, discount: 55, stock: 15, gender: enums.GenderMen,
		sizes: []string{"M", "L", "XL"}, colors: []string{"Light Blue", "Dark Wash"}, tags: []string{"shirt", "denim"},
		rating: 4.6, reviews: 8,
	},
	{
		name: "Slim Fit Joggers", description: "Tapered joggers with an elastic waistband.",
		sku: "JOG-BW-004", category: "Bottom Wear", brand: "ActiveWear", collection: "Casual Collection", material: "Polyester",
		price: 45, stock: 30, gender: enums.GenderMen,
		sizes: []string{"S", "M", "L", "XL"}, colors: []string{"Black", "Gray"}, tags: []string{"joggers"},
		rating: 4.3, reviews: 20,
	},
	{
		name: "Knitted Cropped Top", description: "A fitted knit top with a cropped length.",
		sku: "KNIT-TOP-005", category: "Top Wear", brand: "Chic Knits", collection: "Knitwear Collection", material: "Wool Blend",
		price: 40, discount: 35, stock: 25, gender: enums.GenderWomen,
		sizes: []string{"XS", "S", "M", "L"}, colors: []string{"Beige", "White", "Pink"}, tags: []string{"knit", "crop"},
		rating: 4.7, reviews: 14, featured: true,
	},
	{
		name: "High-Waist Skinny Jeans", description: "Stretch skinny jeans with a high-rise waist.",
		sku: "HW-SKJ-006", category: "Bottom Wear", brand: "DenimCo", collection: "Denim Collection", material: "Denim",
		price: 70, discount: 65, stock: 40, gender: enums.GenderWomen,
		sizes: []string{"XS", "S", "M", "L", "XL"}, colors: []string{"Dark Blue", "Black", "Light Blue"}, tags: []string{"jeans"},
		rating: 4.5, reviews: 25,
	},
	{
		name: "Pleated Midi Skirt", description: "A flowing pleated skirt in midi length.",
		sku: "PMS-BW-007", category: "Bottom Wear", brand: "Elegance", collection: "Spring Collection", material: "Polyester",
		price: 55, stock: 20, gender: enums.GenderWomen,
		sizes: []string{"S", "M", "L"}, colors: []string{"Navy", "Black", "Burgundy"}, tags: []string{"skirt"},
		rating: 4.6, reviews: 9,
	},
	{
		name: "Everyday Crew Tee", description: "A relaxed crew neck tee for every day.",
		sku: "TEE-UNI-008", category: "Top Wear", brand: "Basics", collection: "Essentials", material: "Cotton",
		price: 20, stock: 100, gender: enums.GenderUnisex,
		sizes: []string{"S", "M", "L", "XL"}, colors: []string{"White", "Black", "Gray"}, tags: []string{"tee", "basics"},
		rating: 4.2, reviews: 40,
	},
}

func sampleProducts() []models.Product {
	out := make([]models.Product, 0, len(samples))
	for _, s := range samples {
		p := models.Product{
			Name:         s.name,
			Description:  s.description,
			Price:        decimal.NewFromInt(s.price),
			CountInStock: s.stock,
			SKU:          s.sku,
			Category:     s.category,
			Brand:        s.brand,
			Sizes:        types.StringList(s.sizes),
			Colors:       types.StringList(s.colors),
			Collections:  s.collection,
			Material:     s.material,
			Gender:       s.gender,
			Images: types.ProductImages{{
				URL:     "https://picsum.photos/seed/" + s.sku + "/500/500",
				AltText: s.name,
			}},
			IsFeatured:  s.featured,
			IsPublished: true,
			Rating:      s.rating,
			NumReviews:  s.reviews,
			Tags:        types.StringList(s.tags),
		}
		if s.discount > 0 {
			d := decimal.NewFromInt(s.discount)
			p.DiscountPrice = &d
		}
		out = append(out, p)
	}
	return out
}
