package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/users"
	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

const (
	adminName     = "Admin User"
	adminEmail    = "bmalkes@gmail.com"
	adminPassword = "123456"
)

type seedResult struct {
	Admin    *users.UserDTO
	Products int
	Cart     *models.Cart
}

// seed wipes products, users and carts, then inserts the admin account, the sample catalog owned
// by the admin, and a cart holding the first two sample products.
func seed(ctx context.Context, conn *gorm.DB, passwordCfg config.PasswordConfig, logg *logger.Logger) (*seedResult, error) {
	result := &seedResult{}
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := wipe(tx); err != nil {
			return err
		}

		admin, err := users.CreateAccount(ctx, users.NewRepository(tx), passwordCfg, users.CreateUserDTO{
			Name:  adminName,
			Email: adminEmail,
			Role:  enums.RoleAdmin,
		}, adminPassword)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		result.Admin = admin

		catalog := sampleProducts()
		for i := range catalog {
			catalog[i].UserID = &admin.ID
		}
		if err := tx.Create(&catalog).Error; err != nil {
			return fmt.Errorf("insert products: %w", err)
		}
		result.Products = len(catalog)

		cart := sampleCart(admin, catalog)
		if err := tx.Create(cart).Error; err != nil {
			return fmt.Errorf("insert cart: %w", err)
		}
		result.Cart = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logg.WithFields(ctx, map[string]any{"products": result.Products, "admin": result.Admin.Email})
	logg.Info(ctx, "seed.completed")
	return result, nil
}

func wipe(tx *gorm.DB) error {
	all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	var err error
	for _, model := range []any{&models.Cart{}, &models.Product{}, &models.User{}} {
		err = multierr.Append(err, all.Delete(model).Error)
	}
	if err != nil {
		return fmt.Errorf("wipe: %w", err)
	}
	return nil
}

func sampleCart(owner *users.UserDTO, catalog []models.Product) *models.Cart {
	cart := &models.Cart{UserID: &owner.ID, Products: types.LineItems{}, TotalPrice: decimal.Zero}
	for _, p := range catalog[:min(2, len(catalog))] {
		line := types.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Images.First(),
			Price:     p.Price,
			Quantity:  1,
		}
		if len(p.Sizes) > 0 {
			line.Size = p.Sizes[0]
		}
		if len(p.Colors) > 0 {
			line.Color = p.Colors[0]
		}
		cart.Products = append(cart.Products, line)
		cart.TotalPrice = cart.TotalPrice.Add(line.Subtotal())
	}
	return cart
}
