package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/dbtest"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/security"
)

var fastArgon = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}

func newUsersService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, fastArgon, logger.Nop())
	require.NoError(t, err)
	return svc, repo
}

func ptr(s string) *string { return &s }

func TestAdminCreateDefaultsToCustomer(t *testing.T) {
	svc, repo := newUsersService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Jane", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleCustomer, created.Role)

	admin, err := svc.Create(ctx, CreateInput{Name: "Root", Email: "root@example.com", Password: "secret1", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, admin.Role)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("secret1", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Create(ctx, CreateInput{Name: "Jane", Email: "jane@example.com", Password: "secret1"})
	assert.Equal(t, "User already exists", pkgerrors.As(err).Message())

	_, err = svc.Create(ctx, CreateInput{Name: "X", Email: "x@example.com", Password: "secret1", Role: "root"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListProfileUpdateDelete(t *testing.T) {
	svc, _ := newUsersService(t)
	ctx := context.Background()

	jane, err := svc.Create(ctx, CreateInput{Name: "Jane", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)
	bob, err := svc.Create(ctx, CreateInput{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	updated, err := svc.Update(ctx, jane.ID, UpdateInput{Name: ptr("Janet"), Role: ptr("admin")})
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.Name)
	assert.Equal(t, enums.RoleAdmin, updated.Role)
	assert.Equal(t, "jane@example.com", updated.Email)

	_, err = svc.Update(ctx, jane.ID, UpdateInput{Email: ptr("BOB@example.com")})
	assert.Equal(t, "User already exists", pkgerrors.As(err).Message())

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Name: ptr("Nobody")})
	assert.Equal(t, "User not found", pkgerrors.As(err).Message())

	require.NoError(t, svc.Delete(ctx, bob.ID))
	_, err = svc.Profile(ctx, bob.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.HasCode(svc.Delete(ctx, bob.ID), pkgerrors.CodeNotFound))
}

func TestFromModelsNeverNil(t *testing.T) {
	assert.NotNil(t, FromModels(nil))
	assert.Equal(t, "a@b.c", NormalizeEmail("  A@B.c "))
}
