package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir(EmbeddedDir))
	require.NoError(t, ValidateDir("migrations"))
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Embedded(), "*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := fs.ReadFile(Embedded(), matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestCartMigrationEnforcesSingleOwner(t *testing.T) {
	content := readMigration(t, "create_carts")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS carts",
		"CHECK ((user_id IS NULL) <> (guest_id IS NULL))",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_user_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_guest_id",
		"version integer NOT NULL DEFAULT 1",
		"DROP TABLE IF EXISTS carts",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestOrdersMigrationGuardsDuplicateFinalize(t *testing.T) {
	content := readMigration(t, "create_checkouts_and_orders")
	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_checkout_id",
		"CHECK (NOT is_finalized OR is_paid)",
		"CHECK (payment_status IN ('Pending', 'paid', 'Failed'))",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestValidateFSRejectsBadInput(t *testing.T) {
	err := ValidateFS(fstest.MapFS{"001_bad.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}})
	assert.ErrorContains(t, err, "invalid migration filename")

	err = ValidateFS(fstest.MapFS{"20260101000000_x.sql": {Data: []byte("SELECT 1;")}})
	assert.ErrorContains(t, err, "missing")

	err = ValidateFS(fstest.MapFS{
		"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	})
	assert.ErrorContains(t, err, "duplicate migration version")

	assert.ErrorContains(t, ValidateFS(fstest.MapFS{}), "no migrations found")
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Product Tags!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_product_tags.sql"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +goose Up")
	assert.Contains(t, string(data), "-- +goose Down")
	require.NoError(t, ValidateDir(filepath.Dir(path)))

	_, err = CreateSQLMigration(dir, "  !!! ")
	assert.Error(t, err)
}
