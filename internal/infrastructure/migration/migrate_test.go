package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMigrationsPath(t *testing.T) {
	t.Run("finds repository migrations from this package", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)

		path := FindMigrationsPath(wd)
		require.NotEmpty(t, path)

		migrations, err := ListMigrations(path)
		require.NoError(t, err)
		assert.Contains(t, migrations, "000001_create_valuation_tables")
	})

	t.Run("walks up parent directories", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, "migrations"), 0o755))
		deep := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(deep, 0o755))

		assert.Equal(t, filepath.Join(root, "migrations"), FindMigrationsPath(deep))
	})

	t.Run("returns empty when absent", func(t *testing.T) {
		deep := filepath.Join(t.TempDir(), "a", "b", "c", "d", "e", "f")
		require.NoError(t, os.MkdirAll(deep, 0o755))

		assert.Empty(t, FindMigrationsPath(deep))
	})
}
