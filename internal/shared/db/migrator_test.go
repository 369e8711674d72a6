package db_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds-poc/internal/shared/db"
	"github.com/radieske/updown-rounds-poc/migrations"
)

func TestListMigrations_SortedBySuffix(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_wagers.up.sql":   {Data: []byte("SELECT 1")},
		"000001_init.up.sql":     {Data: []byte("SELECT 1")},
		"000001_init.down.sql":   {Data: []byte("SELECT 1")},
		"000002_wagers.down.sql": {Data: []byte("SELECT 1")},
		"README.md":              {Data: []byte("-")},
	}

	ups, err := db.ListMigrations(fsys, ".up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init.up.sql", "000002_wagers.up.sql"}, ups)

	downs, err := db.ListMigrations(fsys, ".down.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init.down.sql", "000002_wagers.down.sql"}, downs)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "000001", db.Version("000001_init.up.sql"))
	assert.Equal(t, "nounderscore.sql", db.Version("nounderscore.sql"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := db.ListMigrations(migrations.FS, ".up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	downs, err := db.ListMigrations(migrations.FS, ".down.sql")
	require.NoError(t, err)
	require.Len(t, downs, len(ups))
	for i := range ups {
		assert.Equal(t, db.Version(ups[i]), db.Version(downs[i]))
	}
}
