package postgres_test

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/rollflow/internal/storage/postgres"
	"github.com/cory-johannsen/rollflow/internal/testutil"
)

func TestMigrations_UpAndDownPaired(t *testing.T) {
	ups, err := fs.Glob(postgres.Migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(postgres.Migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	data, err := postgres.Migrations.ReadFile("migrations/000001_workflow_states.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "workflow_states")
}

func TestMigrate_InvalidArguments(t *testing.T) {
	_, err := postgres.Migrate("postgres://unused", postgres.Direction("sideways"), 0)
	assert.Error(t, err)

	_, err = postgres.Migrate("postgres://unused", postgres.Up, -1)
	assert.ErrorContains(t, err, "invalid steps")
}

func TestMigrate_UpDownAgainstContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)

	res, err := postgres.Migrate(pc.DSN(), postgres.Up, 0)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, uint(1), res.Version)
	assert.False(t, res.Dirty)

	res, err = postgres.Migrate(pc.DSN(), postgres.Up, 0)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = postgres.Migrate(pc.DSN(), postgres.Down, 1)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}
