package sqlgateway

import (
	"context"
	"testing"
	"time"

	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/tenants/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMigrations(t *testing.T) migration.Migrations {
	t.Helper()

	ms, err := migration.NewMigrations(
		migration.New(
			1,
			"create users",
			[]string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"},
			[]string{"DROP TABLE users"},
		),
		migration.New(
			2,
			"create posts",
			[]string{"CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)"},
			[]string{"DROP TABLE posts"},
		),
		migration.New(
			3,
			"add email",
			[]string{"ALTER TABLE users ADD COLUMN email TEXT"},
			nil,
		),
	)
	require.NoError(t, err)

	return ms
}

func openTenant(t *testing.T, tenant string) (*SQLGateway, *sqlx.DB) {
	t.Helper()

	ctx := context.Background()
	driver := sqlite.New(t.TempDir(), sqlite.NewDefaultOptions())
	require.NoError(t, driver.CreateTenant(ctx, tenant))

	db, err := driver.OpenTenant(ctx, tenant)
	require.NoError(t, err)

	conn, err := NewRetryingConnector(&ConnectOptions{
		MaxAttempts: 2,
		MaxTimeout:  5 * time.Second,
		RetryStep:   10 * time.Millisecond,
	}).Connect(ctx, db)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})

	return New(tenant, conn, driver.Dialect(), driver.Locker(tenant), nil), db
}

func versionValues(vs []migration.Version) []uint64 {
	result := make([]uint64, len(vs))
	for i := range vs {
		result[i] = vs[i].Value
	}
	return result
}

func TestSQLGateway_Migrate(t *testing.T) {
	ctx := context.Background()

	t.Run("all pending migrations are applied in order", func(t *testing.T) {
		g, _ := openTenant(t, "acme")
		ms := testMigrations(t)

		migrated, err := g.Migrate(ctx, ms, database.Plan{})
		require.NoError(t, err)
		assert.Equal(t, []string{"1_create_users", "2_create_posts", "3_add_email"}, migrated.Keys())

		versions, err := g.ReadVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3}, versionValues(versions))

		for _, v := range versions {
			assert.False(t, v.MigratedAt.IsZero())
		}

		for _, m := range ms {
			assert.True(t, m.Version.MigratedAt.IsZero(), "shared migrations must stay untouched")
		}
	})

	t.Run("steps limit the number of applied migrations", func(t *testing.T) {
		g, _ := openTenant(t, "acme")
		ms := testMigrations(t)

		migrated, err := g.Migrate(ctx, ms, database.Plan{Steps: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"1_create_users", "2_create_posts"}, migrated.Keys())

		migrated, err = g.Migrate(ctx, ms, database.Plan{})
		require.NoError(t, err)
		assert.Equal(t, []string{"3_add_email"}, migrated.Keys())
	})

	t.Run("nothing pending yields no changes required", func(t *testing.T) {
		g, _ := openTenant(t, "acme")
		ms := testMigrations(t)

		_, err := g.Migrate(ctx, ms, database.Plan{})
		require.NoError(t, err)

		migrated, err := g.Migrate(ctx, ms, database.Plan{})
		assert.True(t, errors.Is(err, database.ErrNoChangesRequired))
		assert.Nil(t, migrated)
	})

	t.Run("failed script rolls back the whole run", func(t *testing.T) {
		g, db := openTenant(t, "acme")
		ms := testMigrations(t)

		broken, err := migration.New(4, "broken", []string{"CREATE TABLE nope ("}, nil)()
		require.NoError(t, err)
		ms = append(ms, broken)

		_, err = g.Migrate(ctx, ms, database.Plan{})
		require.Error(t, err)

		versions, err := g.ReadVersions(ctx)
		require.NoError(t, err)
		assert.Empty(t, versions)

		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'users'"))
		assert.Equal(t, 0, count)
	})
}

func TestSQLGateway_Rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls back latest migration first", func(t *testing.T) {
		g, _ := openTenant(t, "beta")
		ms := testMigrations(t)

		_, err := g.Migrate(ctx, ms, database.Plan{Steps: 2})
		require.NoError(t, err)

		rolledBack, err := g.Rollback(ctx, ms, database.Plan{Steps: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"2_create_posts"}, rolledBack.Keys())

		versions, err := g.ReadVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, versionValues(versions))
	})

	t.Run("specific version", func(t *testing.T) {
		g, _ := openTenant(t, "beta")
		ms := testMigrations(t)

		_, err := g.Migrate(ctx, ms, database.Plan{})
		require.NoError(t, err)

		rolledBack, err := g.Rollback(ctx, ms, database.Plan{Versions: []migration.Version{{Value: 3}}})
		require.NoError(t, err)
		assert.Equal(t, []string{"3_add_email"}, rolledBack.Keys())

		versions, err := g.ReadVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, versionValues(versions))
	})

	t.Run("nothing applied yields no changes required", func(t *testing.T) {
		g, _ := openTenant(t, "beta")

		_, err := g.Rollback(ctx, testMigrations(t), database.Plan{Steps: 1})
		assert.True(t, errors.Is(err, database.ErrNoChangesRequired))
	})
}

func TestSQLGateway_Seed(t *testing.T) {
	ctx := context.Background()

	t.Run("statements are executed", func(t *testing.T) {
		g, db := openTenant(t, "acme")

		_, err := g.Migrate(ctx, testMigrations(t), database.Plan{Steps: 1})
		require.NoError(t, err)

		require.NoError(t, g.Seed(ctx, []string{
			"INSERT INTO users (name) VALUES ('alice')",
			"INSERT INTO users (name) VALUES ('bob')",
		}))

		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"))
		assert.Equal(t, 2, count)
	})

	t.Run("failure leaves no rows behind", func(t *testing.T) {
		g, db := openTenant(t, "acme")

		_, err := g.Migrate(ctx, testMigrations(t), database.Plan{Steps: 1})
		require.NoError(t, err)

		err = g.Seed(ctx, []string{
			"INSERT INTO users (name) VALUES ('alice')",
			"INSERT INTO missing (name) VALUES ('bob')",
		})
		require.Error(t, err)

		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"))
		assert.Equal(t, 0, count)
	})
}

func TestReadVersions(t *testing.T) {
	ctx := context.Background()
	g, db := openTenant(t, "gamma")

	versions, err := ReadVersions(ctx, db, g.dialect)
	require.NoError(t, err)
	assert.Empty(t, versions)

	require.NoError(t, g.DropMigrationsTable(ctx))
}
