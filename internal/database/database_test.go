package database

import (
	"testing"

	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule(t *testing.T) {
	t.Parallel()

	migrations, err := migration.NewMigrations(
		migration.New(
			1596897167,
			"Create foo table",
			[]string{"CREATE TABLE IF NOT EXISTS foo (id binary(16) PRIMARY KEY)"},
			[]string{"DROP TABLE IF EXISTS foo"},
		),
		migration.New(
			1596899255,
			"Create bar table",
			[]string{"CREATE TABLE IF NOT EXISTS bar (uid binary(16) PRIMARY KEY)"},
			[]string{"DROP TABLE IF EXISTS bar"},
		),
		migration.New(
			1596899399,
			"Create baz table",
			[]string{"CREATE TABLE IF NOT EXISTS baz (uid binary(16) PRIMARY KEY)"},
			[]string{"DROP TABLE IF EXISTS baz"},
		),
	)
	require.NoError(t, err)

	v1 := migration.Version{Value: 1596897167}
	v2 := migration.Version{Value: 1596899255}
	v3 := migration.Version{Value: 1596899399}

	t.Run("it will schedule only 1 migration for rollback if steps are limited to one", func(t *testing.T) {
		scheduled := ScheduleForRollback(migrations, []migration.Version{v1, v2, v3}, Plan{Steps: 1})
		require.Len(t, scheduled, 1)
		assert.Equal(t, v3.Value, scheduled[0].Version.Value)
		assert.Equal(t, "Create baz table", scheduled[0].Name)
	})

	t.Run("it will schedule 1 specific migration for rollback if version is in plan", func(t *testing.T) {
		scheduled := ScheduleForRollback(
			migrations,
			[]migration.Version{v1, v2, v3},
			Plan{Steps: 1, Versions: []migration.Version{v2}},
		)
		require.Len(t, scheduled, 1)
		assert.Equal(t, v2.Value, scheduled[0].Version.Value)
		assert.Equal(t, "Create bar table", scheduled[0].Name)
	})

	t.Run("it will schedule all applied migrations for rollback if plan is empty", func(t *testing.T) {
		scheduled := ScheduleForRollback(migrations, []migration.Version{v1, v2, v3}, Plan{})
		require.Len(t, scheduled, 3)

		assert.Equal(t, []string{
			"1596899399_create_baz_table",
			"1596899255_create_bar_table",
			"1596897167_create_foo_table",
		}, scheduled.Keys())
	})

	t.Run("it will not roll back what was never migrated", func(t *testing.T) {
		scheduled := ScheduleForRollback(migrations, []migration.Version{v1}, Plan{Steps: 2})
		require.Len(t, scheduled, 1)
		assert.Equal(t, v1.Value, scheduled[0].Version.Value)
	})

	t.Run("it will schedule everything for migration if nothing was migrated", func(t *testing.T) {
		scheduled := ScheduleForMigration(migrations, []migration.Version{}, Plan{})
		require.Len(t, scheduled, 3)

		assert.Equal(t, []string{
			"1596897167_create_foo_table",
			"1596899255_create_bar_table",
			"1596899399_create_baz_table",
		}, scheduled.Keys())
	})

	t.Run("it will schedule only 2 migrations if plan steps are limited to 2", func(t *testing.T) {
		scheduled := ScheduleForMigration(migrations, []migration.Version{}, Plan{Steps: 2})
		require.Len(t, scheduled, 2)

		assert.Equal(t, v1.Value, scheduled[0].Version.Value)
		assert.Equal(t, v2.Value, scheduled[1].Version.Value)
	})

	t.Run("it will skip migrated versions", func(t *testing.T) {
		scheduled := ScheduleForMigration(migrations, []migration.Version{v1, v2}, Plan{})
		require.Len(t, scheduled, 1)
		assert.Equal(t, v3.Value, scheduled[0].Version.Value)
	})

	t.Run("it will schedule a single version when it is pending", func(t *testing.T) {
		scheduled := ScheduleForMigration(migrations, []migration.Version{v1}, Plan{Versions: []migration.Version{v3}})
		require.Len(t, scheduled, 1)
		assert.Equal(t, v3.Value, scheduled[0].Version.Value)
	})

	t.Run("it will schedule nothing when the single version is already migrated", func(t *testing.T) {
		scheduled := ScheduleForMigration(migrations, []migration.Version{v1}, Plan{Versions: []migration.Version{v1}})
		assert.Len(t, scheduled, 0)
	})
}

func TestIsRecoverable(t *testing.T) {
	tt := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{name: "not found", err: ErrTenantNotFound, recoverable: true},
		{name: "already exists", err: ErrTenantAlreadyExists, recoverable: true},
		{name: "wrapped not found", err: errors.Wrapf(ErrTenantNotFound, "tenant [%s]", "acme"), recoverable: true},
		{name: "nothing to migrate", err: ErrNoChangesRequired, recoverable: false},
		{name: "other", err: errors.New("connection refused"), recoverable: false},
		{name: "nil", err: nil, recoverable: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.recoverable, IsRecoverable(tc.err))
		})
	}
}

func TestSchema_SortTables(t *testing.T) {
	s := Schema{Tables: []Table{{Name: "users"}, {Name: "accounts"}, {Name: "schema_migrations"}}}
	s.SortTables()

	assert.Equal(t, "accounts", s.Tables[0].Name)
	assert.Equal(t, "schema_migrations", s.Tables[1].Name)
	assert.Equal(t, "users", s.Tables[2].Name)
	require.NotNil(t, s.Table("users"))
	assert.Nil(t, s.Table("missing"))
}
