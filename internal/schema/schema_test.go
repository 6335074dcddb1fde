package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func prepareTenant(t *testing.T) *sqlite.Driver {
	t.Helper()

	ctx := context.Background()
	driver := sqlite.New(t.TempDir(), sqlite.NewDefaultOptions())
	require.NoError(t, driver.CreateTenant(ctx, "acme"))

	db, err := driver.OpenTenant(ctx, "acme")
	require.NoError(t, err)
	defer db.Close()

	for _, q := range []string{
		driver.Dialect().InitQuery(),
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner_id INTEGER)",
		"INSERT INTO schema_migrations (version, name) VALUES (1596897167, 'create users')",
		"INSERT INTO schema_migrations (version, name) VALUES (1596897188, 'create accounts')",
	} {
		_, err := db.ExecContext(ctx, q)
		require.NoError(t, err)
	}

	return driver
}

func TestOptions_Normalize(t *testing.T) {
	o, err := Options{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, FormatSQL, o.Format)
	assert.Equal(t, DefaultSQLFile, o.File)

	o, err = Options{Format: FormatYAML}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultYAMLFile, o.File)

	_, err = Options{Format: "xml"}.Normalize()
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestReference(t *testing.T) {
	assert.Equal(t, "main", Reference("main", []string{"acme"}))
	assert.Equal(t, "acme", Reference("", []string{"acme", "beta"}))
	assert.Equal(t, "", Reference("", nil))
}

func TestDumper_SQL(t *testing.T) {
	driver := prepareTenant(t)
	file := filepath.Join(t.TempDir(), "db", "structure.sql")

	d, err := New(driver, Options{File: file}, nil)
	require.NoError(t, err)

	require.NoError(t, d.Dump(context.Background(), "acme"))

	contents, err := os.ReadFile(file)
	require.NoError(t, err)
	dump := string(contents)

	assert.True(t, strings.HasPrefix(dump, "-- structure of tenant acme\n-- dialect: sqlite\n"))
	assert.Contains(t, dump, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")
	assert.Contains(t, dump, "INSERT INTO schema_migrations (version) VALUES (1596897167);\n")
	assert.Contains(t, dump, "INSERT INTO schema_migrations (version) VALUES (1596897188);\n")
	assert.Less(t, strings.Index(dump, "CREATE TABLE accounts"), strings.Index(dump, "CREATE TABLE users"))

	t.Run("dumping twice rewrites the file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(file, []byte("stale"), 0644))
		require.NoError(t, d.Dump(context.Background(), "acme"))
		require.NoError(t, d.Dump(context.Background(), "acme"))

		again, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, dump, string(again))

		entries, err := os.ReadDir(filepath.Dir(file))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temporary files are left behind")
	})
}

func TestDumper_YAML(t *testing.T) {
	driver := prepareTenant(t)
	file := filepath.Join(t.TempDir(), "schema.yaml")

	d, err := New(driver, Options{Format: FormatYAML, File: file}, nil)
	require.NoError(t, err)
	require.NoError(t, d.Dump(context.Background(), "acme"))

	contents, err := os.ReadFile(file)
	require.NoError(t, err)

	var dump yamlDump
	require.NoError(t, yaml.Unmarshal(contents, &dump))

	assert.Equal(t, "sqlite", dump.Dialect)
	assert.Equal(t, []uint64{1596897167, 1596897188}, dump.Versions)
	require.Len(t, dump.Tables, 3)
	assert.Equal(t, "accounts", dump.Tables[0].Name)
	assert.Equal(t, "schema_migrations", dump.Tables[1].Name)
	assert.Equal(t, "users", dump.Tables[2].Name)
	assert.Equal(t, "name", dump.Tables[2].Columns[1].Name)
	assert.False(t, dump.Tables[2].Columns[1].Nullable)
}

func TestDumper_MissingTenant(t *testing.T) {
	driver := sqlite.New(t.TempDir(), sqlite.NewDefaultOptions())
	file := filepath.Join(t.TempDir(), "structure.sql")

	d, err := New(driver, Options{File: file}, nil)
	require.NoError(t, err)

	err = d.Dump(context.Background(), "ghost")
	assert.True(t, errors.Is(err, database.ErrTenantNotFound))
	assert.NoFileExists(t, file)

	t.Run("no reference tenant", func(t *testing.T) {
		require.NoError(t, d.Dump(context.Background(), ""))
		assert.NoFileExists(t, file)
	})
}

func TestRenderSQL_NoVersions(t *testing.T) {
	out, err := RenderSQL(&database.Schema{
		Dialect:  "mysql",
		Tables:   []database.Table{{Name: "a", DDL: "CREATE TABLE `a` (`id` int);"}},
		Versions: []migration.Version{},
	}, "acme", "schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, "-- structure of tenant acme\n-- dialect: mysql\n\nCREATE TABLE `a` (`id` int);\n", string(out))
}
