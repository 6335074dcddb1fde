package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/denismitr/tenants/internal/database"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const FileExtension = ".sqlite3"

type Options struct {
	database.CommonOptions
}

func NewDefaultOptions() Options {
	return Options{
		CommonOptions: database.CommonOptions{
			MigrationsTable: database.DefaultMigrationsTable,
		},
	}
}

// Driver keeps every tenant in its own database file inside one folder
type Driver struct {
	folder  string
	opts    Options
	dialect *Dialect
}

var _ database.Driver = (*Driver)(nil)

// Open accepts sqlite://path/to/folder or a bare folder path
func Open(dsn string, opts Options) (*Driver, error) {
	folder := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite3://")
	if folder == "" {
		return nil, errors.New("SQLite DSN must point to a folder for tenant databases")
	}

	return New(folder, opts), nil
}

func New(folder string, opts Options) *Driver {
	return &Driver{
		folder:  folder,
		opts:    opts,
		dialect: NewDialect(opts.MigrationsTable),
	}
}

func (d *Driver) Name() string {
	return "sqlite"
}

func (d *Driver) Dialect() database.Dialect {
	return d.dialect
}

// Locker is a no-op, every tenant file is only ever written by one worker
func (d *Driver) Locker(string) database.Locker {
	return database.NullLocker{}
}

// TenantPath is the database file of the tenant
func (d *Driver) TenantPath(tenant string) string {
	return filepath.Join(d.folder, tenant+FileExtension)
}

func (d *Driver) TenantExists(_ context.Context, tenant string) (bool, error) {
	if _, err := os.Stat(d.TenantPath(tenant)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, errors.Wrapf(err, "could not check tenant [%s]", tenant)
	}

	return true, nil
}

// CreateTenant creates an empty file, SQLite treats it as an empty database
func (d *Driver) CreateTenant(_ context.Context, tenant string) error {
	if err := os.MkdirAll(d.folder, 0755); err != nil {
		return errors.Wrapf(err, "could not create folder [%s]", d.folder)
	}

	f, err := os.OpenFile(d.TenantPath(tenant), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(database.ErrTenantAlreadyExists, "[%s]", tenant)
		}

		return errors.Wrapf(err, "tenant [%s]", tenant)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "tenant [%s]", tenant)
	}

	return nil
}

func (d *Driver) DropTenant(_ context.Context, tenant string) error {
	path := d.TenantPath(tenant)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(database.ErrTenantNotFound, "[%s]", tenant)
		}

		return errors.Wrapf(err, "tenant [%s]", tenant)
	}

	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not remove [%s]", path+suffix)
		}
	}

	return nil
}

func (d *Driver) OpenTenant(ctx context.Context, tenant string) (*sqlx.DB, error) {
	exists, err := d.TenantExists(ctx, tenant)
	if err != nil {
		return nil, err
	}

	// sqlite3 would silently create a missing file
	if !exists {
		return nil, errors.Wrapf(database.ErrTenantNotFound, "[%s]", tenant)
	}

	db, err := sqlx.Open("sqlite3", d.TenantPath(tenant)+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "could not open tenant [%s]", tenant)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "could not open tenant [%s]", tenant)
	}

	return db, nil
}

func (d *Driver) ReadSchema(ctx context.Context, q database.Queryer) (*database.Schema, error) {
	type tableRow struct {
		Name string `db:"name"`
		DDL  string `db:"sql"`
	}

	var tables []tableRow
	if err := q.SelectContext(
		ctx,
		&tables,
		"SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
	); err != nil {
		return nil, errors.Wrap(err, "could not list tables")
	}

	schema := &database.Schema{Dialect: d.Name()}

	for _, t := range tables {
		var columns []database.Column
		if err := q.SelectContext(
			ctx,
			&columns,
			`SELECT name, type, "notnull" = 0 AS nullable, dflt_value AS column_default `+
				"FROM pragma_table_info(?) ORDER BY cid",
			t.Name,
		); err != nil {
			return nil, errors.Wrapf(err, "could not read columns of table [%s]", t.Name)
		}

		schema.Tables = append(schema.Tables, database.Table{
			Name:    t.Name,
			DDL:     t.DDL,
			Columns: columns,
		})
	}

	return schema, nil
}

// Close has nothing to release, tenant pools are closed by their callers
func (d *Driver) Close() error {
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
