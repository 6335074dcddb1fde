package postgres

import (
	"bytes"
	"context"
	"strings"

	"github.com/denismitr/tenants/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	codeDuplicateSchema   = "42P06"
	codeInvalidSchemaName = "3F000"
)

type Options struct {
	database.CommonOptions
	LockKey string
	NoLock  bool
}

func NewDefaultOptions() Options {
	return Options{
		CommonOptions: database.CommonOptions{
			MigrationsTable: database.DefaultMigrationsTable,
		},
		LockKey: DefaultLockKey,
	}
}

// Driver keeps every tenant in its own schema of one PostgreSQL database
type Driver struct {
	db      *sqlx.DB
	dsn     string
	opts    Options
	dialect *Dialect
}

var _ database.Driver = (*Driver)(nil)

// Open accepts both postgres:// URLs and key=value connection strings
func Open(dsn string, opts Options) (*Driver, error) {
	connStr, err := connectionString(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "could not open PostgreSQL connection pool")
	}

	return New(db, connStr, opts), nil
}

func New(db *sqlx.DB, connStr string, opts Options) *Driver {
	return &Driver{
		db:      db,
		dsn:     connStr,
		opts:    opts,
		dialect: NewDialect(opts.MigrationsTable),
	}
}

func (d *Driver) Name() string {
	return "postgres"
}

func (d *Driver) Dialect() database.Dialect {
	return d.dialect
}

func (d *Driver) Locker(tenant string) database.Locker {
	return NewLocker(TenantLockKey(d.opts.LockKey, tenant), d.opts.NoLock)
}

func (d *Driver) TenantExists(ctx context.Context, tenant string) (bool, error) {
	var exists bool
	if err := d.db.GetContext(
		ctx,
		&exists,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		tenant,
	); err != nil {
		return false, errors.Wrapf(err, "could not check tenant [%s]", tenant)
	}

	return exists, nil
}

func (d *Driver) CreateTenant(ctx context.Context, tenant string) error {
	if _, err := d.db.ExecContext(ctx, "CREATE SCHEMA "+pq.QuoteIdentifier(tenant)); err != nil {
		return mapError(err, tenant)
	}

	return nil
}

func (d *Driver) DropTenant(ctx context.Context, tenant string) error {
	if _, err := d.db.ExecContext(ctx, "DROP SCHEMA "+pq.QuoteIdentifier(tenant)+" CASCADE"); err != nil {
		return mapError(err, tenant)
	}

	return nil
}

// OpenTenant opens a pool whose sessions resolve unqualified names in the tenant schema
func (d *Driver) OpenTenant(ctx context.Context, tenant string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", TenantConnectionString(d.dsn, tenant))
	if err != nil {
		return nil, errors.Wrapf(err, "could not open tenant [%s]", tenant)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, mapError(err, tenant)
	}

	return db, nil
}

func (d *Driver) ReadSchema(ctx context.Context, q database.Queryer) (*database.Schema, error) {
	var tables []string
	if err := q.SelectContext(
		ctx,
		&tables,
		"SELECT table_name FROM information_schema.tables "+
			"WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name",
	); err != nil {
		return nil, errors.Wrap(err, "could not list tables")
	}

	schema := &database.Schema{Dialect: d.Name()}

	for _, name := range tables {
		var columns []database.Column
		if err := q.SelectContext(
			ctx,
			&columns,
			"SELECT column_name AS name, data_type AS type, is_nullable = 'YES' AS nullable, column_default "+
				"FROM information_schema.columns "+
				"WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position",
			name,
		); err != nil {
			return nil, errors.Wrapf(err, "could not read columns of table [%s]", name)
		}

		var primaryKey []string
		if err := q.SelectContext(
			ctx,
			&primaryKey,
			"SELECT kcu.column_name FROM information_schema.table_constraints tc "+
				"JOIN information_schema.key_column_usage kcu "+
				"ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema "+
				"WHERE tc.table_schema = current_schema() AND tc.table_name = $1 "+
				"AND tc.constraint_type = 'PRIMARY KEY' ORDER BY kcu.ordinal_position",
			name,
		); err != nil {
			return nil, errors.Wrapf(err, "could not read primary key of table [%s]", name)
		}

		schema.Tables = append(schema.Tables, database.Table{
			Name:    name,
			DDL:     BuildCreateTable(name, columns, primaryKey),
			Columns: columns,
		})
	}

	return schema, nil
}

func (d *Driver) Close() error {
	if err := d.db.Close(); err != nil {
		return errors.Wrap(err, "could not close PostgreSQL connection pool")
	}

	return nil
}

// BuildCreateTable renders a CREATE TABLE statement out of information_schema
// rows, PostgreSQL has no SHOW CREATE TABLE
func BuildCreateTable(table string, columns []database.Column, primaryKey []string) string {
	var buf bytes.Buffer
	buf.WriteString("CREATE TABLE ")
	buf.WriteString(pq.QuoteIdentifier(table))
	buf.WriteString(" (\n")

	for i, c := range columns {
		buf.WriteString("    ")
		buf.WriteString(pq.QuoteIdentifier(c.Name))
		buf.WriteString(" ")
		buf.WriteString(c.Type)

		if !c.Nullable {
			buf.WriteString(" NOT NULL")
		}

		if c.Default != nil {
			buf.WriteString(" DEFAULT ")
			buf.WriteString(*c.Default)
		}

		if i < len(columns)-1 || len(primaryKey) > 0 {
			buf.WriteString(",")
		}

		buf.WriteString("\n")
	}

	if len(primaryKey) > 0 {
		quoted := make([]string, len(primaryKey))
		for i := range primaryKey {
			quoted[i] = pq.QuoteIdentifier(primaryKey[i])
		}

		buf.WriteString("    PRIMARY KEY (")
		buf.WriteString(strings.Join(quoted, ", "))
		buf.WriteString(")\n")
	}

	buf.WriteString(")")

	return buf.String()
}

var connValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// TenantConnectionString appends the tenant schema as search_path. The schema
// is a quoted identifier so mixed case and dashes match the created schema.
func TenantConnectionString(connStr, tenant string) string {
	return strings.TrimSpace(connStr) + " search_path='" + connValueEscaper.Replace(pq.QuoteIdentifier(tenant)) + "'"
}

func connectionString(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		connStr, err := pq.ParseURL(dsn)
		if err != nil {
			return "", errors.Wrap(err, "could not parse PostgreSQL URL")
		}

		return connStr, nil
	}

	return dsn, nil
}

func mapError(err error, tenant string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeDuplicateSchema:
			return errors.Wrapf(database.ErrTenantAlreadyExists, "[%s]", tenant)
		case codeInvalidSchemaName:
			return errors.Wrapf(database.ErrTenantNotFound, "[%s]", tenant)
		}
	}

	return errors.Wrapf(err, "tenant [%s]", tenant)
}
