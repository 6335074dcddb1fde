package database

import (
	"context"
	"database/sql"
	"io"

	"github.com/denismitr/tenants/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	ErrNoChangesRequired            = errors.New("no changes to the database required")
	ErrMigrationVersionNotSpecified = errors.New("migration version not specified")
	ErrMigrationNotFound            = errors.New("migration not found")
	ErrMigrationIsMalformed         = errors.New("migration is malformed")
	ErrUnsupportedDriver            = errors.New("unsupported database driver")
	ErrLockNotAcquired              = errors.New("database lock was not acquired")

	// ErrTenantNotFound and ErrTenantAlreadyExists are the recoverable
	// per-tenant failures, a batch reports them and moves on
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantAlreadyExists = errors.New("tenant already exists")
)

const (
	DefaultMigrationsTable = "schema_migrations"
	DefaultCharset         = "utf8mb4"

	OperationRollback = "rollback"
	OperationMigrate  = "migrate"
)

// IsRecoverable reports whether err is one of the tenant lifecycle
// failures that must not abort a batch
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrTenantNotFound) || errors.Is(err, ErrTenantAlreadyExists)
}

type CommonOptions struct {
	MigrationsTable string
	Charset         string
}

type Plan struct {
	Steps    int
	Versions []migration.Version
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Queryer interface {
	Execer
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

var _ Queryer = (*sqlx.Conn)(nil)
var _ Queryer = (*sqlx.Tx)(nil)
var _ Queryer = (*sqlx.DB)(nil)

// Dialect builds the queries that maintain the migration versions table
type Dialect interface {
	MigrationsTable() string
	InitQuery() string
	InsertQuery(m *migration.Migration) (string, []interface{}, error)
	RemoveQuery(m *migration.Migration) (string, []interface{}, error)
	ReadVersionsQuery() string
	DropQuery() string
}

type Locker interface {
	Lock(ctx context.Context, q Queryer) error
	Unlock(ctx context.Context, q Queryer) error
}

type SchemaReader interface {
	ReadSchema(ctx context.Context, q Queryer) (*Schema, error)
}

// Driver knows how a tenant is laid out on a particular database server
// and how to reach it
type Driver interface {
	io.Closer
	SchemaReader

	Name() string
	Dialect() Dialect
	// Locker guards migrations of a single tenant, tenants never wait on each other
	Locker(tenant string) Locker

	TenantExists(ctx context.Context, tenant string) (bool, error)
	CreateTenant(ctx context.Context, tenant string) error
	DropTenant(ctx context.Context, tenant string) error

	// OpenTenant returns a pool scoped to the tenant, the caller closes it
	OpenTenant(ctx context.Context, tenant string) (*sqlx.DB, error)
}

type NullLocker struct{}

func (NullLocker) Lock(context.Context, Queryer) error {
	return nil
}

func (NullLocker) Unlock(context.Context, Queryer) error {
	return nil
}
