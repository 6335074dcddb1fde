package tenants

import (
	"time"

	"github.com/denismitr/tenants/internal/database/sqlgateway"
	"github.com/denismitr/tenants/internal/database/sqlgateway/sqlite"
)

type SqliteOptionFunc func(*sqlite.Options, *sqlgateway.ConnectOptions)

// UseSqlite keeps every tenant in its own file inside folder
func UseSqlite(folder string, options ...SqliteOptionFunc) OptionFunc {
	return func(o *Operator) error {
		sqliteOpts := sqlite.NewDefaultOptions()
		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(&sqliteOpts, connectOpts)
		}

		d, err := sqlite.Open(folder, sqliteOpts)
		if err != nil {
			return configuration(err)
		}

		o.driver = d
		o.connector = sqlgateway.NewRetryingConnector(connectOpts)

		return nil
	}
}

func WithSqliteMigrationsTable(migrationsTable string) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		sqliteOpts.MigrationsTable = migrationsTable
	}
}

func WithSqliteConnectionTimeout(timeout time.Duration) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithSqliteMaxConnectionAttempts(attempts int) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
