package tenants

import (
	"time"

	"github.com/denismitr/tenants/internal/database/sqlgateway"
	"github.com/denismitr/tenants/internal/database/sqlgateway/postgres"
)

type PostgresOptionFunc func(*postgres.Options, *sqlgateway.ConnectOptions)

// UsePostgres keeps every tenant in its own schema of the database the DSN points to
func UsePostgres(dsn string, options ...PostgresOptionFunc) OptionFunc {
	return func(o *Operator) error {
		pgOpts := postgres.NewDefaultOptions()
		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(&pgOpts, connectOpts)
		}

		d, err := postgres.Open(dsn, pgOpts)
		if err != nil {
			return configuration(err)
		}

		o.driver = d
		o.connector = sqlgateway.NewRetryingConnector(connectOpts)

		return nil
	}
}

func WithPostgresNoLock() PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.NoLock = true
	}
}

func WithPostgresLockKey(key string) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.LockKey = key
	}
}

func WithPostgresMigrationsTable(migrationsTable string) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.MigrationsTable = migrationsTable
	}
}

func WithPostgresConnectionTimeout(timeout time.Duration) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithPostgresMaxConnectionAttempts(attempts int) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
