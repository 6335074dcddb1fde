package tenants

import (
	"time"

	"github.com/denismitr/tenants/internal/database/sqlgateway"
	"github.com/denismitr/tenants/internal/database/sqlgateway/mysql"
)

type MySQLOptionFunc func(*mysql.Options, *sqlgateway.ConnectOptions)

// UseMySQL keeps every tenant in its own database on the server the DSN points to
func UseMySQL(dsn string, options ...MySQLOptionFunc) OptionFunc {
	return func(o *Operator) error {
		mysqlOpts := mysql.NewDefaultOptions()
		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(&mysqlOpts, connectOpts)
		}

		d, err := mysql.Open(dsn, mysqlOpts)
		if err != nil {
			return configuration(err)
		}

		o.driver = d
		o.connector = sqlgateway.NewRetryingConnector(connectOpts)

		return nil
	}
}

func WithMySQLNoLock() MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.NoLock = true
	}
}

func WithMySQLLockKey(key string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.LockKey = key
	}
}

func WithMySQLLockFor(lockFor int) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.LockFor = lockFor
	}
}

func WithMySQLMigrationsTable(migrationsTable string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.MigrationsTable = migrationsTable
	}
}

func WithMySQLCharset(charset string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.Charset = charset
	}
}

func WithMySQLConnectionTimeout(timeout time.Duration) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithMySQLMaxConnectionAttempts(attempts int) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
