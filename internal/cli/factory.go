package cli

import (
	"strings"

	"github.com/denismitr/tenants"
	"github.com/pkg/errors"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

type (
	operatorFactory    func(cfg Config, opts ...tenants.OptionFunc) (*tenants.Operator, tenants.CloserFunc, error)
	operatorFactoryMap map[string]operatorFactory
)

var factories = operatorFactoryMap{
	"mysql":    createMySQLOperator,
	"postgres": createPostgresOperator,
	"sqlite":   createSqliteOperator,
}

func createMySQLOperator(cfg Config, opts ...tenants.OptionFunc) (*tenants.Operator, tenants.CloserFunc, error) {
	return tenants.New(append(opts, tenants.UseMySQL(cfg.DatabaseURL))...)
}

func createPostgresOperator(cfg Config, opts ...tenants.OptionFunc) (*tenants.Operator, tenants.CloserFunc, error) {
	return tenants.New(append(opts, tenants.UsePostgres(cfg.DatabaseURL))...)
}

func createSqliteOperator(cfg Config, opts ...tenants.OptionFunc) (*tenants.Operator, tenants.CloserFunc, error) {
	return tenants.New(append(opts, tenants.UseSqlite(cfg.DatabaseURL))...)
}

// driverFromURL maps the scheme of the database url onto a factory name
func driverFromURL(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "mysql://"):
		return "mysql", nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", nil
	case strings.HasPrefix(databaseURL, "sqlite://"), strings.HasPrefix(databaseURL, "sqlite3://"):
		return "sqlite", nil
	default:
		return "", tenants.ConfigurationError(errors.Wrapf(ErrUnsupportedDriver, "[%s]", scheme(databaseURL)))
	}
}

func createOperator(cfg Config, out Output) (*tenants.Operator, tenants.CloserFunc, error) {
	driver, err := driverFromURL(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	useLogger := tenants.UseColorLogger(out.Printer, out.Verbose, out.Verbose)
	if out.NoColor {
		useLogger = tenants.UseBWLogger(out.Printer, out.Verbose, out.Verbose)
	}

	return createOperatorFrom(
		driver,
		factories,
		cfg,
		useLogger,
		tenants.UseLocalFolderSource(cfg.MigrationsFolder),
		tenants.UseConfig(cfg.Operator),
	)
}

func createOperatorFrom(
	driver string,
	factoryMap operatorFactoryMap,
	cfg Config,
	opts ...tenants.OptionFunc,
) (*tenants.Operator, tenants.CloserFunc, error) {
	factory, ok := factoryMap[driver]
	if !ok {
		return nil, nil, tenants.ConfigurationError(errors.Wrapf(ErrUnsupportedDriver, "could not find factory for driver [%s]", driver))
	}

	return factory(cfg, opts...)
}

// scheme keeps credentials out of error messages
func scheme(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i]
	}

	return "unknown"
}
