package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/denismitr/tenants"
	"github.com/denismitr/tenants/internal/batch"
	"github.com/denismitr/tenants/internal/logger"
	"github.com/denismitr/tenants/internal/source"
	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

var (
	ErrMigrationAlreadyExists = errors.New("migration already exists")
	ErrFolderInvalid          = errors.New("migrations folder is invalid")
	ErrSourceTypeIsNotValid   = errors.New("source type is not valid")
	ErrConfigFileExists       = errors.New("configuration file already exists")
)

type (
	CloserFunc func() error

	// Output controls what the operator prints and how
	Output struct {
		Printer logger.Printer
		Verbose bool
		NoColor bool
	}

	// App runs the tasks of the command line against one operator
	App struct {
		operator *tenants.Operator
		source   source.Source
		inputs   Inputs
		now      func() time.Time
	}
)

func New(cfg Config, in Inputs, out Output) (*App, CloserFunc, error) {
	cfg, err := cfg.Apply(in)
	if err != nil {
		return nil, nil, err
	}

	o, closer, err := createOperator(cfg, out)
	if err != nil {
		return nil, nil, err
	}

	return &App{
		operator: o,
		source:   o.Source(),
		inputs:   in,
		now:      time.Now,
	}, CloserFunc(closer), nil
}

func (app *App) Create(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(false)
	if err != nil {
		return nil, err
	}

	return app.operator.Create(ctx, cfs...)
}

func (app *App) Drop(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(false)
	if err != nil {
		return nil, err
	}

	return app.operator.Drop(ctx, cfs...)
}

func (app *App) Migrate(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(false)
	if err != nil {
		return nil, err
	}

	return app.operator.Migrate(ctx, cfs...)
}

func (app *App) Rollback(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(false)
	if err != nil {
		return nil, err
	}

	return app.operator.Rollback(ctx, cfs...)
}

func (app *App) MigrateUp(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(true)
	if err != nil {
		return nil, err
	}

	return app.operator.MigrateUp(ctx, cfs...)
}

func (app *App) MigrateDown(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(true)
	if err != nil {
		return nil, err
	}

	return app.operator.MigrateDown(ctx, cfs...)
}

func (app *App) Redo(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(true)
	if err != nil {
		return nil, err
	}

	return app.operator.Redo(ctx, cfs...)
}

func (app *App) Seed(ctx context.Context) (*batch.Report, error) {
	cfs, err := app.configurators(false)
	if err != nil {
		return nil, err
	}

	return app.operator.Seed(ctx, cfs...)
}

func (app *App) DumpSchema(ctx context.Context) error {
	cfs, err := app.configurators(false)
	if err != nil {
		return err
	}

	return app.operator.DumpSchema(ctx, cfs...)
}

func (app *App) Status(ctx context.Context) ([]tenants.TenantStatus, *batch.Report, error) {
	cfs, err := app.configurators(false)
	if err != nil {
		return nil, nil, err
	}

	return app.operator.Status(ctx, cfs...)
}

// CreateMigration writes empty migrate (and rollback) files versioned
// with the current unix time
func (app *App) CreateMigration(name string, withRollback bool) (*migration.Migration, error) {
	if app.source == nil {
		return nil, ErrSourceTypeIsNotValid
	}

	if !app.source.IsValid() {
		return nil, ErrFolderInvalid
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, tenants.ConfigurationError(errors.New("migration name is required"))
	}

	v := uint64(app.now().Unix())

	if app.source.AlreadyExists(v, name) {
		return nil, errors.Wrapf(ErrMigrationAlreadyExists, "version [%d] name [%s]", v, name)
	}

	return app.source.Create(v, name, withRollback)
}

// configurators turns the inputs into action configurators, VERSION is
// only read by tasks that target specific versions
func (app *App) configurators(withVersion bool) ([]tenants.ActionConfigurator, error) {
	var versions []string
	if withVersion {
		versions = strings.Split(app.inputs.Version, ",")
	}

	return tenants.CreateConfigurators(app.inputs.DB, app.inputs.Step, versions)
}

// InitCfg writes a configuration stub, an existing file is never overwritten
func InitCfg(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return errors.Wrapf(ErrConfigFileExists, "[%s]", path)
	}

	if err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	defer f.Close()

	if _, err := io.Copy(f, strings.NewReader(configFileStub)); err != nil {
		return errors.Wrap(err, "could not write config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}

	return err == nil && !info.IsDir()
}
