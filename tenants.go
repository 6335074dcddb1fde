package tenants

import (
	"context"
	"sync"

	"github.com/denismitr/tenants/internal/batch"
	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/database/sqlgateway"
	"github.com/denismitr/tenants/internal/logger"
	"github.com/denismitr/tenants/internal/schema"
	"github.com/denismitr/tenants/internal/source"
	"github.com/denismitr/tenants/internal/tenant"
	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

type CloserFunc func() error

// Operator runs database tasks across every tenant of the application
type Operator struct {
	lg               logger.Logger
	driver           database.Driver
	connector        sqlgateway.Connector
	selector         source.Selector
	migrationsFolder string
	cfg              Config
	runner           *batch.Runner
	dumper           *schema.Dumper
}

// TenantStatus lists applied and pending migrations of one tenant
type TenantStatus struct {
	Tenant  string
	Applied []migration.Version
	Pending migration.Migrations
}

// New creates an operator out of option callbacks, a driver option is
// required, everything else falls back to defaults
func New(opts ...OptionFunc) (*Operator, CloserFunc, error) {
	o := &Operator{
		lg:  logger.NullLogger{},
		cfg: NewDefaultConfig(),
	}

	for _, oFunc := range opts {
		if err := oFunc(o); err != nil {
			o.closeDriver()
			return nil, nil, err
		}
	}

	if o.driver == nil {
		return nil, nil, configuration(ErrDriverNotInitialized)
	}

	if o.connector == nil {
		o.connector = sqlgateway.NewRetryingConnector(nil)
	}

	if o.selector == nil {
		folder := o.migrationsFolder
		if folder == "" {
			folder = source.DefaultMigrationsFolder
		}

		o.selector = source.NewLocalFSSource(folder, o.lg)
	}

	if o.cfg.SeedsFile == "" {
		o.cfg.SeedsFile = source.DefaultSeedsFile
	}

	dumper, err := schema.New(o.driver, schema.Options{
		Format: schema.Format(o.cfg.Schema.Format),
		File:   o.cfg.Schema.File,
	}, o.lg)
	if err != nil {
		o.closeDriver()
		return nil, nil, configuration(err)
	}

	o.dumper = dumper
	o.runner = batch.New(o.cfg.Concurrency, o.lg, batch.IgnoreEmptyTenants(o.cfg.IgnoreEmptyTenants))

	return o, o.close, nil
}

// Tenants resolves the tenant list the tasks will iterate over
func (o *Operator) Tenants(cfs ...ActionConfigurator) ([]string, error) {
	return o.resolve(newAction(cfs))
}

// Create creates the database of every tenant
func (o *Operator) Create(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	tenants, err := o.resolve(newAction(cfs))
	if err != nil {
		return nil, err
	}

	return o.runner.Run(ctx, tenants, func(ctx context.Context, t string) error {
		if err := o.driver.CreateTenant(ctx, t); err != nil {
			return err
		}

		o.lg.Successf("tenant [%s] created", t)

		return nil
	})
}

// Drop removes the database of every tenant with all its data
func (o *Operator) Drop(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	tenants, err := o.resolve(newAction(cfs))
	if err != nil {
		return nil, err
	}

	return o.runner.Run(ctx, tenants, func(ctx context.Context, t string) error {
		if err := o.driver.DropTenant(ctx, t); err != nil {
			return err
		}

		o.lg.Successf("tenant [%s] dropped", t)

		return nil
	})
}

// Migrate applies pending migrations to every tenant, WithSteps limits
// how many are applied per tenant
func (o *Operator) Migrate(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	act := newAction(cfs)

	tenants, err := o.resolve(act)
	if err != nil {
		return nil, err
	}

	migrations, err := o.selectMigrations(ctx)
	if err != nil {
		return nil, err
	}

	p := database.Plan{Steps: act.steps, Versions: act.versions}

	report, err := o.runner.Run(ctx, tenants, o.migrateOperation(migrations, p, "nothing to migrate"))
	if err != nil {
		return report, err
	}

	return report, o.dumpAfterBatch(ctx, report)
}

// Rollback rolls back the latest migration of every tenant, or as many
// as WithSteps asks for
func (o *Operator) Rollback(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	act := newAction(cfs)

	tenants, err := o.resolve(act)
	if err != nil {
		return nil, err
	}

	migrations, err := o.selectMigrations(ctx)
	if err != nil {
		return nil, err
	}

	p := database.Plan{Steps: act.steps, Versions: act.versions}
	if p.Steps == 0 && len(p.Versions) == 0 {
		p.Steps = 1
	}

	report, err := o.runner.Run(ctx, tenants, o.rollbackOperation(migrations, p, "nothing to rollback"))
	if err != nil {
		return report, err
	}

	return report, o.dumpAfterBatch(ctx, report)
}

// MigrateUp applies exactly the versions given with WithVersions
func (o *Operator) MigrateUp(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	act := newAction(cfs)
	if len(act.versions) == 0 {
		return nil, configuration(ErrVersionRequired)
	}

	tenants, migrations, err := o.prepareVersionedRun(ctx, act)
	if err != nil {
		return nil, err
	}

	p := database.Plan{Versions: act.versions}

	report, err := o.runner.Run(ctx, tenants, o.migrateOperation(migrations, p, "already migrated"))
	if err != nil {
		return report, err
	}

	return report, o.dumpAfterBatch(ctx, report)
}

// MigrateDown rolls back exactly the versions given with WithVersions
func (o *Operator) MigrateDown(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	act := newAction(cfs)
	if len(act.versions) == 0 {
		return nil, configuration(ErrVersionRequired)
	}

	tenants, migrations, err := o.prepareVersionedRun(ctx, act)
	if err != nil {
		return nil, err
	}

	p := database.Plan{Versions: act.versions}

	report, err := o.runner.Run(ctx, tenants, o.rollbackOperation(migrations, p, "not migrated"))
	if err != nil {
		return report, err
	}

	return report, o.dumpAfterBatch(ctx, report)
}

// Redo rolls back and migrates again, either the versions given with
// WithVersions or the latest WithSteps migrations (one by default)
func (o *Operator) Redo(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	act := newAction(cfs)

	if len(act.versions) > 0 {
		down, err := o.MigrateDown(ctx, cfs...)
		if err != nil {
			return down, err
		}

		up, err := o.MigrateUp(ctx, cfs...)

		return mergeReports(down, up), err
	}

	steps := act.steps
	if steps == 0 {
		steps = 1
	}

	withSteps := make([]ActionConfigurator, 0, len(cfs)+1)
	withSteps = append(withSteps, cfs...)
	withSteps = append(withSteps, WithSteps(steps))

	rolledBack, err := o.Rollback(ctx, withSteps...)
	if err != nil {
		return rolledBack, err
	}

	migrated, err := o.Migrate(ctx, withSteps...)

	return mergeReports(rolledBack, migrated), err
}

// Seed runs the statements of the seeds file in every tenant
func (o *Operator) Seed(ctx context.Context, cfs ...ActionConfigurator) (*batch.Report, error) {
	statements, err := source.ReadSeeds(o.cfg.SeedsFile)
	if err != nil {
		return nil, configuration(err)
	}

	tenants, err := o.resolve(newAction(cfs))
	if err != nil {
		return nil, err
	}

	return o.runner.Run(ctx, tenants, func(ctx context.Context, t string) error {
		return o.withGateway(ctx, t, func(g *sqlgateway.SQLGateway) error {
			if err := g.Seed(ctx, statements); err != nil {
				return err
			}

			o.lg.Successf("[%s] seeded with %d statement(s)", t, len(statements))

			return nil
		})
	})
}

// DumpSchema writes the structure of the reference tenant
func (o *Operator) DumpSchema(ctx context.Context, cfs ...ActionConfigurator) error {
	tenants, err := o.resolve(newAction(cfs))
	if err != nil {
		return err
	}

	return o.dump(ctx, tenants)
}

// Status reads applied versions of every tenant and the migrations still pending
func (o *Operator) Status(ctx context.Context, cfs ...ActionConfigurator) ([]TenantStatus, *batch.Report, error) {
	tenants, err := o.resolve(newAction(cfs))
	if err != nil {
		return nil, nil, err
	}

	migrations, err := o.selectMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}

	var mu sync.Mutex
	statuses := make(map[string]TenantStatus, len(tenants))

	report, err := o.runner.Run(ctx, tenants, func(ctx context.Context, t string) error {
		return o.withGateway(ctx, t, func(g *sqlgateway.SQLGateway) error {
			applied, err := g.ReadVersions(ctx)
			if err != nil {
				return err
			}

			mu.Lock()
			statuses[t] = TenantStatus{
				Tenant:  t,
				Applied: applied,
				Pending: database.ScheduleForMigration(migrations, applied, database.Plan{}),
			}
			mu.Unlock()

			return nil
		})
	})

	var result []TenantStatus
	for _, t := range tenants {
		if s, ok := statuses[t]; ok {
			result = append(result, s)
		}
	}

	return result, report, err
}

// Source returns the migration source when it supports creating migrations
func (o *Operator) Source() source.Source {
	if s, ok := o.selector.(source.Source); ok {
		return s
	}

	return nil
}

func (o *Operator) resolve(act *Action) ([]string, error) {
	tenants := tenant.Resolve(act.tenants, o.cfg.Tenants)
	if err := tenant.Validate(tenants); err != nil {
		return nil, configuration(err)
	}

	return tenants, nil
}

func (o *Operator) selectMigrations(ctx context.Context) (migration.Migrations, error) {
	if s, ok := o.selector.(*source.LocalFileSource); ok && !s.IsValid() {
		return nil, configuration(errors.Errorf("migrations folder [%s] is invalid", s.Folder()))
	}

	migrations, err := o.selector.Select(ctx, source.Filter{})
	if err != nil {
		o.lg.Error(err)
		return nil, errors.Wrap(err, "could not read migrations")
	}

	return migrations, nil
}

func (o *Operator) prepareVersionedRun(ctx context.Context, act *Action) ([]string, migration.Migrations, error) {
	tenants, err := o.resolve(act)
	if err != nil {
		return nil, nil, err
	}

	migrations, err := o.selectMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, v := range act.versions {
		if migrations.Find(v) == nil {
			return nil, nil, errors.Wrapf(database.ErrMigrationNotFound, "version %d", v.Value)
		}
	}

	return tenants, migrations, nil
}

func (o *Operator) migrateOperation(migrations migration.Migrations, p database.Plan, noChanges string) batch.Operation {
	return func(ctx context.Context, t string) error {
		return o.withGateway(ctx, t, func(g *sqlgateway.SQLGateway) error {
			migrated, err := g.Migrate(ctx, migrations, p)
			if errors.Is(err, database.ErrNoChangesRequired) {
				o.lg.Noticef("[%s] %s", t, noChanges)
				return nil
			}

			if err != nil {
				return err
			}

			o.lg.Successf("[%s] %d migration(s) applied", t, len(migrated))

			return nil
		})
	}
}

func (o *Operator) rollbackOperation(migrations migration.Migrations, p database.Plan, noChanges string) batch.Operation {
	return func(ctx context.Context, t string) error {
		return o.withGateway(ctx, t, func(g *sqlgateway.SQLGateway) error {
			rolledBack, err := g.Rollback(ctx, migrations, p)
			if errors.Is(err, database.ErrNoChangesRequired) {
				o.lg.Noticef("[%s] %s", t, noChanges)
				return nil
			}

			if err != nil {
				return err
			}

			o.lg.Successf("[%s] %d migration(s) rolled back", t, len(rolledBack))

			return nil
		})
	}
}

// withGateway opens a dedicated connection to the tenant for the duration of f
func (o *Operator) withGateway(ctx context.Context, t string, f func(g *sqlgateway.SQLGateway) error) (err error) {
	exists, err := o.driver.TenantExists(ctx, t)
	if err != nil {
		return err
	}

	if !exists {
		return errors.Wrapf(database.ErrTenantNotFound, "[%s]", t)
	}

	db, err := o.driver.OpenTenant(ctx, t)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "could not close connection pool of tenant [%s]", t)
		}
	}()

	conn, err := o.connector.Connect(ctx, db)
	if err != nil {
		return errors.Wrapf(err, "could not connect to tenant [%s]", t)
	}

	defer conn.Close()

	return f(sqlgateway.New(t, conn, o.driver.Dialect(), o.driver.Locker(t), o.lg))
}

// dumpAfterBatch takes the reference from the tenants the batch succeeded on,
// a skipped tenant may not exist at all
func (o *Operator) dumpAfterBatch(ctx context.Context, report *batch.Report) error {
	if !o.cfg.Schema.Dump {
		return nil
	}

	succeeded := report.Succeeded()
	if len(succeeded) == 0 && o.cfg.Schema.Tenant == "" {
		return nil
	}

	return o.dump(ctx, succeeded)
}

func (o *Operator) dump(ctx context.Context, tenants []string) error {
	ref := schema.Reference(o.cfg.Schema.Tenant, tenants)

	if err := o.dumper.Dump(ctx, ref); err != nil {
		if errors.Is(err, database.ErrTenantNotFound) {
			o.lg.Warnf("reference tenant [%s] not found, schema dump skipped", ref)
			return nil
		}

		return errors.Wrap(err, "schema dump failed")
	}

	return nil
}

func (o *Operator) closeDriver() {
	if o.driver != nil {
		if err := o.driver.Close(); err != nil {
			o.lg.Error(err)
		}
	}
}

func (o *Operator) close() error {
	if o.driver == nil {
		return ErrDriverNotInitialized
	}

	return o.driver.Close()
}

func mergeReports(reports ...*batch.Report) *batch.Report {
	result := &batch.Report{}
	for _, r := range reports {
		if r != nil {
			result.Outcomes = append(result.Outcomes, r.Outcomes...)
		}
	}

	return result
}
