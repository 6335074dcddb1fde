package sqlgateway

import (
	"context"
	"database/sql"
	"time"

	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/logger"
	"github.com/denismitr/tenants/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type versionRow struct {
	Version    uint64    `db:"version"`
	MigratedAt time.Time `db:"migrated_at"`
}

// SQLGateway runs migrations against a single tenant connection
type SQLGateway struct {
	tenant  string
	conn    *sqlx.Conn
	dialect database.Dialect
	locker  database.Locker
	lg      logger.Logger
}

func New(
	tenant string,
	conn *sqlx.Conn,
	dialect database.Dialect,
	locker database.Locker,
	lg logger.Logger,
) *SQLGateway {
	if locker == nil {
		locker = database.NullLocker{}
	}

	if lg == nil {
		lg = logger.NullLogger{}
	}

	return &SQLGateway{
		tenant:  tenant,
		conn:    conn,
		dialect: dialect,
		locker:  locker,
		lg:      lg,
	}
}

func (g *SQLGateway) Migrate(
	ctx context.Context,
	migrations migration.Migrations,
	p database.Plan,
) (migration.Migrations, error) {
	var migrated migration.Migrations

	f := func(tx *sqlx.Tx, migratedVersions []migration.Version) error {
		scheduled := database.ScheduleForMigration(migrations, migratedVersions, p)

		if len(scheduled) == 0 {
			return database.ErrNoChangesRequired
		}

		for i := range scheduled {
			if err := g.migrateOne(ctx, tx, scheduled[i]); err != nil {
				return err
			}

			g.lg.Successf("[%s] migrated: %s", g.tenant, scheduled[i].Key)

			migrated = append(migrated, scheduled[i])
		}

		return nil
	}

	if err := g.execUnderLock(ctx, database.OperationMigrate, f); err != nil {
		return nil, err
	}

	return migrated, nil
}

func (g *SQLGateway) Rollback(
	ctx context.Context,
	migrations migration.Migrations,
	p database.Plan,
) (migration.Migrations, error) {
	var rolledBack migration.Migrations

	f := func(tx *sqlx.Tx, migratedVersions []migration.Version) error {
		scheduled := database.ScheduleForRollback(migrations, migratedVersions, p)

		if len(scheduled) == 0 {
			return database.ErrNoChangesRequired
		}

		for i := range scheduled {
			g.lg.Debugf("[%s] rolling back: %s", g.tenant, scheduled[i].Key)

			if err := g.rollbackOne(ctx, tx, scheduled[i]); err != nil {
				return err
			}

			g.lg.Successf("[%s] rolled back: %s", g.tenant, scheduled[i].Key)

			rolledBack = append(rolledBack, scheduled[i])
		}

		return nil
	}

	if err := g.execUnderLock(ctx, database.OperationRollback, f); err != nil {
		return nil, err
	}

	return rolledBack, nil
}

// ReadVersions lists applied versions in ascending order, a tenant
// that has never been migrated has none
func (g *SQLGateway) ReadVersions(ctx context.Context) ([]migration.Version, error) {
	if err := g.CreateMigrationsTable(ctx); err != nil {
		return nil, err
	}

	return readVersions(ctx, g.conn, g.dialect)
}

func (g *SQLGateway) CreateMigrationsTable(ctx context.Context) error {
	if _, err := g.conn.ExecContext(ctx, g.dialect.InitQuery()); err != nil {
		return errors.Wrapf(err, "could not create migrations table for tenant [%s]", g.tenant)
	}

	return nil
}

func (g *SQLGateway) DropMigrationsTable(ctx context.Context) error {
	if _, err := g.conn.ExecContext(ctx, g.dialect.DropQuery()); err != nil {
		return errors.Wrapf(err, "could not drop migrations table for tenant [%s]", g.tenant)
	}

	return nil
}

// Seed runs the statements inside a single transaction
func (g *SQLGateway) Seed(ctx context.Context, statements []string) error {
	tx, err := g.conn.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrapf(err, "could not start seed transaction for tenant [%s]", g.tenant)
	}

	for _, stmt := range statements {
		g.lg.SQL(stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			execErr := errors.Wrapf(err, "could not seed tenant [%s]", g.tenant)
			if rbErr := tx.Rollback(); rbErr != nil {
				return errors.Wrap(execErr, rbErr.Error())
			}

			return execErr
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "could not commit seed transaction for tenant [%s]", g.tenant)
	}

	return nil
}

func (g *SQLGateway) execUnderLock(
	ctx context.Context,
	operation string,
	f func(*sqlx.Tx, []migration.Version) error,
) error {
	if err := g.locker.Lock(ctx, g.conn); err != nil {
		return errors.Wrapf(err, "database lock failed for tenant [%s]", g.tenant)
	}

	if err := g.CreateMigrationsTable(ctx); err != nil {
		return g.handleError(ctx, err, nil)
	}

	tx, err := g.conn.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		err = errors.Wrapf(err, "could not start transaction to execute [%s] operation", operation)
		return g.handleError(ctx, err, nil)
	}

	migratedVersions, err := readVersions(ctx, tx, g.dialect)
	if err != nil {
		return g.handleError(ctx, errors.Wrapf(err, "operation [%s] failed", operation), tx)
	}

	if err := f(tx, migratedVersions); err != nil {
		if errors.Is(err, database.ErrNoChangesRequired) {
			return g.handleError(ctx, err, tx)
		}

		return g.handleError(ctx, errors.Wrapf(err, "operation [%s] failed", operation), tx)
	}

	if err := tx.Commit(); err != nil {
		err = errors.Wrapf(err, "could not commit [%s] operation", operation)
		return g.handleError(ctx, err, nil)
	}

	return g.locker.Unlock(ctx, g.conn)
}

func (g *SQLGateway) migrateOne(ctx context.Context, ex database.Execer, m *migration.Migration) error {
	if m.Version.Value == 0 {
		return database.ErrMigrationVersionNotSpecified
	}

	// migrations are shared between tenant workers, stamp a copy
	applied := *m
	applied.Version.MigratedAt = time.Now().UTC()

	insertQuery, args, err := g.dialect.InsertQuery(&applied)
	if err != nil {
		return err
	}

	for _, script := range m.Migrate {
		g.lg.SQL(script)
		if _, err := ex.ExecContext(ctx, script); err != nil {
			return errors.Wrapf(err, "could not migrate script [%s], migration %s", script, m.Key)
		}
	}

	g.lg.SQL(insertQuery, args...)

	if _, err := ex.ExecContext(ctx, insertQuery, args...); err != nil {
		return errors.Wrapf(err, "could not insert migration version %d", m.Version.Value)
	}

	return nil
}

func (g *SQLGateway) rollbackOne(ctx context.Context, ex database.Execer, m *migration.Migration) error {
	if m.Version.Value == 0 {
		return database.ErrMigrationVersionNotSpecified
	}

	removeVersionQuery, args, err := g.dialect.RemoveQuery(m)
	if err != nil {
		return err
	}

	for _, script := range m.Rollback {
		g.lg.SQL(script)
		if _, err := ex.ExecContext(ctx, script); err != nil {
			return errors.Wrapf(err, "could not rollback script [%s], migration %s", script, m.Key)
		}
	}

	g.lg.SQL(removeVersionQuery, args...)

	if _, err := ex.ExecContext(ctx, removeVersionQuery, args...); err != nil {
		return errors.Wrapf(err, "could not remove migration version %d", m.Version.Value)
	}

	return nil
}

func (g *SQLGateway) handleError(ctx context.Context, err error, tx *sqlx.Tx) error {
	var result = err

	if tx != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			result = errors.Wrap(result, rollbackErr.Error())
		}
	}

	if unlockErr := g.locker.Unlock(ctx, g.conn); unlockErr != nil {
		result = errors.Wrap(result, unlockErr.Error())
	}

	return result
}

func readVersions(ctx context.Context, q database.Queryer, d database.Dialect) ([]migration.Version, error) {
	var rows []versionRow
	if err := q.SelectContext(ctx, &rows, d.ReadVersionsQuery()); err != nil {
		return nil, errors.Wrap(err, "could not read migration versions")
	}

	result := make([]migration.Version, 0, len(rows))
	for _, r := range rows {
		result = append(result, migration.Version{Value: r.Version, MigratedAt: r.MigratedAt})
	}

	return result, nil
}

// ReadVersions reads applied versions with any queryer,
// the versions table is created when missing
func ReadVersions(ctx context.Context, q database.Queryer, d database.Dialect) ([]migration.Version, error) {
	if _, err := q.ExecContext(ctx, d.InitQuery()); err != nil {
		return nil, errors.Wrap(err, "could not ensure migrations table")
	}

	return readVersions(ctx, q, d)
}
