package source

import (
	"context"
	"sort"

	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

var ErrNoMigrations = errors.New("no migrations")

// InMemorySource serves migrations declared in code
type InMemorySource struct {
	migrations migration.Migrations
}

var _ Source = (*InMemorySource)(nil)

func NewInMemorySource(factories ...migration.Factory) (*InMemorySource, error) {
	m, err := migration.NewMigrations(factories...)
	if err != nil {
		return nil, err
	}

	return &InMemorySource{
		migrations: m,
	}, nil
}

func (c *InMemorySource) Select(ctx context.Context, f Filter) (migration.Migrations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.migrations == nil {
		return nil, ErrNoMigrations
	}

	return filterMigrations(c.migrations, f), nil
}

func (c *InMemorySource) IsValid() bool {
	return true
}

func (c *InMemorySource) AlreadyExists(version uint64, _ string) bool {
	return c.migrations.Find(migration.Version{Value: version}) != nil
}

func (c *InMemorySource) Create(version uint64, name string, withRollback bool) (*migration.Migration, error) {
	if c.AlreadyExists(version, name) {
		return nil, errors.Wrapf(ErrMigrationAlreadyExists, "version %d", version)
	}

	var rollback []string
	if withRollback {
		rollback = []string{}
	}

	m, err := migration.New(version, name, []string{}, rollback)()
	if err != nil {
		return nil, err
	}

	c.migrations = append(c.migrations, m)
	sort.Sort(c.migrations)

	return m, nil
}
