package sqlite

import (
	"fmt"

	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

type Dialect struct {
	migrationsTable string
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable string) *Dialect {
	if migrationsTable == "" {
		migrationsTable = database.DefaultMigrationsTable
	}

	return &Dialect{migrationsTable: migrationsTable}
}

func (d Dialect) MigrationsTable() string {
	return d.migrationsTable
}

func (d Dialect) InitQuery() string {
	const createSQL = `CREATE TABLE IF NOT EXISTS %s (
		version INTEGER PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		migrated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	return fmt.Sprintf(createSQL, quoteIdentifier(d.migrationsTable))
}

func (d Dialect) InsertQuery(m *migration.Migration) (string, []interface{}, error) {
	const insertSQL = "INSERT INTO %s (version, name, migrated_at) VALUES (?, ?, ?)"

	if m.Version.Value == 0 {
		return "", nil, errors.Wrap(database.ErrMigrationIsMalformed, "version must be greater than 0")
	}

	if m.Version.MigratedAt.IsZero() {
		return "", nil, errors.Wrap(database.ErrMigrationIsMalformed, "migrated at must be specified")
	}

	return fmt.Sprintf(insertSQL, quoteIdentifier(d.migrationsTable)), []interface{}{
		int64(m.Version.Value),
		m.Name,
		m.Version.MigratedAt,
	}, nil
}

func (d Dialect) ReadVersionsQuery() string {
	const readSQL = "SELECT version, migrated_at FROM %s ORDER BY version ASC"
	return fmt.Sprintf(readSQL, quoteIdentifier(d.migrationsTable))
}

func (d Dialect) RemoveQuery(m *migration.Migration) (string, []interface{}, error) {
	const removeSQL = "DELETE FROM %s WHERE version = ?"

	if m.Version.Value == 0 {
		return "", nil, errors.Wrap(database.ErrMigrationIsMalformed, "version must be greater than 0")
	}

	return fmt.Sprintf(removeSQL, quoteIdentifier(d.migrationsTable)), []interface{}{int64(m.Version.Value)}, nil
}

func (d Dialect) DropQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(d.migrationsTable))
}
