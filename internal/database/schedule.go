package database

import (
	"github.com/denismitr/tenants/migration"
)

// ScheduleForMigration picks pending migrations in ascending order
func ScheduleForMigration(
	migrations migration.Migrations,
	migratedVersions []migration.Version,
	p Plan,
) migration.Migrations {
	var scheduled migration.Migrations

	for i := range migrations {
		if migration.InVersions(migrations[i].Version, migratedVersions) {
			continue
		}

		if len(p.Versions) > 0 && !migration.InVersions(migrations[i].Version, p.Versions) {
			continue
		}

		if p.Steps != 0 && len(scheduled) >= p.Steps {
			break
		}

		scheduled = append(scheduled, migrations[i])
	}

	return scheduled
}

// ScheduleForRollback picks applied migrations starting from the latest one
func ScheduleForRollback(
	migrations migration.Migrations,
	migratedVersions []migration.Version,
	p Plan,
) migration.Migrations {
	var scheduled migration.Migrations

	for i := len(migrations) - 1; i >= 0; i-- {
		if !migration.InVersions(migrations[i].Version, migratedVersions) {
			continue
		}

		if len(p.Versions) > 0 && !migration.InVersions(migrations[i].Version, p.Versions) {
			continue
		}

		if p.Steps != 0 && len(scheduled) >= p.Steps {
			break
		}

		scheduled = append(scheduled, migrations[i])
	}

	return scheduled
}
