package source

import (
	"context"
	"strings"
	"unicode"

	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

var ErrInvalidVersion = errors.New("invalid version in migration filename")
var ErrNotAMigrationFile = errors.New("not a migration file")
var ErrTooManyFilesForKey = errors.New("too many files for single migration key")
var ErrMigrationAlreadyExists = errors.New("migration already exists")

type Filter struct {
	Versions []migration.Version
}

type Selector interface {
	Select(ctx context.Context, f Filter) (migration.Migrations, error)
}

type Source interface {
	Selector

	IsValid() bool
	AlreadyExists(version uint64, name string) bool
	Create(version uint64, name string, withRollback bool) (*migration.Migration, error)
}

func filterMigrations(m migration.Migrations, f Filter) migration.Migrations {
	if len(f.Versions) == 0 {
		return m
	}

	var result migration.Migrations
	for i := range m {
		if migration.InVersions(m[i].Version, f.Versions) {
			result = append(result, m[i])
		}
	}

	return result
}

func ucFirst(s string) string {
	r := []rune(s)

	if len(r) == 0 {
		return ""
	}

	f := string(unicode.ToUpper(r[0]))

	return f + string(r[1:])
}

func nameFromKeySegment(segment string) string {
	return ucFirst(strings.ReplaceAll(segment, "_", " "))
}
