package migration

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidVersion = errors.New("invalid migration version")

type (
	Version struct {
		Value      uint64
		MigratedAt time.Time
	}

	Migration struct {
		Key      string
		Name     string
		Version  Version
		Migrate  []string
		Rollback []string
	}

	Factory func() (*Migration, error)
)

func New(version uint64, name string, migrate, rollback []string) Factory {
	return func() (*Migration, error) {
		if version == 0 {
			return nil, errors.Wrapf(ErrInvalidVersion, "migration [%s] has no version", name)
		}

		return &Migration{
			Key:      CreateKeyFromVersionAndName(version, name),
			Name:     name,
			Version:  Version{Value: version},
			Migrate:  migrate,
			Rollback: rollback,
		}, nil
	}
}

// MigrateScripts joins migrate statements into a single printable script
func (m *Migration) MigrateScripts() string {
	return joinScripts(m.Migrate)
}

// RollbackScripts joins rollback statements into a single printable script
func (m *Migration) RollbackScripts() string {
	return joinScripts(m.Rollback)
}

func (m *Migration) String() string {
	return m.Key
}

func joinScripts(scripts []string) string {
	var ms bytes.Buffer

	for i := range scripts {
		ms.WriteString(scripts[i])

		if !strings.HasSuffix(scripts[i], ";") {
			ms.WriteString(";")
		}

		if i < len(scripts)-1 {
			ms.WriteString("\n")
		}
	}

	return ms.String()
}

type Migrations []*Migration

func NewMigrations(factories ...Factory) (Migrations, error) {
	migrations := make(Migrations, len(factories))

	for i := range factories {
		m, err := factories[i]()
		if err != nil {
			return nil, err
		}

		migrations[i] = m
	}

	sort.Sort(migrations)

	return migrations, nil
}

func (m Migrations) Keys() (result []string) {
	for i := range m {
		result = append(result, m[i].Key)
	}
	return result
}

// Find returns the migration with the given version or nil
func (m Migrations) Find(v Version) *Migration {
	for i := range m {
		if m[i].Version.Value == v.Value {
			return m[i]
		}
	}

	return nil
}

func (m Migrations) Len() int {
	return len(m)
}

func (m Migrations) Less(i, j int) bool {
	return m[i].Version.Value < m[j].Version.Value
}

func (m Migrations) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}

func CreateKeyFromVersionAndName(version uint64, name string) string {
	var result bytes.Buffer
	result.WriteString(strconv.FormatUint(version, 10))
	result.WriteString("_")
	result.WriteString(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_"))
	return result.String()
}

// VersionFromString parses a positive integer version, such as the one
// given through the VERSION input
func VersionFromString(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, errors.Wrap(ErrInvalidVersion, "version is empty")
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return Version{}, errors.Wrapf(ErrInvalidVersion, "[%s] is not a positive integer", s)
	}

	return Version{Value: v}, nil
}

func InVersions(version Version, versions []Version) bool {
	for _, v := range versions {
		if v.Value == version.Value {
			return true
		}
	}

	return false
}

// SplitStatements breaks a script into statements on semicolons that end a line.
// Lines starting with "--" are dropped.
func SplitStatements(script string) []string {
	var result []string
	var current bytes.Buffer

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		stmt = strings.TrimSuffix(stmt, ";")
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			result = append(result, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(strings.TrimRight(line, " \t\r"))

		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	flush()

	return result
}
