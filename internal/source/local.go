package source

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/denismitr/tenants/internal/logger"
	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const DefaultMigrationsFolder = "./db/migrations"

const (
	defaultSqlExtension = "sql"

	migrateFileSuffix                = "migrate"
	rollbackFileSuffix               = "rollback"
	defaultMigrateFileFullExtension  = ".migrate.sql"
	defaultRollbackFileFullExtension = ".rollback.sql"

	versionFormat = `^(?P<version>\d{9,14})(_[\w-]+)?$`
	nameFormat    = `^\d{9,14}_(?P<name>\w+[\w_-]+)?$`

	maxConcurrentReads = 8
)

var (
	versionRegexp = regexp.MustCompile(versionFormat)
	nameRegexp    = regexp.MustCompile(nameFormat)
)

// LocalFileSource reads migrations from a folder of
// <version>_<name>.migrate.sql and optional <version>_<name>.rollback.sql files
type LocalFileSource struct {
	folder string
	lg     logger.Logger
}

var _ Source = (*LocalFileSource)(nil)

func NewLocalFSSource(folder string, lg logger.Logger) *LocalFileSource {
	if lg == nil {
		lg = logger.NullLogger{}
	}

	return &LocalFileSource{
		folder: folder,
		lg:     lg,
	}
}

func (lfs *LocalFileSource) Folder() string {
	return lfs.folder
}

func (lfs *LocalFileSource) IsValid() bool {
	info, err := os.Stat(lfs.folder)
	if err != nil {
		return false
	}

	return info.IsDir()
}

func (lfs *LocalFileSource) AlreadyExists(version uint64, name string) bool {
	key := migration.CreateKeyFromVersionAndName(version, name)
	filename := filepath.Join(lfs.folder, key+defaultMigrateFileFullExtension)
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}

	return !info.IsDir()
}

// Create writes empty migration files for a new version
func (lfs *LocalFileSource) Create(version uint64, name string, withRollback bool) (*migration.Migration, error) {
	if lfs.AlreadyExists(version, name) {
		return nil, errors.Wrapf(ErrMigrationAlreadyExists, "version %d", version)
	}

	m, err := migration.New(version, nameFromKeySegment(name), nil, nil)()
	if err != nil {
		return nil, err
	}

	m.Key = migration.CreateKeyFromVersionAndName(version, name)

	if err := os.MkdirAll(lfs.folder, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create folder [%s]", lfs.folder)
	}

	if err := createEmptyFile(filepath.Join(lfs.folder, m.Key+defaultMigrateFileFullExtension)); err != nil {
		return nil, err
	}

	if withRollback {
		if err := createEmptyFile(filepath.Join(lfs.folder, m.Key+defaultRollbackFileFullExtension)); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (lfs *LocalFileSource) Select(ctx context.Context, f Filter) (migration.Migrations, error) {
	keys, err := lfs.getAllKeysFromFolder()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var result migration.Migrations

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)

	for key := range keys {
		key := key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			m, err := lfs.readOne(key)
			if err != nil {
				mErr := errors.Wrapf(err, "with key %s", key)
				lfs.lg.Error(mErr)
				return mErr
			}

			mu.Lock()
			result = append(result, m)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Sort(result)

	for i := 1; i < len(result); i++ {
		if result[i].Version.Value == result[i-1].Version.Value {
			return nil, errors.Wrapf(
				ErrTooManyFilesForKey,
				"%s and %s share version %d", result[i-1].Key, result[i].Key, result[i].Version.Value,
			)
		}
	}

	return filterMigrations(result, f), nil
}

func (lfs *LocalFileSource) getAllKeysFromFolder() (map[string]int, error) {
	files, err := os.ReadDir(lfs.folder)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read keys from folder %s", lfs.folder)
	}

	keys := make(map[string]int)

	for i := range files {
		if files[i].IsDir() {
			continue
		}

		key, err := convertLocalFilePathToKey(files[i].Name())
		if err != nil {
			lfs.lg.Debugf("skipping %s: %s", files[i].Name(), err)
			continue
		}

		keys[key]++
		if keys[key] > 2 {
			return nil, errors.Wrapf(ErrTooManyFilesForKey, "%s", key)
		}
	}

	return keys, nil
}

func (lfs *LocalFileSource) readOne(key string) (*migration.Migration, error) {
	up := filepath.Join(lfs.folder, key+defaultMigrateFileFullExtension)
	down := filepath.Join(lfs.folder, key+defaultRollbackFileFullExtension)

	migrateContents, err := os.ReadFile(up)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", up)
	}

	rollbackContents, err := os.ReadFile(down)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "could not read %s", down)
	}

	return createMigration(key, string(migrateContents), string(rollbackContents))
}

func createMigration(key, migrateContents, rollbackContents string) (*migration.Migration, error) {
	version, err := extractVersionFromKey(key)
	if err != nil {
		return nil, err
	}

	m, err := migration.New(
		version,
		extractNameFromKey(key),
		migration.SplitStatements(migrateContents),
		migration.SplitStatements(rollbackContents),
	)()
	if err != nil {
		return nil, err
	}

	m.Key = key

	return m, nil
}

func extractVersionFromKey(key string) (uint64, error) {
	matches := versionRegexp.FindStringSubmatch(key)
	if len(matches) < 2 {
		return 0, errors.Wrapf(ErrInvalidVersion, "key %s", key)
	}

	v, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidVersion, "key %s", key)
	}

	return v, nil
}

func extractNameFromKey(key string) string {
	matches := nameRegexp.FindStringSubmatch(key)
	if len(matches) < 2 {
		return ""
	}

	return nameFromKeySegment(matches[1])
}

func convertLocalFilePathToKey(path string) (string, error) {
	base := filepath.Base(path)
	segments := strings.Split(base, ".")

	if len(segments) != 3 || segments[0] == "" {
		return "", ErrNotAMigrationFile
	}

	if segments[2] != defaultSqlExtension || !(segments[1] == migrateFileSuffix || segments[1] == rollbackFileSuffix) {
		return "", ErrNotAMigrationFile
	}

	if !versionRegexp.MatchString(segments[0]) {
		return "", ErrNotAMigrationFile
	}

	return segments[0], nil
}

func createEmptyFile(filename string) error {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrapf(err, "could not create file [%s]", filename)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "could not close file %s", filename)
	}

	return nil
}
