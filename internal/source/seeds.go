package source

import (
	"os"

	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

const DefaultSeedsFile = "./db/seeds.sql"

var ErrSeedsFileNotFound = errors.New("seeds file not found")
var ErrSeedsFileIsEmpty = errors.New("seeds file has no statements")

// ReadSeeds splits the seeds file into statements
func ReadSeeds(path string) ([]string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSeedsFileNotFound, "[%s]", path)
		}

		return nil, errors.Wrapf(err, "could not read seeds file [%s]", path)
	}

	statements := migration.SplitStatements(string(contents))
	if len(statements) == 0 {
		return nil, errors.Wrapf(ErrSeedsFileIsEmpty, "[%s]", path)
	}

	return statements, nil
}
