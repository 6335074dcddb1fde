package tenants

import (
	"github.com/denismitr/tenants/internal/source"
	"github.com/denismitr/tenants/migration"
)

// UseLocalFolderSource reads migrations from folder, the source is built
// once all options are applied so it shares the operator logger
func UseLocalFolderSource(folder string) OptionFunc {
	return func(o *Operator) error {
		o.selector = nil
		o.migrationsFolder = folder
		return nil
	}
}

func UseInMemorySource(factories ...migration.Factory) OptionFunc {
	return func(o *Operator) error {
		s, err := source.NewInMemorySource(factories...)
		if err != nil {
			return configuration(err)
		}

		o.selector = s
		return nil
	}
}
