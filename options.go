package tenants

import (
	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/logger"
	"github.com/denismitr/tenants/internal/schema"
)

type OptionFunc func(*Operator) error

func UseColorLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return func(o *Operator) error {
		o.lg = logger.NewColorLogger(p, printSql, printDebug)
		return nil
	}
}

func UseBWLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return func(o *Operator) error {
		o.lg = logger.NewBWLogger(p, printSql, printDebug)
		return nil
	}
}

// UseDriver plugs in an already opened driver, the operator closes it
func UseDriver(d database.Driver) OptionFunc {
	return func(o *Operator) error {
		o.driver = d
		return nil
	}
}

func WithTenants(tenants ...string) OptionFunc {
	return func(o *Operator) error {
		o.cfg.Tenants = tenants
		return nil
	}
}

func WithConcurrency(n int) OptionFunc {
	return func(o *Operator) error {
		o.cfg.Concurrency = n
		return nil
	}
}

func IgnoreEmptyTenants(ignore bool) OptionFunc {
	return func(o *Operator) error {
		o.cfg.IgnoreEmptyTenants = ignore
		return nil
	}
}

func WithSeedsFile(path string) OptionFunc {
	return func(o *Operator) error {
		o.cfg.SeedsFile = path
		return nil
	}
}

// WithSchemaDump configures the structure dump, dumpAfterBatch controls
// the dump that follows migrate and rollback tasks
func WithSchemaDump(format schema.Format, file, referenceTenant string, dumpAfterBatch bool) OptionFunc {
	return func(o *Operator) error {
		o.cfg.Schema = SchemaConfig{
			Dump:   dumpAfterBatch,
			Format: string(format),
			File:   file,
			Tenant: referenceTenant,
		}
		return nil
	}
}

// UseConfig replaces every setting at once
func UseConfig(cfg Config) OptionFunc {
	return func(o *Operator) error {
		o.cfg = cfg
		return nil
	}
}
