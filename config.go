package tenants

import (
	"github.com/denismitr/tenants/internal/batch"
	"github.com/denismitr/tenants/internal/source"
)

type SchemaConfig struct {
	Dump   bool
	Format string
	File   string
	Tenant string
}

// Config holds the settings of one operator, it never changes after New
type Config struct {
	Tenants            []string
	Concurrency        int
	IgnoreEmptyTenants bool
	SeedsFile          string
	Schema             SchemaConfig
}

func NewDefaultConfig() Config {
	return Config{
		Concurrency: batch.DefaultConcurrency,
		SeedsFile:   source.DefaultSeedsFile,
		Schema: SchemaConfig{
			Dump: true,
		},
	}
}
