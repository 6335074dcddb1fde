package cli

import (
	"io"
	"os"
	"strings"

	"github.com/denismitr/tenants"
	"github.com/denismitr/tenants/internal/source"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "./tenants.yaml"

var (
	ErrDatabaseURLNotDefined = errors.New("database url was not defined")
	ErrConfigFileNotFound    = errors.New("configuration file not found")
)

type (
	// Config is everything the command line needs to build an operator
	Config struct {
		DatabaseURL      string
		MigrationsFolder string
		Operator         tenants.Config
	}

	// Inputs come from the environment and can be overridden with flags
	Inputs struct {
		DB                 string
		Step               string
		Version            string
		IgnoreEmptyTenants bool
	}

	migrationsSection struct {
		DatabaseURL string `yaml:"database_url"`
		LocalFolder string `yaml:"local_folder"`
	}

	schemaSection struct {
		Dump   *bool  `yaml:"dump"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
		Tenant string `yaml:"tenant"`
	}

	configFile struct {
		Version            string            `yaml:"version"`
		Migrations         migrationsSection `yaml:"migrations"`
		Tenants            []string          `yaml:"tenants"`
		Concurrency        int               `yaml:"concurrency"`
		IgnoreEmptyTenants bool              `yaml:"ignore_empty_tenants"`
		SeedsFile          string            `yaml:"seeds_file"`
		Schema             schemaSection     `yaml:"schema"`
	}
)

const configFileStub = `version: "1"
migrations:
  # %%VAR%% reads the value from the environment
  database_url: "%%DATABASE_URL%%"
  local_folder: ./db/migrations
tenants: []
concurrency: 1
ignore_empty_tenants: false
seeds_file: ./db/seeds.sql
schema:
  dump: true
  format: sql
  file: ./db/structure.sql
  tenant: ""
`

// LoadConfig reads the yaml configuration file at path
func LoadConfig(path string) (Config, error) {
	if !FileExists(path) {
		return Config{}, errors.Wrapf(ErrConfigFileNotFound, "[%s]", path)
	}

	f, err := os.Open(path)

	if err != nil {
		return Config{}, errors.Wrap(err, "could not open tenants configuration file")
	}

	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read tenants configuration file")
	}

	return ParseConfig(b, os.Getenv)
}

// ParseConfig builds a Config out of the yaml contents, getenv resolves
// %%VAR%% values
func ParseConfig(b []byte, getenv func(string) string) (Config, error) {
	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return Config{}, errors.Wrap(err, "could not parse tenants configuration file")
	}

	cfg := Config{
		DatabaseURL:      fromEnv(cfgFile.Migrations.DatabaseURL, getenv),
		MigrationsFolder: fromEnv(cfgFile.Migrations.LocalFolder, getenv),
		Operator:         tenants.NewDefaultConfig(),
	}

	if cfg.MigrationsFolder == "" {
		cfg.MigrationsFolder = source.DefaultMigrationsFolder
	}

	for _, t := range cfgFile.Tenants {
		cfg.Operator.Tenants = append(cfg.Operator.Tenants, fromEnv(t, getenv))
	}

	if cfgFile.Concurrency != 0 {
		cfg.Operator.Concurrency = cfgFile.Concurrency
	}

	cfg.Operator.IgnoreEmptyTenants = cfgFile.IgnoreEmptyTenants

	if seeds := fromEnv(cfgFile.SeedsFile, getenv); seeds != "" {
		cfg.Operator.SeedsFile = seeds
	}

	if cfgFile.Schema.Dump != nil {
		cfg.Operator.Schema.Dump = *cfgFile.Schema.Dump
	}

	cfg.Operator.Schema.Format = cfgFile.Schema.Format
	cfg.Operator.Schema.File = fromEnv(cfgFile.Schema.File, getenv)
	cfg.Operator.Schema.Tenant = fromEnv(cfgFile.Schema.Tenant, getenv)

	return cfg, nil
}

// Apply lets the inputs override what the configuration file says
func (cfg Config) Apply(in Inputs) (Config, error) {
	if in.IgnoreEmptyTenants {
		cfg.Operator.IgnoreEmptyTenants = true
	}

	if cfg.DatabaseURL == "" {
		return cfg, tenants.ConfigurationError(ErrDatabaseURLNotDefined)
	}

	return cfg, nil
}

// InputsFromEnv reads DB, STEP, VERSION and IGNORE_EMPTY_TENANTS
func InputsFromEnv(getenv func(string) string) Inputs {
	return Inputs{
		DB:                 getenv("DB"),
		Step:               getenv("STEP"),
		Version:            getenv("VERSION"),
		IgnoreEmptyTenants: ParseFlag(getenv("IGNORE_EMPTY_TENANTS")),
	}
}

// ParseFlag treats 1, true, yes and on as set
func ParseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}

	return false
}

func fromEnv(v string, getenv func(string) string) string {
	if strings.HasPrefix(v, "%%") && strings.HasSuffix(v, "%%") && len(v) > 4 {
		return getenv(strings.ReplaceAll(v, "%%", ""))
	}

	return v
}
