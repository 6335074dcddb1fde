package schema

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/database/sqlgateway"
	"github.com/denismitr/tenants/internal/logger"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Format string

const (
	FormatSQL  Format = "sql"
	FormatYAML Format = "yaml"

	DefaultSQLFile  = "./db/structure.sql"
	DefaultYAMLFile = "./db/schema.yaml"
)

var ErrUnsupportedFormat = errors.New("unsupported schema format")

type Options struct {
	Format Format
	File   string
}

// Normalize fills in defaults and rejects unknown formats
func (o Options) Normalize() (Options, error) {
	switch o.Format {
	case "":
		o.Format = FormatSQL
	case FormatSQL, FormatYAML:
	default:
		return o, errors.Wrapf(ErrUnsupportedFormat, "[%s]", o.Format)
	}

	if o.File == "" {
		if o.Format == FormatYAML {
			o.File = DefaultYAMLFile
		} else {
			o.File = DefaultSQLFile
		}
	}

	return o, nil
}

// Dumper writes the structure of a reference tenant to a file.
// It keeps no state between calls, every Dump rewrites the file.
type Dumper struct {
	driver database.Driver
	opts   Options
	lg     logger.Logger
}

func New(driver database.Driver, opts Options, lg logger.Logger) (*Dumper, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	if lg == nil {
		lg = logger.NullLogger{}
	}

	return &Dumper{driver: driver, opts: opts, lg: lg}, nil
}

func (d *Dumper) File() string {
	return d.opts.File
}

// Reference picks the tenant whose structure is dumped
func Reference(configured string, tenants []string) string {
	if configured != "" {
		return configured
	}

	if len(tenants) > 0 {
		return tenants[0]
	}

	return ""
}

func (d *Dumper) Dump(ctx context.Context, tenant string) error {
	if tenant == "" {
		d.lg.Warnf("no reference tenant, schema dump skipped")
		return nil
	}

	exists, err := d.driver.TenantExists(ctx, tenant)
	if err != nil {
		return err
	}

	// a postgres session opens fine with a search_path that names no schema
	if !exists {
		return errors.Wrapf(database.ErrTenantNotFound, "[%s]", tenant)
	}

	db, err := d.driver.OpenTenant(ctx, tenant)
	if err != nil {
		return err
	}

	defer db.Close()

	// versions first, the migrations table must be part of every dump
	versions, err := sqlgateway.ReadVersions(ctx, db, d.driver.Dialect())
	if err != nil {
		return errors.Wrapf(err, "could not read versions of tenant [%s]", tenant)
	}

	s, err := d.driver.ReadSchema(ctx, db)
	if err != nil {
		return errors.Wrapf(err, "could not read schema of tenant [%s]", tenant)
	}

	s.Versions = versions

	s.SortTables()

	var contents []byte
	if d.opts.Format == FormatYAML {
		contents, err = RenderYAML(s)
	} else {
		contents, err = RenderSQL(s, tenant, d.driver.Dialect().MigrationsTable())
	}

	if err != nil {
		return err
	}

	if err := writeAtomically(d.opts.File, contents); err != nil {
		return err
	}

	d.lg.Successf("schema of tenant [%s] dumped to %s", tenant, d.opts.File)

	return nil
}

func RenderSQL(s *database.Schema, tenant, migrationsTable string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("-- structure of tenant " + tenant + "\n")
	buf.WriteString("-- dialect: " + s.Dialect + "\n")

	for _, t := range s.Tables {
		buf.WriteString("\n")
		buf.WriteString(strings.TrimRight(strings.TrimSpace(t.DDL), ";"))
		buf.WriteString(";\n")
	}

	if len(s.Versions) > 0 {
		buf.WriteString("\n")
	}

	for _, v := range s.Versions {
		buf.WriteString(fmt.Sprintf("INSERT INTO %s (version) VALUES (%d);\n", migrationsTable, v.Value))
	}

	return buf.Bytes(), nil
}

type yamlDump struct {
	Dialect  string           `yaml:"dialect"`
	Tables   []database.Table `yaml:"tables"`
	Versions []uint64         `yaml:"versions"`
}

func RenderYAML(s *database.Schema) ([]byte, error) {
	dump := yamlDump{
		Dialect: s.Dialect,
		Tables:  s.Tables,
	}

	for _, v := range s.Versions {
		dump.Versions = append(dump.Versions, v.Value)
	}

	out, err := yaml.Marshal(&dump)
	if err != nil {
		return nil, errors.Wrap(err, "could not render yaml schema")
	}

	return out, nil
}

// writeAtomically replaces the file so readers never see a partial dump
func writeAtomically(file string, contents []byte) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "could not create folder [%s]", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(file)+".*")
	if err != nil {
		return errors.Wrapf(err, "could not create temporary file in [%s]", dir)
	}

	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "could not chmod [%s]", tmp.Name())
	}

	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "could not write [%s]", tmp.Name())
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "could not close [%s]", tmp.Name())
	}

	if err := os.Rename(tmp.Name(), file); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "could not move schema dump to [%s]", file)
	}

	return nil
}
