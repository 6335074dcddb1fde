package database

import (
	"sort"

	"github.com/denismitr/tenants/migration"
)

type Column struct {
	Name     string  `db:"name" yaml:"name"`
	Type     string  `db:"type" yaml:"type"`
	Nullable bool    `db:"nullable" yaml:"nullable"`
	Default  *string `db:"column_default" yaml:"default,omitempty"`
}

type Table struct {
	Name    string   `yaml:"name"`
	DDL     string   `yaml:"-"`
	Columns []Column `yaml:"columns"`
}

// Schema is a snapshot of a tenant structure
type Schema struct {
	Dialect  string
	Tables   []Table
	Versions []migration.Version
}

func (s *Schema) SortTables() {
	sort.Slice(s.Tables, func(i, j int) bool {
		return s.Tables[i].Name < s.Tables[j].Name
	})
}

func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}

	return nil
}
