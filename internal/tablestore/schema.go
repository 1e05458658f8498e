package tablestore

import "strings"

// Table is a table identifier. Only the package-level descriptors below can
// produce one, so identifiers interpolated into SQL never come from input.
type Table struct {
	name string
}

func (t Table) Name() string { return t.name }

// Column is a column identifier from the same closed set as Table.
type Column struct {
	name string
}

func (c Column) Name() string { return c.name }

var (
	ColID       = Column{name: "id"}
	ColUserData = Column{name: "userData"}
	ColChatID   = Column{name: "chatId"}
	ColTipo     = Column{name: "tipo"}
	ColData     = Column{name: "data"}
	ColType     = Column{name: "type"}
)

// Descriptor pairs a table with its text columns. The surrogate id column is
// implicit and never listed.
type Descriptor struct {
	table   Table
	columns []Column
}

func (d Descriptor) Table() Table { return d.table }

func (d Descriptor) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// ColumnSpec renders the comma separated column list, e.g. "userData, chatId, tipo".
func (d Descriptor) ColumnSpec() string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

var (
	// Users holds registered users; tipo is the role tag ("MASTER").
	Users = Descriptor{
		table:   Table{name: "users"},
		columns: []Column{ColUserData, ColChatID, ColTipo},
	}
	// Catalog holds catalog entries collected by the catalogo command.
	Catalog = Descriptor{
		table:   Table{name: "catalogo"},
		columns: []Column{ColData, ColType},
	}
	// Config holds keyed settings (links, texts) addressed by their type.
	Config = Descriptor{
		table:   Table{name: "config"},
		columns: []Column{ColData, ColType},
	}
)

// RoleMaster tags the privileged user created at bootstrap.
const RoleMaster = "MASTER"

// Descriptors lists every known descriptor.
func Descriptors() []Descriptor {
	return []Descriptor{Users, Catalog, Config}
}

// Lookup resolves a table name to a known descriptor.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.table.name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// LookupColumn resolves a column name within d, including the implicit id.
func LookupColumn(d Descriptor, name string) (Column, bool) {
	if name == ColID.name {
		return ColID, true
	}
	for _, c := range d.columns {
		if c.name == name {
			return c, true
		}
	}
	return Column{}, false
}
