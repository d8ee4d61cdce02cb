package schema

// Column describes one table column in PostgreSQL terms.
type Column struct {
	Name        string
	Type        string
	Required    bool
	DefaultExpr string
	// Identity marks an integer surrogate key generated by the server.
	Identity   bool
	PrimaryKey bool
	// Allowed restricts the column to a fixed set of text literals.
	Allowed []string
}

// Col starts a nullable column declaration.
func Col(name, typ string) Column { return Column{Name: name, Type: typ} }

func (c Column) NotNull() Column { c.Required = true; return c }

func (c Column) Default(expr string) Column { c.DefaultExpr = expr; return c }

func (c Column) Key() Column { c.PrimaryKey = true; c.Required = true; return c }

func (c Column) OneOf(values ...string) Column {
	c.Allowed = append([]string(nil), values...)
	return c
}

// ForeignKey is a single-column reference to another table.
type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// Unique is a named unique constraint.
type Unique struct {
	Name    string
	Columns []string
}

// Index is a plain secondary index created after all tables exist.
type Index struct {
	Name    string
	Table   string
	Columns []string
}

// Table is the declarative definition a create-table step is rendered from.
type Table struct {
	Name        string
	Columns     []Column
	Uniques     []Unique
	ForeignKeys []ForeignKey
}

// HasIdentity reports whether the table has a server-generated key.
func (t Table) HasIdentity() bool {
	for _, c := range t.Columns {
		if c.Identity {
			return true
		}
	}
	return false
}

// References lists the distinct tables this one points at, in declaration order.
func (t Table) References() []string {
	return referencedTables(t.Name, t.ForeignKeys)
}

// Alteration adds columns and constraints to an existing table.
type Alteration struct {
	Table       string
	Columns     []Column
	Uniques     []Unique
	ForeignKeys []ForeignKey
}

func referencedTables(self string, fks []ForeignKey) []string {
	seen := map[string]bool{}
	var out []string
	for _, fk := range fks {
		if fk.RefTable == self || seen[fk.RefTable] {
			continue
		}
		seen[fk.RefTable] = true
		out = append(out, fk.RefTable)
	}
	return out
}

func identity() Column {
	return Column{Name: "id", Type: "integer", Identity: true, PrimaryKey: true, Required: true}
}

func createdAt() Column { return Col("created_at", "timestamptz").Default("now()") }

func timestamps() []Column {
	return []Column{createdAt(), Col("updated_at", "timestamptz").Default("now()")}
}

func columns(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
