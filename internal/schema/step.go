package schema

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Kind classifies a schema-change step.
type Kind string

const (
	CreateTable Kind = "create-table"
	AlterTable  Kind = "alter-table"
	CreateIndex Kind = "create-index"
)

// Step is one schema change, executed as a single statement.
type Step struct {
	Kind  Kind
	Label string
	Table string
	// References are the tables this step's foreign keys point at.
	References []string
	// Deferred marks the step that closes the circular reference.
	Deferred bool
	// Identity is set on create-table steps whose key is server generated.
	Identity bool
	SQL      string
}

// TableAffecting reports whether the step creates or alters a table.
func (s Step) TableAffecting() bool {
	return s.Kind == CreateTable || s.Kind == AlterTable
}

// Catalog is the ordered list of schema-change steps.
type Catalog struct {
	Steps []Step
}

// Build renders tables, the deferred alteration and indexes into steps, in
// that order.
func Build(tables []Table, deferred Alteration, indexes []Index) Catalog {
	steps := make([]Step, 0, len(tables)+1+len(indexes))
	for _, t := range tables {
		steps = append(steps, Step{
			Kind:       CreateTable,
			Label:      "create table " + t.Name,
			Table:      t.Name,
			References: t.References(),
			Identity:   t.HasIdentity(),
			SQL:        RenderCreateTable(t),
		})
	}
	steps = append(steps, Step{
		Kind:       AlterTable,
		Label:      fmt.Sprintf("alter table %s: add %s", deferred.Table, columnNames(deferred.Columns)),
		Table:      deferred.Table,
		References: referencedTables(deferred.Table, deferred.ForeignKeys),
		Deferred:   true,
		SQL:        RenderAlteration(deferred),
	})
	for _, ix := range indexes {
		steps = append(steps, Step{
			Kind:  CreateIndex,
			Label: "create index " + ix.Name,
			Table: ix.Table,
			SQL:   RenderIndex(ix),
		})
	}
	return Catalog{Steps: steps}
}

// Len is the number of steps.
func (c Catalog) Len() int { return len(c.Steps) }

// Tables returns the created tables in creation order.
func (c Catalog) Tables() []string {
	var out []string
	for _, s := range c.Steps {
		if s.Kind == CreateTable {
			out = append(out, s.Table)
		}
	}
	return out
}

// TruncationOrder is the exact reverse of the creation order. Every created
// table holds data.
func (c Catalog) TruncationOrder() []string {
	tables := c.Tables()
	out := make([]string, len(tables))
	for i, t := range tables {
		out[len(tables)-1-i] = t
	}
	return out
}

// IdentityTables lists tables whose surrogate-key counter a reseed resets,
// in creation order.
func (c Catalog) IdentityTables() []string {
	var out []string
	for _, s := range c.Steps {
		if s.Kind == CreateTable && s.Identity {
			out = append(out, s.Table)
		}
	}
	return out
}

// Step returns the step with the given label.
func (c Catalog) Step(label string) (Step, bool) {
	for _, s := range c.Steps {
		if s.Label == label {
			return s, true
		}
	}
	return Step{}, false
}

func quote(name string) string { return pgx.Identifier{name}.Sanitize() }

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

func columnNames(cols []Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func renderColumn(c Column) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type)
	if c.Identity {
		b.WriteString(" generated by default as identity")
	}
	if c.PrimaryKey {
		b.WriteString(" primary key")
	} else if c.Required {
		b.WriteString(" not null")
	}
	if c.DefaultExpr != "" {
		b.WriteString(" default ")
		b.WriteString(c.DefaultExpr)
	}
	return b.String()
}

func renderCheck(table string, c Column) string {
	literals := make([]string, len(c.Allowed))
	for i, v := range c.Allowed {
		literals[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprintf("constraint %s check (%s in (%s))",
		quote("ck_"+table+"_"+c.Name), quote(c.Name), strings.Join(literals, ", "))
}

func renderUnique(u Unique) string {
	return fmt.Sprintf("constraint %s unique (%s)", quote(u.Name), quoteList(u.Columns))
}

func renderForeignKey(f ForeignKey) string {
	s := fmt.Sprintf("constraint %s foreign key (%s) references %s (%s)",
		quote(f.Name), quote(f.Column), quote(f.RefTable), quote(f.RefColumn))
	if f.OnDelete != "" {
		s += " on delete " + f.OnDelete
	}
	return s
}

// RenderCreateTable renders a create table statement.
func RenderCreateTable(t Table) string {
	var parts []string
	for _, c := range t.Columns {
		parts = append(parts, renderColumn(c))
	}
	for _, c := range t.Columns {
		if len(c.Allowed) > 0 {
			parts = append(parts, renderCheck(t.Name, c))
		}
	}
	for _, u := range t.Uniques {
		parts = append(parts, renderUnique(u))
	}
	for _, f := range t.ForeignKeys {
		parts = append(parts, renderForeignKey(f))
	}
	return fmt.Sprintf("create table %s (\n  %s\n)", quote(t.Name), strings.Join(parts, ",\n  "))
}

// RenderAlteration renders one alter table statement carrying every change.
func RenderAlteration(a Alteration) string {
	var parts []string
	for _, c := range a.Columns {
		parts = append(parts, "add column "+renderColumn(c))
	}
	for _, c := range a.Columns {
		if len(c.Allowed) > 0 {
			parts = append(parts, "add "+renderCheck(a.Table, c))
		}
	}
	for _, u := range a.Uniques {
		parts = append(parts, "add "+renderUnique(u))
	}
	for _, f := range a.ForeignKeys {
		parts = append(parts, "add "+renderForeignKey(f))
	}
	return fmt.Sprintf("alter table %s\n  %s", quote(a.Table), strings.Join(parts, ",\n  "))
}

// RenderIndex renders a create index statement.
func RenderIndex(ix Index) string {
	return fmt.Sprintf("create index %s on %s (%s)", quote(ix.Name), quote(ix.Table), quoteList(ix.Columns))
}
