package schema

import (
	"fmt"
	"sort"

	"rizom/internal/rizom"
)

// Column maps one form field to a storage column.
type Column struct {
	Name      string // storage name, double-underscore nesting
	Path      string // canonical dotted document path
	Kind      rizom.FieldKind
	Localized bool
	NotNull   bool
	Unique    bool
}

// Table is a named set of field columns. Identity and ordering columns
// (id, ownerId, path, position, locale, timestamps) are implied by the table
// role and added by the DDL generator.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the column with the given storage name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether a storage column exists on the table.
func (t *Table) HasColumn(name string) bool { return t.Column(name) != nil }

// ChildTable is a block or tree table plus its optional locale side-table.
type ChildTable struct {
	Table
	Locales *Table
}

// RelationTable is the junction table of one content table: one target-id
// column per distinct relation target type.
type RelationTable struct {
	Name    string
	Targets []string // sorted target slugs
}

// TypeTables is the full relational shape of one document type.
type TypeTables struct {
	Slug      string
	Versioned bool
	Draft     bool
	// Root is the root table name. For versioned types it holds identity
	// and timestamps only.
	Root string
	// Content is the table carrying field columns: Root for unversioned
	// types, the versions table otherwise. All child tables hang off it.
	Content string
	// Main holds the non-localized content columns.
	Main Table
	// Locales holds the localized subset, nil when no field is localized.
	Locales *Table
	// Blocks indexes block tables by block type name, Trees by tree field
	// name.
	Blocks map[string]*ChildTable
	Trees  map[string]*ChildTable
	// Relations is nil when the type has no relation fields.
	Relations *RelationTable
}

// BlockTypeNames returns the block type names sorted.
func (tt *TypeTables) BlockTypeNames() []string {
	names := make([]string, 0, len(tt.Blocks))
	for n := range tt.Blocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TreeFieldNames returns the tree field names sorted.
func (tt *TypeTables) TreeFieldNames() []string {
	names := make([]string, 0, len(tt.Trees))
	for n := range tt.Trees {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schema maps every configured document type to its tables.
type Schema struct {
	Types map[string]*TypeTables
}

// Type returns the tables of one slug, or nil.
func (s *Schema) Type(slug string) *TypeTables { return s.Types[slug] }

// Build derives the relational schema from a compiled configuration. The
// result is deterministic: identical config always yields identical naming
// and column ordering.
func Build(cfg *rizom.CompiledConfig) (*Schema, error) {
	out := &Schema{Types: map[string]*TypeTables{}}
	for slug, ct := range cfg.Types {
		tt, err := buildType(ct)
		if err != nil {
			return nil, fmt.Errorf("schema for %q: %w", slug, err)
		}
		out.Types[slug] = tt
	}
	return out, nil
}

func buildType(ct *rizom.CompiledType) (*TypeTables, error) {
	tt := &TypeTables{
		Slug:      ct.Slug,
		Versioned: ct.Versioned(),
		Draft:     ct.Draft(),
		Root:      ct.Slug,
		Blocks:    map[string]*ChildTable{},
		Trees:     map[string]*ChildTable{},
	}
	tt.Content = tt.Root
	if tt.Versioned {
		tt.Content = VersionsTableName(ct.Slug)
	}
	tt.Main = Table{Name: tt.Content}

	relTargets := map[string]bool{}
	if err := collectColumns(tt, ct.Fields, rizom.NewPath(), relTargets); err != nil {
		return nil, err
	}

	if localized := localizedSubset(&tt.Main); len(localized) > 0 {
		tt.Locales = &Table{Name: LocalesTableName(tt.Content), Columns: localized}
		tt.Main.Columns = unlocalizedSubset(&tt.Main)
	}

	// One table per distinct block type, localized side-tables as needed.
	for name, bd := range ct.BlockDefs {
		child := &ChildTable{Table: Table{Name: BlockTableName(tt.Content, name)}}
		sub := Table{}
		if err := collectChildColumns(&sub, bd.Fields, rizom.NewPath(), relTargets); err != nil {
			return nil, fmt.Errorf("block %q: %w", name, err)
		}
		child.Columns = unlocalizedSubset(&sub)
		if localized := localizedSubset(&sub); len(localized) > 0 {
			child.Locales = &Table{Name: LocalesTableName(child.Name), Columns: localized}
		}
		tt.Blocks[name] = child
	}

	for name, td := range ct.TreeFields {
		child := &ChildTable{Table: Table{Name: TreeTableName(tt.Content, name)}}
		sub := Table{}
		if err := collectChildColumns(&sub, td.Fields, rizom.NewPath(), relTargets); err != nil {
			return nil, fmt.Errorf("tree %q: %w", name, err)
		}
		child.Columns = unlocalizedSubset(&sub)
		if localized := localizedSubset(&sub); len(localized) > 0 {
			child.Locales = &Table{Name: LocalesTableName(child.Name), Columns: localized}
		}
		tt.Trees[name] = child
	}

	if len(relTargets) > 0 {
		targets := make([]string, 0, len(relTargets))
		for t := range relTargets {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		tt.Relations = &RelationTable{Name: RelationsTableName(tt.Content), Targets: targets}
	}
	return tt, nil
}

// collectColumns walks the document-level field tree. Blocks, trees and
// relations contribute no columns here; their tables are built separately.
func collectColumns(tt *TypeTables, fields []rizom.Field, at rizom.Path, relTargets map[string]bool) error {
	for i := range fields {
		f := &fields[i]
		p := at.Child(f.Name)
		switch f.Kind {
		case rizom.KindGroup:
			if err := collectColumns(tt, f.Fields, p, relTargets); err != nil {
				return err
			}
		case rizom.KindTabs:
			for _, tab := range f.Tabs {
				if err := collectColumns(tt, tab.Fields, at, relTargets); err != nil {
					return err
				}
			}
		case rizom.KindBlocks:
			for _, bd := range f.Blocks {
				collectRelationTargets(bd.Fields, relTargets)
			}
		case rizom.KindTree:
			if f.Tree != nil {
				collectRelationTargets(f.Tree.Fields, relTargets)
			}
		case rizom.KindRelation:
			relTargets[f.RelationTo] = true
		default:
			tt.Main.Columns = append(tt.Main.Columns, fieldColumn(f, p))
		}
	}
	return nil
}

// collectChildColumns walks a block or tree field set. Nested blocks/trees
// store in their own tables; relations register junction targets.
func collectChildColumns(t *Table, fields []rizom.Field, at rizom.Path, relTargets map[string]bool) error {
	for i := range fields {
		f := &fields[i]
		p := at.Child(f.Name)
		switch f.Kind {
		case rizom.KindGroup:
			if err := collectChildColumns(t, f.Fields, p, relTargets); err != nil {
				return err
			}
		case rizom.KindTabs:
			for _, tab := range f.Tabs {
				if err := collectChildColumns(t, tab.Fields, at, relTargets); err != nil {
					return err
				}
			}
		case rizom.KindBlocks:
			for _, bd := range f.Blocks {
				collectRelationTargets(bd.Fields, relTargets)
			}
		case rizom.KindTree:
			if f.Tree != nil {
				collectRelationTargets(f.Tree.Fields, relTargets)
			}
		case rizom.KindRelation:
			relTargets[f.RelationTo] = true
		default:
			t.Columns = append(t.Columns, fieldColumn(f, p))
		}
	}
	return nil
}

func collectRelationTargets(fields []rizom.Field, relTargets map[string]bool) {
	for i := range fields {
		f := &fields[i]
		switch f.Kind {
		case rizom.KindRelation:
			relTargets[f.RelationTo] = true
		case rizom.KindGroup:
			collectRelationTargets(f.Fields, relTargets)
		case rizom.KindTabs:
			for _, tab := range f.Tabs {
				collectRelationTargets(tab.Fields, relTargets)
			}
		case rizom.KindBlocks:
			for _, bd := range f.Blocks {
				collectRelationTargets(bd.Fields, relTargets)
			}
		case rizom.KindTree:
			if f.Tree != nil {
				collectRelationTargets(f.Tree.Fields, relTargets)
			}
		}
	}
}

func fieldColumn(f *rizom.Field, p rizom.Path) Column {
	return Column{
		Name:      ColumnName(p.String()),
		Path:      p.String(),
		Kind:      f.Kind,
		Localized: f.Localized,
		Unique:    f.Unique,
	}
}

func localizedSubset(t *Table) []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.Localized {
			out = append(out, c)
		}
	}
	return out
}

func unlocalizedSubset(t *Table) []Column {
	var out []Column
	for _, c := range t.Columns {
		if !c.Localized {
			out = append(out, c)
		}
	}
	return out
}
