package schema

import (
	"fmt"
	"sort"
	"strings"

	"rizom/internal/rizom"
)

// sqlType maps a field kind to its SQLite column type. Dates store as RFC3339
// text; toggles as 0/1 integers.
func sqlType(kind rizom.FieldKind) string {
	switch kind {
	case rizom.KindNumber:
		return "real"
	case rizom.KindToggle:
		return "integer"
	default:
		return "text"
	}
}

// GenerateDDL renders the complete CREATE statement set for a schema. Output
// is deterministic for identical input so regeneration never produces
// spurious migration churn: types sort by slug, child tables by name,
// relation targets by slug.
func GenerateDDL(s *Schema) string {
	slugs := make([]string, 0, len(s.Types))
	for slug := range s.Types {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var b strings.Builder
	for _, slug := range slugs {
		writeTypeDDL(&b, s.Types[slug])
	}
	return b.String()
}

// GenerateDropDDL renders the matching DROP statements, children first so
// foreign keys never dangle mid-migration.
func GenerateDropDDL(s *Schema) string {
	slugs := make([]string, 0, len(s.Types))
	for slug := range s.Types {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var b strings.Builder
	for _, slug := range slugs {
		tt := s.Types[slug]
		var names []string
		if tt.Relations != nil {
			names = append(names, tt.Relations.Name)
		}
		for _, n := range tt.BlockTypeNames() {
			child := tt.Blocks[n]
			if child.Locales != nil {
				names = append(names, child.Locales.Name)
			}
			names = append(names, child.Name)
		}
		for _, n := range tt.TreeFieldNames() {
			child := tt.Trees[n]
			if child.Locales != nil {
				names = append(names, child.Locales.Name)
			}
			names = append(names, child.Name)
		}
		if tt.Locales != nil {
			names = append(names, tt.Locales.Name)
		}
		if tt.Versioned {
			names = append(names, tt.Content)
		}
		names = append(names, tt.Root)
		for _, n := range names {
			fmt.Fprintf(&b, "DROP TABLE IF EXISTS %q;\n", n)
		}
	}
	return b.String()
}

func writeTypeDDL(b *strings.Builder, tt *TypeTables) {
	// Root table. Versioned types keep only identity and timestamps here.
	fmt.Fprintf(b, "CREATE TABLE %q (\n", tt.Root)
	fmt.Fprintf(b, "\t%q text PRIMARY KEY,\n", "id")
	fmt.Fprintf(b, "\t%q text NOT NULL,\n", "createdAt")
	fmt.Fprintf(b, "\t%q text NOT NULL", "updatedAt")
	if !tt.Versioned {
		writeFieldColumns(b, tt.Main.Columns, true)
	}
	b.WriteString("\n);\n")

	if tt.Versioned {
		// No UNIQUE constraints here: every version of a document repeats its
		// field values, so uniqueness across documents is checked at
		// validation time instead.
		fmt.Fprintf(b, "CREATE TABLE %q (\n", tt.Content)
		fmt.Fprintf(b, "\t%q text PRIMARY KEY,\n", "id")
		fmt.Fprintf(b, "\t%q text NOT NULL REFERENCES %q(%q) ON DELETE CASCADE,\n", "ownerId", tt.Root, "id")
		if tt.Draft {
			fmt.Fprintf(b, "\t%q text NOT NULL DEFAULT 'draft',\n", "status")
		}
		fmt.Fprintf(b, "\t%q text NOT NULL,\n", "createdAt")
		fmt.Fprintf(b, "\t%q text NOT NULL", "updatedAt")
		writeFieldColumns(b, tt.Main.Columns, false)
		b.WriteString("\n);\n")
		fmt.Fprintf(b, "CREATE INDEX %q ON %q(%q);\n",
			tt.Content+"OwnerIdx", tt.Content, "ownerId")
	}

	if tt.Locales != nil {
		writeLocalesDDL(b, tt.Locales, tt.Content, !tt.Versioned)
	}

	for _, name := range tt.BlockTypeNames() {
		writeChildDDL(b, tt.Blocks[name], tt.Content, !tt.Versioned)
	}
	for _, name := range tt.TreeFieldNames() {
		writeChildDDL(b, tt.Trees[name], tt.Content, !tt.Versioned)
	}

	if tt.Relations != nil {
		fmt.Fprintf(b, "CREATE TABLE %q (\n", tt.Relations.Name)
		fmt.Fprintf(b, "\t%q text PRIMARY KEY,\n", "id")
		fmt.Fprintf(b, "\t%q text NOT NULL REFERENCES %q(%q) ON DELETE CASCADE,\n", "ownerId", tt.Content, "id")
		fmt.Fprintf(b, "\t%q text NOT NULL,\n", "path")
		fmt.Fprintf(b, "\t%q integer NOT NULL DEFAULT 0,\n", "position")
		fmt.Fprintf(b, "\t%q text", "locale")
		for _, target := range tt.Relations.Targets {
			fmt.Fprintf(b, ",\n\t%q text REFERENCES %q(%q) ON DELETE CASCADE",
				TargetIDColumn(target), target, "id")
		}
		b.WriteString("\n);\n")
		fmt.Fprintf(b, "CREATE INDEX %q ON %q(%q);\n",
			tt.Relations.Name+"OwnerIdx", tt.Relations.Name, "ownerId")
	}
}

func writeFieldColumns(b *strings.Builder, cols []Column, withUnique bool) {
	for _, c := range cols {
		fmt.Fprintf(b, ",\n\t%q %s", c.Name, sqlType(c.Kind))
		if c.Unique && withUnique {
			b.WriteString(" UNIQUE")
		}
	}
}

func writeLocalesDDL(b *strings.Builder, locales *Table, owner string, withUnique bool) {
	fmt.Fprintf(b, "CREATE TABLE %q (\n", locales.Name)
	fmt.Fprintf(b, "\t%q text PRIMARY KEY,\n", "id")
	fmt.Fprintf(b, "\t%q text NOT NULL REFERENCES %q(%q) ON DELETE CASCADE,\n", "ownerId", owner, "id")
	fmt.Fprintf(b, "\t%q text NOT NULL", "locale")
	writeFieldColumns(b, locales.Columns, withUnique)
	fmt.Fprintf(b, ",\n\tUNIQUE(%q, %q)\n);\n", "ownerId", "locale")
}

func writeChildDDL(b *strings.Builder, child *ChildTable, owner string, withUnique bool) {
	fmt.Fprintf(b, "CREATE TABLE %q (\n", child.Name)
	fmt.Fprintf(b, "\t%q text PRIMARY KEY,\n", "id")
	fmt.Fprintf(b, "\t%q text NOT NULL REFERENCES %q(%q) ON DELETE CASCADE,\n", "ownerId", owner, "id")
	fmt.Fprintf(b, "\t%q text NOT NULL,\n", "path")
	fmt.Fprintf(b, "\t%q integer NOT NULL DEFAULT 0,\n", "position")
	fmt.Fprintf(b, "\t%q text", "locale")
	writeFieldColumns(b, child.Columns, withUnique)
	b.WriteString("\n);\n")
	fmt.Fprintf(b, "CREATE INDEX %q ON %q(%q);\n",
		child.Name+"OwnerIdx", child.Name, "ownerId")
	if child.Locales != nil {
		writeLocalesDDL(b, child.Locales, child.Name, withUnique)
	}
}
