// Package schema derives the relational shape of every document type:
// deterministic table and column naming, the table model used by the store,
// and SQL DDL generation for the migrate tooling.
package schema

import (
	"strings"
	"unicode"
)

// PascalCase upper-cases the first letter of each word boundary. Used for
// block/tree table suffixes; it must stay stable so regeneration never churns
// migrations.
func PascalCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == ' ':
			upper = true
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// VersionsTableName names the parallel content table of a versioned type.
func VersionsTableName(slug string) string { return slug + "Versions" }

// LocalesTableName names the locale side-table of any table.
func LocalesTableName(table string) string { return table + "Locales" }

// BlockTableName names the table holding block instances of one type.
// base is the owning content table (root or versions).
func BlockTableName(base, blockType string) string {
	return base + "Blocks" + PascalCase(blockType)
}

// TreeTableName names the table holding one tree field's nodes.
func TreeTableName(base, fieldName string) string {
	return base + "Tree" + PascalCase(fieldName)
}

// RelationsTableName names the relation junction table of a content table.
func RelationsTableName(base string) string { return base + "Rels" }

// ColumnName converts a dotted document path to its storage column form,
// joining nesting with double underscores: "attributes.title" becomes
// "attributes__title".
func ColumnName(path string) string { return strings.ReplaceAll(path, ".", "__") }

// PathFromColumn reverses ColumnName.
func PathFromColumn(col string) string { return strings.ReplaceAll(col, "__", ".") }

// TargetIDColumn names the foreign-key column of a relation target inside a
// relations table.
func TargetIDColumn(targetSlug string) string { return targetSlug + "Id" }
