// Package testutil provides shared fixtures: a document-type configuration
// covering every field shape, an in-memory store with schema applied, and
// deterministic clock and id stubs.
package testutil

import (
	"testing"

	"rizom/internal/rizom"
)

// TestTypes returns a configuration exercising blocks, trees, relations,
// localization, versioning and drafts.
func TestTypes() rizom.Config {
	return rizom.Config{
		Collections: []rizom.DocumentType{
			{
				Slug:     "pages",
				Versions: &rizom.VersionsConfig{Draft: true},
				Fields: []rizom.Field{
					{Name: "title", Kind: rizom.KindText, Required: true, IsTitle: true, Localized: true},
					{Name: "slug", Kind: rizom.KindSlug, Unique: true, SlugFrom: "title"},
					{Name: "visits", Kind: rizom.KindNumber},
					{Name: "featured", Kind: rizom.KindToggle},
					{Name: "sections", Kind: rizom.KindBlocks, Blocks: []rizom.BlockDef{
						{Name: "paragraph", Fields: []rizom.Field{
							{Name: "text", Kind: rizom.KindText, Localized: true},
						}},
						{Name: "gallery", Fields: []rizom.Field{
							{Name: "caption", Kind: rizom.KindText},
							{Name: "columns", Kind: rizom.KindNumber},
						}},
					}},
					{Name: "related", Kind: rizom.KindRelation, RelationTo: "pages", Many: true},
					{Name: "author", Kind: rizom.KindRelation, RelationTo: "writers"},
				},
			},
			{
				Slug: "writers",
				Fields: []rizom.Field{
					{Name: "name", Kind: rizom.KindText, Required: true, IsTitle: true},
					{Name: "email", Kind: rizom.KindEmail, Unique: true},
				},
			},
		},
		Areas: []rizom.DocumentType{
			{
				Slug: "settings",
				Fields: []rizom.Field{
					{Name: "siteTitle", Kind: rizom.KindText, Localized: true, DefaultValue: "Untitled"},
					{Name: "maintenance", Kind: rizom.KindToggle},
					{Name: "menu", Kind: rizom.KindTree, Tree: &rizom.TreeDef{
						MaxDepth: 3,
						Fields: []rizom.Field{
							{Name: "label", Kind: rizom.KindText},
							{Name: "target", Kind: rizom.KindRelation, RelationTo: "pages"},
						},
					}},
				},
			},
		},
		Locales:       []string{"en", "fr"},
		DefaultLocale: "en",
	}
}

// CompileTestTypes compiles TestTypes, failing the test on configuration
// errors.
func CompileTestTypes(t *testing.T) *rizom.CompiledConfig {
	t.Helper()
	compiled, err := rizom.Compile(TestTypes())
	if err != nil {
		t.Fatalf("compiling test types: %v", err)
	}
	return compiled
}
