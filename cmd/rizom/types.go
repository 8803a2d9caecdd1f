package main

import "rizom/internal/rizom"

// siteTypes declares the document types this deployment serves. Declared in
// code so field hooks, validators and access rules stay plain Go functions.
func siteTypes() rizom.Config {
	return rizom.Config{
		Collections: []rizom.DocumentType{
			{
				Slug:     "pages",
				Versions: &rizom.VersionsConfig{Draft: true},
				Fields: []rizom.Field{
					{Name: "title", Kind: rizom.KindText, Required: true, IsTitle: true, Localized: true},
					{Name: "slug", Kind: rizom.KindSlug, Unique: true, SlugFrom: "title"},
					{Name: "intro", Kind: rizom.KindRichText, Localized: true},
					{Name: "published", Kind: rizom.KindToggle},
					{Name: "sections", Kind: rizom.KindBlocks, Blocks: []rizom.BlockDef{
						{Name: "paragraph", Fields: []rizom.Field{
							{Name: "text", Kind: rizom.KindRichText, Localized: true},
						}},
						{Name: "gallery", Fields: []rizom.Field{
							{Name: "caption", Kind: rizom.KindText},
							{Name: "columns", Kind: rizom.KindNumber},
						}},
					}},
					{Name: "related", Kind: rizom.KindRelation, RelationTo: "pages", Many: true},
				},
			},
			{
				Slug: "users",
				Auth: true,
				Fields: []rizom.Field{
					{Name: "name", Kind: rizom.KindText, Required: true, IsTitle: true},
				},
			},
		},
		Areas: []rizom.DocumentType{
			{
				Slug: "settings",
				Fields: []rizom.Field{
					{Name: "siteTitle", Kind: rizom.KindText, Localized: true},
					{Name: "maintenance", Kind: rizom.KindToggle},
					{Name: "menu", Kind: rizom.KindTree, Tree: &rizom.TreeDef{
						MaxDepth: 3,
						Fields: []rizom.Field{
							{Name: "label", Kind: rizom.KindText, Localized: true},
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
