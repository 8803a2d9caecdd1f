package configmap

import (
	"testing"

	"rizom/internal/rizom"
)

func pageFields() []rizom.Field {
	return []rizom.Field{
		{Name: "title", Kind: rizom.KindText},
		{Name: "meta", Kind: rizom.KindGroup, Fields: []rizom.Field{
			{Name: "description", Kind: rizom.KindText},
		}},
		{Kind: rizom.KindTabs, Tabs: []rizom.Tab{
			{Name: "seo", Fields: []rizom.Field{
				{Name: "keywords", Kind: rizom.KindText},
			}},
		}},
		{Name: "sections", Kind: rizom.KindBlocks, Blocks: []rizom.BlockDef{
			{Name: "paragraph", Fields: []rizom.Field{
				{Name: "text", Kind: rizom.KindRichText},
			}},
			{Name: "gallery", Fields: []rizom.Field{
				{Name: "caption", Kind: rizom.KindText},
				{Name: "columns", Kind: rizom.KindNumber},
			}},
		}},
		{Name: "menu", Kind: rizom.KindTree, Tree: &rizom.TreeDef{
			MaxDepth: 2,
			Fields: []rizom.Field{
				{Name: "label", Kind: rizom.KindText},
			},
		}},
	}
}

func TestBuild_StaticPaths(t *testing.T) {
	m := Build(rizom.Document{}, pageFields())

	for _, p := range []string{"title", "meta.description", "keywords", "sections", "menu"} {
		if _, ok := m[p]; !ok {
			t.Errorf("missing path %q in %v", p, m.Paths())
		}
	}
	// Groups and tabs are containers, not addressable fields.
	if _, ok := m["meta"]; ok {
		t.Error("group itself should not be mapped")
	}
	if _, ok := m["seo.keywords"]; ok {
		t.Error("tab name must not contribute a path segment")
	}
}

func TestBuild_BlockInstanceFields(t *testing.T) {
	data := rizom.Document{
		"sections": []any{
			map[string]any{"type": "paragraph", "text": "hi"},
			map[string]any{"type": "gallery", "caption": "pics", "columns": 3},
			map[string]any{"type": "unknown"},
		},
	}
	m := Build(data, pageFields())

	if f, ok := m["sections.0.text"]; !ok || f.Kind != rizom.KindRichText {
		t.Errorf("sections.0.text = %+v, %v", f, ok)
	}
	if f, ok := m["sections.1.columns"]; !ok || f.Kind != rizom.KindNumber {
		t.Errorf("sections.1.columns = %+v, %v", f, ok)
	}
	// Fields resolve per instance type: the paragraph instance has no caption.
	if _, ok := m["sections.0.caption"]; ok {
		t.Error("paragraph instance must not expose gallery fields")
	}
	if _, ok := m["sections.2.text"]; ok {
		t.Error("unknown block type must map no fields")
	}
}

func TestBuild_TreeNodes(t *testing.T) {
	data := rizom.Document{
		"menu": []any{
			map[string]any{
				"label": "home",
				"_children": []any{
					map[string]any{
						"label": "news",
						"_children": []any{
							map[string]any{"label": "too deep"},
						},
					},
				},
			},
		},
	}
	m := Build(data, pageFields())

	if _, ok := m["menu.0.label"]; !ok {
		t.Error("root node field missing")
	}
	if _, ok := m["menu.0._children.0.label"]; !ok {
		t.Error("child node field missing")
	}
	// MaxDepth 2: grandchildren are out of bounds.
	if _, ok := m["menu.0._children.0._children.0.label"]; ok {
		t.Error("node beyond max depth must not be mapped")
	}
}

func TestPaths_Sorted(t *testing.T) {
	m := Build(rizom.Document{}, pageFields())
	paths := m.Paths()
	for i := 1; i < len(paths); i++ {
		if paths[i-1] >= paths[i] {
			t.Fatalf("paths not strictly sorted: %q >= %q", paths[i-1], paths[i])
		}
	}
}
