package rizom

import (
	"reflect"
	"testing"
)

func TestGetSetValue(t *testing.T) {
	doc := Document{}
	SetValue(doc, ParsePath("attributes.hero.slogan"), "hi")
	SetValue(doc, ParsePath("sections.1.title"), "second")

	if v, ok := GetValue(doc, ParsePath("attributes.hero.slogan")); !ok || v != "hi" {
		t.Errorf("GetValue(slogan) = %v, %v", v, ok)
	}
	if v, ok := GetValue(doc, ParsePath("sections.1.title")); !ok || v != "second" {
		t.Errorf("GetValue(sections.1.title) = %v, %v", v, ok)
	}
	// Growing the slice leaves earlier elements nil.
	if v, ok := GetValue(doc, ParsePath("sections.0")); !ok || v != nil {
		t.Errorf("GetValue(sections.0) = %v, %v, want nil element", v, ok)
	}
	if _, ok := GetValue(doc, ParsePath("sections.5.title")); ok {
		t.Error("out of range index should not resolve")
	}
}

func TestFlattenUnflatten_RoundTrip(t *testing.T) {
	doc := Document{
		"title": "home",
		"attributes": map[string]any{
			"hero": map[string]any{"slogan": "hi"},
		},
		"sections": []any{
			map[string]any{"type": "paragraph", "text": "one"},
			map[string]any{"type": "paragraph", "text": "two"},
		},
		"tags": []any{"a", "b"},
	}
	flat := Flatten(doc)
	if flat["attributes.hero.slogan"] != "hi" {
		t.Errorf("flat[attributes.hero.slogan] = %v", flat["attributes.hero.slogan"])
	}
	if flat["sections.1.text"] != "two" {
		t.Errorf("flat[sections.1.text] = %v", flat["sections.1.text"])
	}
	// Scalar slices stay in place as values.
	if _, ok := flat["tags.0"]; ok {
		t.Error("scalar slice should not flatten element-wise")
	}

	back := Unflatten(flat)
	if !reflect.DeepEqual(back, doc) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", back, doc)
	}
}

func TestDeepMerge(t *testing.T) {
	base := Document{
		"title": "old",
		"attributes": map[string]any{
			"hero":  map[string]any{"slogan": "keep"},
			"color": "blue",
		},
		"sections": []any{map[string]any{"type": "paragraph"}},
	}
	overlay := Document{
		"title": "new",
		"attributes": map[string]any{
			"color": "red",
		},
		"sections": []any{},
	}
	out := DeepMerge(base, overlay)

	if out["title"] != "new" {
		t.Errorf("title = %v", out["title"])
	}
	attrs := out["attributes"].(map[string]any)
	if attrs["color"] != "red" {
		t.Errorf("color = %v", attrs["color"])
	}
	if attrs["hero"].(map[string]any)["slogan"] != "keep" {
		t.Error("nested untouched key lost in merge")
	}
	// Slices from the overlay win wholesale.
	if len(out["sections"].([]any)) != 0 {
		t.Error("overlay slice should replace base slice")
	}
	// Base is not mutated.
	if base["title"] != "old" {
		t.Error("merge mutated base")
	}
}

func TestBlankDocument(t *testing.T) {
	cfg, err := Compile(Config{
		Collections: []DocumentType{{
			Slug: "pages",
			Fields: []Field{
				{Name: "title", Kind: KindText, DefaultValue: "untitled"},
				{Name: "meta", Kind: KindGroup, Fields: []Field{
					{Name: "desc", Kind: KindText},
				}},
				{Name: "sections", Kind: KindBlocks, Blocks: []BlockDef{
					{Name: "paragraph", Fields: []Field{{Name: "text", Kind: KindText}}},
				}},
				{Name: "related", Kind: KindRelation, RelationTo: "pages", Many: true},
				{Name: "author", Kind: KindRelation, RelationTo: "pages"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	doc := BlankDocument(cfg.Get("pages"))

	if doc["title"] != "untitled" {
		t.Errorf("title default = %v", doc["title"])
	}
	if doc[MetaPrototype] != string(PrototypeCollection) || doc[MetaType] != "pages" {
		t.Errorf("meta keys = %v, %v", doc[MetaPrototype], doc[MetaType])
	}
	if v, ok := GetValue(doc, ParsePath("meta.desc")); !ok || v != nil {
		t.Errorf("group field = %v, %v", v, ok)
	}
	if s, ok := doc["sections"].([]any); !ok || len(s) != 0 {
		t.Errorf("blocks blank = %#v", doc["sections"])
	}
	if s, ok := doc["related"].([]any); !ok || len(s) != 0 {
		t.Errorf("many relation blank = %#v", doc["related"])
	}
	if v, ok := doc["author"]; !ok || v != nil {
		t.Errorf("single relation blank = %v, %v", v, ok)
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"true", true},
		{"false", false},
		{"null", nil},
		{"42", 42},
		{"3.5", 3.5},
		{"hello", "hello"},
		{"", ""},
		{7, 7},
	}
	for _, tt := range tests {
		if got := NormalizeValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NormalizeValue(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
