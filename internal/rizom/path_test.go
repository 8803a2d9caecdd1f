package rizom

import "testing"

func TestParsePath_RoundTrip(t *testing.T) {
	tests := []string{
		"title",
		"sections.2.title",
		"menu.0._children.1.label",
		"attributes.hero.slogan",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			if got := ParsePath(s).String(); got != s {
				t.Errorf("ParsePath(%q).String() = %q", s, got)
			}
		})
	}
}

func TestParsePath_IndexSegments(t *testing.T) {
	p := ParsePath("sections.2.title")
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
	segs := []Segment{p.segments[0], p.segments[1], p.segments[2]}
	if segs[0].IsIdx || segs[0].Name != "sections" {
		t.Errorf("segment 0 = %+v, want name sections", segs[0])
	}
	if !segs[1].IsIdx || segs[1].Index != 2 {
		t.Errorf("segment 1 = %+v, want index 2", segs[1])
	}
}

func TestPath_HasPrefix_SegmentGranularity(t *testing.T) {
	tests := []struct {
		path, prefix string
		want         bool
	}{
		{"sections.1.title", "sections.1", true},
		{"sections.10", "sections.1", false},
		{"sections.1", "sections.1", true},
		{"sections", "sections.1", false},
		{"menu.0._children.1", "menu.0", true},
	}
	for _, tt := range tests {
		got := ParsePath(tt.path).HasPrefix(ParsePath(tt.prefix))
		if got != tt.want {
			t.Errorf("HasPrefix(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestPath_HasIndex(t *testing.T) {
	if ParsePath("title").HasIndex() {
		t.Error("title should have no index")
	}
	if !ParsePath("sections.0.title").HasIndex() {
		t.Error("sections.0.title should have an index")
	}
}

func TestPath_ChildIndexParent(t *testing.T) {
	p := NewPath("menu").Index(0).Child("_children").Index(1)
	if got := p.String(); got != "menu.0._children.1" {
		t.Errorf("String() = %q", got)
	}
	if got := p.Parent().String(); got != "menu.0._children" {
		t.Errorf("Parent() = %q", got)
	}
	if !p.Last().IsIdx || p.Last().Index != 1 {
		t.Errorf("Last() = %+v", p.Last())
	}
}

func TestPath_FieldName(t *testing.T) {
	name, err := ParsePath("menu.0._children.1").FieldName()
	if err != nil {
		t.Fatalf("FieldName() error = %v", err)
	}
	if name != "menu" {
		t.Errorf("FieldName() = %q, want menu", name)
	}
	if _, err := ParsePath("").FieldName(); err == nil {
		t.Error("empty path should not yield a field name")
	}
}
