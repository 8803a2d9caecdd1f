package reconcile

import (
	"testing"

	"rizom/internal/rizom"
)

func sectionPaths() map[string]bool { return map[string]bool{"sections": true} }

func TestDiffBlocks(t *testing.T) {
	existing := []rizom.BlockRecord{
		{ID: "b1", Type: "paragraph", Path: "sections", Position: 0, Values: map[string]any{"text": "one"}},
		{ID: "b2", Type: "paragraph", Path: "sections", Position: 1, Values: map[string]any{"text": "two"}},
	}

	t.Run("identical payload is a no-op", func(t *testing.T) {
		incoming := []rizom.BlockRecord{
			{ID: "b1", Type: "paragraph", Path: "sections", Position: 0, Values: map[string]any{"text": "one"}},
			{ID: "b2", Type: "paragraph", Path: "sections", Position: 1, Values: map[string]any{"text": "two"}},
		}
		d := DiffBlocks(existing, incoming, sectionPaths(), "en", nil)
		if len(d.ToCreate)+len(d.ToUpdate)+len(d.ToDelete) != 0 {
			t.Errorf("expected empty diff, got %+v", d)
		}
	})

	t.Run("reorder with echoed ids updates in place", func(t *testing.T) {
		incoming := []rizom.BlockRecord{
			{ID: "b2", Type: "paragraph", Path: "sections", Position: 0, Values: map[string]any{"text": "two"}},
			{ID: "b1", Type: "paragraph", Path: "sections", Position: 1, Values: map[string]any{"text": "one"}},
		}
		d := DiffBlocks(existing, incoming, sectionPaths(), "en", nil)
		if len(d.ToCreate) != 0 || len(d.ToDelete) != 0 {
			t.Fatalf("reorder must not create or delete: %+v", d)
		}
		if len(d.ToUpdate) != 2 {
			t.Fatalf("len(ToUpdate) = %d, want 2", len(d.ToUpdate))
		}
	})

	t.Run("id match wins over positional match", func(t *testing.T) {
		// b2 claims position 0 by id; the id-less record at position 1 finds
		// its positional candidate already taken, so it becomes a create and
		// the abandoned b1 row is deleted.
		incoming := []rizom.BlockRecord{
			{ID: "b2", Type: "paragraph", Path: "sections", Position: 0, Values: map[string]any{"text": "two"}},
			{Type: "paragraph", Path: "sections", Position: 1, Values: map[string]any{"text": "fresh"}},
		}
		d := DiffBlocks(existing, incoming, sectionPaths(), "en", nil)
		if len(d.ToUpdate) != 1 || d.ToUpdate[0].ID != "b2" {
			t.Fatalf("ToUpdate = %+v, want just b2", d.ToUpdate)
		}
		if len(d.ToCreate) != 1 || d.ToCreate[0].Values["text"] != "fresh" {
			t.Errorf("ToCreate = %+v", d.ToCreate)
		}
		if len(d.ToDelete) != 1 || d.ToDelete[0].ID != "b1" {
			t.Errorf("ToDelete = %+v, want b1", d.ToDelete)
		}
	})

	t.Run("positional match requires same type", func(t *testing.T) {
		incoming := []rizom.BlockRecord{
			{Type: "gallery", Path: "sections", Position: 0, Values: map[string]any{"caption": "pics"}},
		}
		d := DiffBlocks(existing, incoming, sectionPaths(), "en", nil)
		if len(d.ToCreate) != 1 {
			t.Errorf("type change at a position must create, got %+v", d)
		}
		if len(d.ToDelete) != 2 {
			t.Errorf("unmatched rows inside the carried path must delete, got %+v", d)
		}
	})

	t.Run("payload without the structural path deletes nothing", func(t *testing.T) {
		d := DiffBlocks(existing, nil, map[string]bool{}, "en", nil)
		if len(d.ToDelete) != 0 {
			t.Errorf("no structural path carried, got deletes: %+v", d.ToDelete)
		}
	})

	t.Run("foreign locale rows survive", func(t *testing.T) {
		rowLocales := map[string]string{"b1": "fr", "b2": ""}
		d := DiffBlocks(existing, nil, sectionPaths(), "en", rowLocales)
		if len(d.ToDelete) != 1 || d.ToDelete[0].ID != "b2" {
			t.Errorf("only the unlocalized row should delete, got %+v", d.ToDelete)
		}
	})

	t.Run("unknown echoed id becomes a create without the id", func(t *testing.T) {
		incoming := []rizom.BlockRecord{
			{ID: "ghost", Type: "paragraph", Path: "sections", Position: 5, Values: map[string]any{"text": "x"}},
		}
		d := DiffBlocks(nil, incoming, sectionPaths(), "en", nil)
		if len(d.ToCreate) != 1 || d.ToCreate[0].ID != "" {
			t.Errorf("stale id must be dropped on create, got %+v", d.ToCreate)
		}
	})
}

func TestDiffTreeNodes(t *testing.T) {
	existing := []rizom.TreeRecord{
		{ID: "n1", Path: "menu.0", Position: 0, Values: map[string]any{"label": "home"}},
		{ID: "n2", Path: "menu.0._children.0", Position: 0, Values: map[string]any{"label": "news"}},
	}
	paths := map[string]bool{"menu": true}

	t.Run("path identity matches without ids", func(t *testing.T) {
		incoming := []rizom.TreeRecord{
			{Path: "menu.0", Position: 0, Values: map[string]any{"label": "home"}},
			{Path: "menu.0._children.0", Position: 0, Values: map[string]any{"label": "news"}},
		}
		d := DiffTreeNodes(existing, incoming, paths, "en", nil)
		if len(d.ToCreate)+len(d.ToUpdate)+len(d.ToDelete) != 0 {
			t.Errorf("expected empty diff, got %+v", d)
		}
	})

	t.Run("id match survives a reparent", func(t *testing.T) {
		incoming := []rizom.TreeRecord{
			{ID: "n2", Path: "menu.0", Position: 0, Values: map[string]any{"label": "news"}},
		}
		d := DiffTreeNodes(existing, incoming, paths, "en", nil)
		if len(d.ToUpdate) != 1 || d.ToUpdate[0].ID != "n2" {
			t.Fatalf("reparent should update n2, got %+v", d)
		}
		if len(d.ToDelete) != 1 || d.ToDelete[0].ID != "n1" {
			t.Errorf("n1 was dropped from the payload, got %+v", d.ToDelete)
		}
	})
}

func TestDiffRelations(t *testing.T) {
	existing := []rizom.RelationRecord{
		{ID: "r1", Path: "related", Position: 0, RelationTo: "pages", TargetID: "p1"},
		{ID: "r2", Path: "related", Position: 1, RelationTo: "pages", TargetID: "p2"},
	}
	paths := map[string]bool{"related": true}

	t.Run("reorder is a move", func(t *testing.T) {
		incoming := []rizom.RelationRecord{
			{Path: "related", Position: 0, RelationTo: "pages", TargetID: "p2"},
			{Path: "related", Position: 1, RelationTo: "pages", TargetID: "p1"},
		}
		d := DiffRelations(existing, incoming, paths, "en")
		if len(d.ToCreate) != 0 || len(d.ToDelete) != 0 {
			t.Fatalf("reorder must not create or delete: %+v", d)
		}
		if len(d.ToMove) != 2 {
			t.Fatalf("len(ToMove) = %d, want 2", len(d.ToMove))
		}
		for _, m := range d.ToMove {
			if m.TargetID == "p2" && m.ID != "r2" {
				t.Errorf("p2 edge should keep row r2, got %q", m.ID)
			}
		}
	})

	t.Run("removed target deletes only inside carried path", func(t *testing.T) {
		incoming := []rizom.RelationRecord{
			{Path: "related", Position: 0, RelationTo: "pages", TargetID: "p1"},
		}
		d := DiffRelations(existing, incoming, paths, "en")
		if len(d.ToDelete) != 1 || d.ToDelete[0].ID != "r2" {
			t.Errorf("expected r2 deletion, got %+v", d.ToDelete)
		}

		d = DiffRelations(existing, incoming, map[string]bool{"author": true}, "en")
		if len(d.ToDelete) != 0 {
			t.Errorf("path not carried, got deletes: %+v", d.ToDelete)
		}
	})

	t.Run("localized edges are isolated per locale", func(t *testing.T) {
		localized := []rizom.RelationRecord{
			{ID: "r3", Path: "related", Position: 0, RelationTo: "pages", TargetID: "p1", Locale: "fr"},
		}
		d := DiffRelations(localized, nil, paths, "en")
		if len(d.ToDelete) != 0 {
			t.Errorf("foreign-locale edge must survive, got %+v", d.ToDelete)
		}
	})

	t.Run("duplicate targets match distinct rows", func(t *testing.T) {
		dup := []rizom.RelationRecord{
			{ID: "r4", Path: "related", Position: 0, RelationTo: "pages", TargetID: "p1"},
			{ID: "r5", Path: "related", Position: 1, RelationTo: "pages", TargetID: "p1"},
		}
		incoming := []rizom.RelationRecord{
			{Path: "related", Position: 0, RelationTo: "pages", TargetID: "p1"},
			{Path: "related", Position: 1, RelationTo: "pages", TargetID: "p1"},
		}
		d := DiffRelations(dup, incoming, paths, "en")
		if len(d.ToCreate)+len(d.ToMove)+len(d.ToDelete) != 0 {
			t.Errorf("expected empty diff, got %+v", d)
		}
	})
}

func TestPathWithin(t *testing.T) {
	tests := []struct {
		row, p string
		want   bool
	}{
		{"sections", "sections", true},
		{"sections.1", "sections", true},
		{"sections.1.text", "sections", true},
		{"sections.10", "sections.1", false},
		{"sectionsExtra", "sections", false},
		{"menu.0._children.1", "menu", true},
	}
	for _, tt := range tests {
		if got := pathWithin(tt.row, tt.p); got != tt.want {
			t.Errorf("pathWithin(%q, %q) = %v, want %v", tt.row, tt.p, got, tt.want)
		}
	}
}
