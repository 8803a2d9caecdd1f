// Package reconcile turns an incoming nested payload into child-row records,
// diffs them against what storage holds, and applies the minimal set of
// creates, updates and deletes. Partial payloads only ever affect the
// structural fields they actually carry.
package reconcile

import (
	"rizom/internal/configmap"
	"rizom/internal/rizom"
)

// Extraction is the child-row view of one payload: every block instance, tree
// node and relation edge, plus the structural field paths the payload touched.
type Extraction struct {
	Blocks    []rizom.BlockRecord
	Trees     []rizom.TreeRecord
	Relations []rizom.RelationRecord
	// Paths holds the structural (blocks, tree, relation) field paths present
	// in the payload. Diffing never deletes rows outside these paths, which is
	// what makes partial updates non-destructive.
	Paths map[string]bool
}

// Extract walks the payload through its config map and collects child-row
// records. locale tags localized relation edges; block and tree rows carry it
// only at creation time, through the saver.
func Extract(data rizom.Document, cm configmap.Map, locale string) Extraction {
	ex := Extraction{Paths: map[string]bool{}}
	for _, path := range cm.Paths() {
		field := cm[path]
		p := rizom.ParsePath(path)
		switch field.Kind {
		case rizom.KindBlocks:
			value, ok := rizom.GetValue(data, p)
			if !ok {
				continue
			}
			ex.Paths[path] = true
			items, _ := value.([]any)
			extractBlocks(&ex, field, items, path)
		case rizom.KindTree:
			value, ok := rizom.GetValue(data, p)
			if !ok {
				continue
			}
			ex.Paths[path] = true
			items, _ := value.([]any)
			extractTreeNodes(&ex, field.Tree, items, p)
		case rizom.KindRelation:
			value, ok := rizom.GetValue(data, p)
			if !ok {
				continue
			}
			ex.Paths[path] = true
			relLocale := ""
			if field.Localized {
				relLocale = locale
			}
			extractRelations(&ex, field, value, path, relLocale)
		}
	}
	return ex
}

func extractBlocks(ex *Extraction, field *rizom.Field, items []any, path string) {
	for idx, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		blockType, _ := block["type"].(string)
		def := blockDefOf(field, blockType)
		if def == nil {
			continue
		}
		rec := rizom.BlockRecord{
			Type:     blockType,
			Path:     path,
			Position: idx,
			Values:   formValues(block, def.Fields, ""),
		}
		rec.ID, _ = block["id"].(string)
		ex.Blocks = append(ex.Blocks, rec)
	}
}

func blockDefOf(field *rizom.Field, name string) *rizom.BlockDef {
	for i := range field.Blocks {
		if field.Blocks[i].Name == name {
			return &field.Blocks[i]
		}
	}
	return nil
}

func extractTreeNodes(ex *Extraction, def *rizom.TreeDef, items []any, at rizom.Path) {
	for idx, item := range items {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		nodePath := at.Index(idx)
		rec := rizom.TreeRecord{
			Path:     nodePath.String(),
			Position: idx,
			Values:   formValues(node, def.Fields, ""),
		}
		rec.ID, _ = node["id"].(string)
		ex.Trees = append(ex.Trees, rec)
		if children, ok := node["_children"].([]any); ok && len(children) > 0 {
			extractTreeNodes(ex, def, children, nodePath.Child("_children"))
		}
	}
}

// extractRelations accepts the payload shapes relation values arrive in:
// a bare target id string, a reference map, a populated document, or a slice
// of any of those.
func extractRelations(ex *Extraction, field *rizom.Field, value any, path, locale string) {
	items, ok := value.([]any)
	if !ok {
		if value == nil {
			return
		}
		items = []any{value}
	}
	position := 0
	for _, item := range items {
		rec := rizom.RelationRecord{
			Path:       path,
			Position:   position,
			RelationTo: field.RelationTo,
			Locale:     locale,
		}
		switch v := item.(type) {
		case string:
			if v == "" {
				continue
			}
			rec.TargetID = v
		case map[string]any:
			if target, ok := v["relationTo"].(string); ok && target != "" {
				rec.RelationTo = target
			}
			if id, ok := v["documentId"].(string); ok && id != "" {
				rec.TargetID = id
			} else if id, ok := v["id"].(string); ok && id != "" {
				// A populated document: its own id is the target.
				rec.TargetID = id
				if t, ok := v[rizom.MetaType].(string); ok && t != "" {
					rec.RelationTo = t
				}
			}
		default:
			continue
		}
		if rec.TargetID == "" {
			continue
		}
		ex.Relations = append(ex.Relations, rec)
		position++
	}
}

// formValues collects a child item's own scalar values keyed by dotted
// subpath, mirroring the column walk: groups recurse, tabs flatten, nested
// structural fields are excluded (they have rows of their own).
func formValues(item map[string]any, fields []rizom.Field, prefix string) map[string]any {
	out := map[string]any{}
	collectFormValues(out, item, fields, prefix)
	return out
}

func collectFormValues(out map[string]any, item map[string]any, fields []rizom.Field, prefix string) {
	for i := range fields {
		f := &fields[i]
		key := f.Name
		if prefix != "" {
			key = prefix + "." + f.Name
		}
		switch f.Kind {
		case rizom.KindGroup:
			if sub, ok := item[f.Name].(map[string]any); ok {
				collectFormValues(out, sub, f.Fields, key)
			}
		case rizom.KindTabs:
			for _, tab := range f.Tabs {
				collectFormValues(out, item, tab.Fields, prefix)
			}
		case rizom.KindBlocks, rizom.KindTree, rizom.KindRelation:
			// Rows of their own.
		default:
			if v, ok := item[f.Name]; ok {
				out[key] = v
			}
		}
	}
}

// pathWithin reports whether rowPath equals p or nests under it.
func pathWithin(rowPath, p string) bool {
	if rowPath == p {
		return true
	}
	return len(rowPath) > len(p) && rowPath[:len(p)] == p && rowPath[len(p)] == '.'
}
