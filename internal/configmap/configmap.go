// Package configmap flattens a document-type field tree against a concrete
// payload into a single path-indexed map. Validation, extraction and diffing
// all consume this map, which guarantees the three see identical path
// semantics for every field instance.
package configmap

import (
	"sort"

	"rizom/internal/rizom"
)

// Map indexes field definitions by the canonical instance path of each field
// occurrence in a given payload, e.g. "sections.2.title" or
// "menu.0._children.1.label".
type Map map[string]*rizom.Field

// Paths returns the map's keys sorted, for stable iteration.
func (m Map) Paths() []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Build walks the static field tree and, for blocks and tree fields, the
// actual instances present in data, so block-type-specific fields resolve per
// array position. Structural containers (groups, tabs) flatten away; blocks
// and tree fields themselves stay addressable at their own path.
func Build(data rizom.Document, fields []rizom.Field) Map {
	m := Map{}
	buildFields(m, data, fields, rizom.NewPath())
	return m
}

func buildFields(m Map, data rizom.Document, fields []rizom.Field, at rizom.Path) {
	for i := range fields {
		f := &fields[i]
		p := at.Child(f.Name)
		switch f.Kind {
		case rizom.KindGroup:
			buildFields(m, data, f.Fields, p)
		case rizom.KindTabs:
			for _, tab := range f.Tabs {
				buildFields(m, data, tab.Fields, at)
			}
		case rizom.KindBlocks:
			m[p.String()] = f
			buildBlockInstances(m, data, f, p)
		case rizom.KindTree:
			m[p.String()] = f
			if f.Tree != nil {
				value, _ := rizom.GetValue(data, p)
				items, _ := value.([]any)
				buildTreeItems(m, data, f.Tree, items, p, 1)
			}
		default:
			m[p.String()] = f
		}
	}
}

// buildBlockInstances resolves each block instance's type against the blocks
// field definition and maps the instance's own fields under its indexed path.
func buildBlockInstances(m Map, data rizom.Document, f *rizom.Field, at rizom.Path) {
	value, ok := rizom.GetValue(data, at)
	if !ok {
		return
	}
	items, ok := value.([]any)
	if !ok {
		return
	}
	for idx, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		blockType, _ := block["type"].(string)
		def := blockDef(f, blockType)
		if def == nil {
			continue
		}
		buildFields(m, data, def.Fields, at.Index(idx))
	}
}

func blockDef(f *rizom.Field, name string) *rizom.BlockDef {
	for i := range f.Blocks {
		if f.Blocks[i].Name == name {
			return &f.Blocks[i]
		}
	}
	return nil
}

// buildTreeItems maps every node of a tree instance, recursing through
// _children up to the configured depth bound.
func buildTreeItems(m Map, data rizom.Document, def *rizom.TreeDef, items []any, at rizom.Path, depth int) {
	maxDepth := def.MaxDepth
	if maxDepth <= 0 {
		maxDepth = rizom.DefaultTreeMaxDepth
	}
	if depth > maxDepth {
		return
	}
	for idx, item := range items {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		nodePath := at.Index(idx)
		buildFields(m, data, def.Fields, nodePath)
		if children, ok := node["_children"].([]any); ok && len(children) > 0 {
			buildTreeItems(m, data, def, children, nodePath.Child("_children"), depth+1)
		}
	}
}
