// Package transform rebuilds nested documents from the flat rows the store
// returns: locale rows merge in, block and tree rows fold back into their
// slices, relation rows become values (or fetched documents), and the result
// lands on a blank document so every schema field is present.
package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rizom/internal/configmap"
	"rizom/internal/rizom"
	"rizom/internal/schema"
)

// Transformer converts raw store documents to their logical form.
type Transformer struct {
	cfg    *rizom.CompiledConfig
	schema *schema.Schema
	logger rizom.Logger
}

// New builds a Transformer bound to a compiled configuration and its schema.
func New(cfg *rizom.CompiledConfig, s *schema.Schema, logger rizom.Logger) *Transformer {
	if logger == nil {
		logger = rizom.NopLogger{}
	}
	return &Transformer{cfg: cfg, schema: s, logger: logger}
}

// Args carries one transformation request. API may be nil when Depth is 0.
type Args struct {
	Slug   string
	Raw    rizom.RawDoc
	Locale string
	Depth  int
	Select []string
	User   *rizom.User
	API    rizom.API
}

// Transform rebuilds the logical document for one raw store row set.
func (t *Transformer) Transform(ctx context.Context, args Args) (rizom.Document, error) {
	ct := t.cfg.Get(args.Slug)
	if ct == nil {
		return nil, fmt.Errorf("%w: unknown document type %q", rizom.ErrOperation, args.Slug)
	}
	tt := t.schema.Type(args.Slug)
	if tt == nil {
		return nil, fmt.Errorf("%w: no schema for type %q", rizom.ErrOperation, args.Slug)
	}

	flat := map[string]any{}
	meta := rizom.Document{}
	var localeRows []map[string]any
	blockRows := map[string][]map[string]any{}
	treeRows := map[string][]map[string]any{}
	var relRows []map[string]any

	for key, value := range args.Raw {
		switch {
		case tt.Locales != nil && key == tt.Locales.Name:
			localeRows, _ = value.([]map[string]any)
		case tt.Relations != nil && key == tt.Relations.Name:
			relRows, _ = value.([]map[string]any)
		case isBlockTable(tt, key):
			blockRows[key], _ = value.([]map[string]any)
		case isTreeTable(tt, key):
			treeRows[key], _ = value.([]map[string]any)
		default:
			if c := tt.Main.Column(key); c != nil {
				flat[c.Path] = value
				continue
			}
			switch key {
			case rizom.MetaID, rizom.MetaVersionID, rizom.MetaStatus,
				rizom.MetaCreatedAt, rizom.MetaUpdatedAt:
				meta[key] = value
			}
		}
	}

	// Localized columns live only in the locale side-table, so merging cannot
	// collide with base values.
	if tt.Locales != nil && len(localeRows) > 0 {
		mergeLocaleRow(flat, localeRows[0], tt.Locales)
	}

	doc := rizom.Unflatten(flat)
	panel := args.User != nil && args.User.IsPanel
	t.placeBlocks(doc, tt, blockRows, panel)
	t.placeTreeNodes(doc, tt, treeRows, panel)

	cm := configmap.Build(doc, ct.Fields)
	if err := t.placeRelations(ctx, doc, cm, tt, relRows, args); err != nil {
		return nil, err
	}

	if len(args.Select) == 0 {
		doc = rizom.DeepMerge(rizom.BlankDocument(ct), doc)
		cm = configmap.Build(doc, ct.Fields)
	}

	for key, value := range meta {
		doc[key] = value
	}
	doc[rizom.MetaPrototype] = string(ct.Prototype)
	doc[rizom.MetaType] = ct.Slug

	if err := applyReadFieldRules(doc, cm, args.User); err != nil {
		return nil, err
	}
	if args.User == nil || !args.User.IsPanel {
		delete(doc, rizom.MetaEditedBy)
	}
	return doc, nil
}

func isBlockTable(tt *schema.TypeTables, key string) bool {
	for _, child := range tt.Blocks {
		if child.Name == key {
			return true
		}
	}
	return false
}

func isTreeTable(tt *schema.TypeTables, key string) bool {
	for _, child := range tt.Trees {
		if child.Name == key {
			return true
		}
	}
	return false
}

func mergeLocaleRow(flat map[string]any, row map[string]any, locales *schema.Table) {
	for _, c := range locales.Columns {
		if v, ok := row[c.Name]; ok {
			flat[c.Path] = v
		}
	}
}

// childValues maps a child row's field columns back to dotted subpaths and
// merges its locale side-row, if any.
func childValues(row map[string]any, child *schema.ChildTable) map[string]any {
	values := map[string]any{}
	for _, c := range child.Columns {
		if v, ok := row[c.Name]; ok {
			values[c.Path] = v
		}
	}
	if child.Locales != nil {
		if side, ok := row[child.Locales.Name].([]map[string]any); ok && len(side) > 0 {
			for _, c := range child.Locales.Columns {
				if v, ok := side[0][c.Name]; ok {
					values[c.Path] = v
				}
			}
		}
	}
	return values
}

// placeBlocks folds block rows back into their field slices. Rows group by
// the blocks-field path they carry; shallow paths place before nested ones so
// a parent block's slice exists when its children arrive. Panel reads keep
// path and position on each instance so the editor can echo row identity.
func (t *Transformer) placeBlocks(doc rizom.Document, tt *schema.TypeTables, tables map[string][]map[string]any, panel bool) {
	type placed struct {
		path     string
		position int
		block    map[string]any
	}
	var all []placed
	for _, name := range tt.BlockTypeNames() {
		child := tt.Blocks[name]
		for _, row := range tables[child.Name] {
			block := rizom.Unflatten(childValues(row, child))
			block["id"], _ = row["id"].(string)
			block["type"], _ = row["type"].(string)
			path, _ := row["path"].(string)
			position := intOf(row["position"])
			if panel {
				block["path"] = path
				block["position"] = position
			}
			all = append(all, placed{path: path, position: position, block: block})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		di, dj := pathDepth(all[i].path), pathDepth(all[j].path)
		if di != dj {
			return di < dj
		}
		if all[i].path != all[j].path {
			return all[i].path < all[j].path
		}
		return all[i].position < all[j].position
	})
	byPath := map[string][]placed{}
	var order []string
	for _, p := range all {
		if _, seen := byPath[p.path]; !seen {
			order = append(order, p.path)
		}
		byPath[p.path] = append(byPath[p.path], p)
	}
	for _, path := range order {
		items := make([]any, 0, len(byPath[path]))
		for _, p := range byPath[path] {
			items = append(items, p.block)
		}
		rizom.SetValue(doc, rizom.ParsePath(path), items)
	}
}

// placeTreeNodes rebuilds tree hierarchies. A node's path encodes its full
// position ("menu.0._children.1"), so setting nodes shallow-first recreates
// the nesting.
func (t *Transformer) placeTreeNodes(doc rizom.Document, tt *schema.TypeTables, tables map[string][]map[string]any, panel bool) {
	type placed struct {
		path     string
		position int
		node     map[string]any
	}
	var all []placed
	for _, name := range tt.TreeFieldNames() {
		child := tt.Trees[name]
		for _, row := range tables[child.Name] {
			node := rizom.Unflatten(childValues(row, child))
			node["id"], _ = row["id"].(string)
			node["_children"] = []any{}
			path, _ := row["path"].(string)
			position := intOf(row["position"])
			if panel {
				node["path"] = path
				node["position"] = position
			}
			all = append(all, placed{path: path, position: position, node: node})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		di, dj := pathDepth(all[i].path), pathDepth(all[j].path)
		if di != dj {
			return di < dj
		}
		if all[i].path != all[j].path {
			return all[i].path < all[j].path
		}
		return all[i].position < all[j].position
	})
	for _, p := range all {
		rizom.SetValue(doc, rizom.ParsePath(p.path), p.node)
	}
}

// placeRelations converts relation rows to field values. Rows from other
// locales stay invisible; at positive depth the target document is fetched in
// place of the reference, and an unreadable or vanished target is skipped
// with a warning rather than failing the read.
func (t *Transformer) placeRelations(ctx context.Context, doc rizom.Document, cm configmap.Map, tt *schema.TypeTables, rows []map[string]any, args Args) error {
	if len(rows) == 0 {
		return nil
	}
	type rel struct {
		id       string
		position int
		target   string
		targetID string
	}
	byPath := map[string][]rel{}
	var order []string
	for _, row := range rows {
		locale, _ := row["locale"].(string)
		if locale != "" && locale != args.Locale {
			continue
		}
		r := rel{position: intOf(row["position"])}
		r.id, _ = row["id"].(string)
		path, _ := row["path"].(string)
		if tt.Relations != nil {
			for _, target := range tt.Relations.Targets {
				if id, ok := row[schema.TargetIDColumn(target)].(string); ok && id != "" {
					r.target = target
					r.targetID = id
					break
				}
			}
		}
		if r.targetID == "" {
			continue
		}
		if _, seen := byPath[path]; !seen {
			order = append(order, path)
		}
		byPath[path] = append(byPath[path], r)
	}

	for _, path := range order {
		rels := byPath[path]
		sort.SliceStable(rels, func(i, j int) bool { return rels[i].position < rels[j].position })

		field := cm[path]
		many := field != nil && field.Many

		values := make([]any, 0, len(rels))
		for _, r := range rels {
			if args.Depth > 0 && args.API != nil {
				target, err := args.API.Collection(r.target).FindByID(ctx, rizom.FindByIDDocArgs{
					ID:     r.targetID,
					Locale: args.Locale,
					Depth:  args.Depth - 1,
					User:   args.User,
				})
				if err != nil {
					if errors.Is(err, rizom.ErrNotFound) || errors.Is(err, rizom.ErrUnauthorized) {
						t.logger.Warn("skipping unresolvable relation",
							"path", path, "relationTo", r.target, "documentId", r.targetID)
						continue
					}
					return fmt.Errorf("populating relation at %s: %w", path, err)
				}
				values = append(values, target)
				continue
			}
			values = append(values, map[string]any{
				"id":         r.id,
				"relationTo": r.target,
				"documentId": r.targetID,
			})
		}

		p := rizom.ParsePath(path)
		if many {
			rizom.SetValue(doc, p, values)
		} else if len(values) > 0 {
			rizom.SetValue(doc, p, values[0])
		}
	}
	return nil
}

// applyReadFieldRules drops fields the caller may not read and runs each
// field's read hooks over its value.
func applyReadFieldRules(doc rizom.Document, cm configmap.Map, user *rizom.User) error {
	for _, path := range cm.Paths() {
		field := cm[path]
		p := rizom.ParsePath(path)
		if field.Access != nil && field.Access.Read != nil && !field.Access.Read(user) {
			rizom.DeleteValue(doc, p)
			continue
		}
		if field.Hidden && (user == nil || !user.IsPanel) {
			rizom.DeleteValue(doc, p)
			continue
		}
		if len(field.BeforeRead) == 0 {
			continue
		}
		value, ok := rizom.GetValue(doc, p)
		if !ok {
			continue
		}
		for _, hook := range field.BeforeRead {
			var err error
			value, err = hook(value, field)
			if err != nil {
				return fmt.Errorf("read hook at %s: %w", path, err)
			}
		}
		rizom.SetValue(doc, p, value)
	}
	return nil
}

func pathDepth(path string) int { return strings.Count(path, ".") }

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
