package reconcile

import (
	"context"
	"fmt"

	"rizom/internal/rizom"
	"rizom/internal/schema"
)

// Existing is the child-row state of a stored document, read back from the
// raw store shape for diffing.
type Existing struct {
	Blocks    []rizom.BlockRecord
	Trees     []rizom.TreeRecord
	Relations []rizom.RelationRecord
	// RowLocales maps block and tree row ids to the locale the row was
	// created under; empty for unlocalized rows.
	RowLocales map[string]string
}

// FromRaw rebuilds child-row records from a raw store document. The raw shape
// keys child rows by table name; the schema says which tables exist.
func FromRaw(tt *schema.TypeTables, raw rizom.RawDoc) Existing {
	ex := Existing{RowLocales: map[string]string{}}
	for _, name := range tt.BlockTypeNames() {
		child := tt.Blocks[name]
		rows, _ := raw[child.Name].([]map[string]any)
		for _, row := range rows {
			rec := rizom.BlockRecord{
				Type:     name,
				Position: intOf(row["position"]),
				Values:   rowValues(row, &child.Table, child.Locales),
			}
			rec.ID, _ = row["id"].(string)
			rec.Path, _ = row["path"].(string)
			if l, ok := row["locale"].(string); ok {
				ex.RowLocales[rec.ID] = l
			}
			ex.Blocks = append(ex.Blocks, rec)
		}
	}
	for _, name := range tt.TreeFieldNames() {
		child := tt.Trees[name]
		rows, _ := raw[child.Name].([]map[string]any)
		for _, row := range rows {
			rec := rizom.TreeRecord{
				Position: intOf(row["position"]),
				Values:   rowValues(row, &child.Table, child.Locales),
			}
			rec.ID, _ = row["id"].(string)
			rec.Path, _ = row["path"].(string)
			if l, ok := row["locale"].(string); ok {
				ex.RowLocales[rec.ID] = l
			}
			ex.Trees = append(ex.Trees, rec)
		}
	}
	if tt.Relations != nil {
		rows, _ := raw[tt.Relations.Name].([]map[string]any)
		for _, row := range rows {
			rec := rizom.RelationRecord{Position: intOf(row["position"])}
			rec.ID, _ = row["id"].(string)
			rec.Path, _ = row["path"].(string)
			rec.Locale, _ = row["locale"].(string)
			for _, target := range tt.Relations.Targets {
				if id, ok := row[schema.TargetIDColumn(target)].(string); ok && id != "" {
					rec.RelationTo = target
					rec.TargetID = id
					break
				}
			}
			if rec.TargetID == "" {
				continue
			}
			ex.Relations = append(ex.Relations, rec)
		}
	}
	return ex
}

func rowValues(row map[string]any, main *schema.Table, locales *schema.Table) map[string]any {
	values := map[string]any{}
	for _, c := range main.Columns {
		if v, ok := row[c.Name]; ok {
			values[c.Path] = v
		}
	}
	if locales != nil {
		if side, ok := row[locales.Name].([]map[string]any); ok && len(side) > 0 {
			for _, c := range locales.Columns {
				if v, ok := side[0][c.Name]; ok {
					values[c.Path] = v
				}
			}
		}
	}
	return values
}

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

// Saver applies reconciliation writes through the store.
type Saver struct {
	store  rizom.Store
	logger rizom.Logger
}

// NewSaver builds a Saver. logger may be nil.
func NewSaver(store rizom.Store, logger rizom.Logger) *Saver {
	if logger == nil {
		logger = rizom.NopLogger{}
	}
	return &Saver{store: store, logger: logger}
}

// SaveArgs carries one reconciliation pass. OwnerID is the content-row id the
// child rows hang off: the version id for versioned types.
type SaveArgs struct {
	Slug     string
	OwnerID  string
	Locale   string
	Existing Existing
	Incoming Extraction
}

// Save diffs and applies child rows: blocks, then tree nodes, then relations.
// Deletes run before creates so freed (path, position) slots can be reused.
// Relations nested under deleted rows are swept before the relation diff
// applies, so a surviving row written at a freed slot keeps its edges.
func (s *Saver) Save(ctx context.Context, args SaveArgs) error {
	blocks := DiffBlocks(args.Existing.Blocks, args.Incoming.Blocks, args.Incoming.Paths, args.Locale, args.Existing.RowLocales)
	trees := DiffTreeNodes(args.Existing.Trees, args.Incoming.Trees, args.Incoming.Paths, args.Locale, args.Existing.RowLocales)

	var orphanedPaths []string
	for _, b := range blocks.ToDelete {
		if err := s.store.DeleteBlock(ctx, args.Slug, b); err != nil {
			return fmt.Errorf("deleting block at %s.%d: %w", b.Path, b.Position, err)
		}
		orphanedPaths = append(orphanedPaths, fmt.Sprintf("%s.%d", b.Path, b.Position))
	}
	for _, b := range blocks.ToCreate {
		if _, err := s.store.CreateBlock(ctx, args.Slug, args.OwnerID, b, args.Locale); err != nil {
			return fmt.Errorf("creating block at %s.%d: %w", b.Path, b.Position, err)
		}
	}
	for _, b := range blocks.ToUpdate {
		if err := s.store.UpdateBlock(ctx, args.Slug, b, args.Locale); err != nil {
			return fmt.Errorf("updating block %s: %w", b.ID, err)
		}
	}

	for _, n := range trees.ToDelete {
		if err := s.store.DeleteTreeNode(ctx, args.Slug, n); err != nil {
			return fmt.Errorf("deleting tree node at %s: %w", n.Path, err)
		}
		orphanedPaths = append(orphanedPaths, n.Path)
	}
	for _, n := range trees.ToCreate {
		if _, err := s.store.CreateTreeNode(ctx, args.Slug, args.OwnerID, n, args.Locale); err != nil {
			return fmt.Errorf("creating tree node at %s: %w", n.Path, err)
		}
	}
	for _, n := range trees.ToUpdate {
		if err := s.store.UpdateTreeNode(ctx, args.Slug, n, args.Locale); err != nil {
			return fmt.Errorf("updating tree node %s: %w", n.ID, err)
		}
	}

	// Relations that lived under deleted blocks or tree nodes were not part
	// of the payload's relation fields, so the relation diff never sees them.
	// They must go before any relation rows land at the freed paths.
	if len(orphanedPaths) > 0 {
		if err := s.store.DeleteRelationsFromPaths(ctx, args.Slug, args.OwnerID, orphanedPaths, args.Locale); err != nil {
			return err
		}
	}

	rels := DiffRelations(args.Existing.Relations, args.Incoming.Relations, args.Incoming.Paths, args.Locale)
	if len(rels.ToDelete) > 0 {
		ids := make([]string, 0, len(rels.ToDelete))
		for _, r := range rels.ToDelete {
			ids = append(ids, r.ID)
		}
		if err := s.store.DeleteRelations(ctx, args.Slug, ids); err != nil {
			return err
		}
	}
	for _, r := range rels.ToCreate {
		if _, err := s.store.CreateRelation(ctx, args.Slug, args.OwnerID, r); err != nil {
			return fmt.Errorf("creating relation at %s: %w", r.Path, err)
		}
	}
	for _, r := range rels.ToMove {
		if err := s.store.UpdateRelationPosition(ctx, args.Slug, r.ID, r.Position); err != nil {
			return fmt.Errorf("moving relation %s: %w", r.ID, err)
		}
	}
	return nil
}
