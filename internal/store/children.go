package store

import (
	"context"
	"fmt"
	"strings"

	"rizom/internal/rizom"
	"rizom/internal/schema"
)

func (s *SQLite) blockTable(slug, blockType string) (*schema.ChildTable, error) {
	tt, err := s.typeTables(slug)
	if err != nil {
		return nil, err
	}
	child, ok := tt.Blocks[blockType]
	if !ok {
		return nil, fmt.Errorf("%w: type %q has no block %q", rizom.ErrOperation, slug, blockType)
	}
	return child, nil
}

func (s *SQLite) treeTable(slug, field string) (*schema.ChildTable, error) {
	tt, err := s.typeTables(slug)
	if err != nil {
		return nil, err
	}
	child, ok := tt.Trees[field]
	if !ok {
		return nil, fmt.Errorf("%w: type %q has no tree field %q", rizom.ErrOperation, slug, field)
	}
	return child, nil
}

// treeField resolves the tree table of a node from its path's leading field
// name, e.g. "menu.0._children.1" belongs to the "menu" tree table.
func treeFieldOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// CreateBlock inserts one block row. Localized block fields go to the block
// table's own locale side-table, keyed to the block row's id.
func (s *SQLite) CreateBlock(ctx context.Context, slug, ownerID string, block rizom.BlockRecord, locale string) (string, error) {
	child, err := s.blockTable(slug, block.Type)
	if err != nil {
		return "", err
	}
	id := block.ID
	if id == "" {
		id = s.idgen.New()
	}
	main, localized := splitChildValues(child, block.Values)
	row := map[string]any{
		"id":       id,
		"ownerId":  ownerID,
		"path":     block.Path,
		"position": block.Position,
		"locale":   nullable(locale),
	}
	for c, v := range main {
		row[c] = v
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := insertRow(ctx, tx, child.Name, row); err != nil {
		return "", err
	}
	if child.Locales != nil {
		if err := s.upsertLocaleRow(ctx, tx, child.Locales.Name, id, locale, localized); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

// UpdateBlock rewrites a block row's path, position and values by id.
func (s *SQLite) UpdateBlock(ctx context.Context, slug string, block rizom.BlockRecord, locale string) error {
	child, err := s.blockTable(slug, block.Type)
	if err != nil {
		return err
	}
	main, localized := splitChildValues(child, block.Values)
	vals := map[string]any{"path": block.Path, "position": block.Position}
	for c, v := range main {
		vals[c] = v
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := updateRow(ctx, tx, child.Name, block.ID, vals); err != nil {
		return err
	}
	if child.Locales != nil {
		if err := s.upsertLocaleRow(ctx, tx, child.Locales.Name, block.ID, locale, localized); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteBlock removes a block row; its locale side-rows cascade.
func (s *SQLite) DeleteBlock(ctx context.Context, slug string, block rizom.BlockRecord) error {
	child, err := s.blockTable(slug, block.Type)
	if err != nil {
		return err
	}
	return s.deleteRowByID(ctx, child.Name, block.ID)
}

// CreateTreeNode inserts one tree node row.
func (s *SQLite) CreateTreeNode(ctx context.Context, slug, ownerID string, node rizom.TreeRecord, locale string) (string, error) {
	child, err := s.treeTable(slug, treeFieldOf(node.Path))
	if err != nil {
		return "", err
	}
	id := node.ID
	if id == "" {
		id = s.idgen.New()
	}
	main, localized := splitChildValues(child, node.Values)
	row := map[string]any{
		"id":       id,
		"ownerId":  ownerID,
		"path":     node.Path,
		"position": node.Position,
		"locale":   nullable(locale),
	}
	for c, v := range main {
		row[c] = v
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := insertRow(ctx, tx, child.Name, row); err != nil {
		return "", err
	}
	if child.Locales != nil {
		if err := s.upsertLocaleRow(ctx, tx, child.Locales.Name, id, locale, localized); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

// UpdateTreeNode rewrites a tree node's path, position and values by id.
func (s *SQLite) UpdateTreeNode(ctx context.Context, slug string, node rizom.TreeRecord, locale string) error {
	child, err := s.treeTable(slug, treeFieldOf(node.Path))
	if err != nil {
		return err
	}
	main, localized := splitChildValues(child, node.Values)
	vals := map[string]any{"path": node.Path, "position": node.Position}
	for c, v := range main {
		vals[c] = v
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := updateRow(ctx, tx, child.Name, node.ID, vals); err != nil {
		return err
	}
	if child.Locales != nil {
		if err := s.upsertLocaleRow(ctx, tx, child.Locales.Name, node.ID, locale, localized); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteTreeNode removes a tree node row.
func (s *SQLite) DeleteTreeNode(ctx context.Context, slug string, node rizom.TreeRecord) error {
	child, err := s.treeTable(slug, treeFieldOf(node.Path))
	if err != nil {
		return err
	}
	return s.deleteRowByID(ctx, child.Name, node.ID)
}

// GetRelations reads every relation row of one content row, unpivoting the
// per-target id columns back into records.
func (s *SQLite) GetRelations(ctx context.Context, slug, ownerID string) ([]rizom.RelationRecord, error) {
	tt, err := s.typeTables(slug)
	if err != nil {
		return nil, err
	}
	if tt.Relations == nil {
		return nil, nil
	}
	cols := []string{"id", "path", "position", "locale"}
	for _, target := range tt.Relations.Targets {
		cols = append(cols, schema.TargetIDColumn(target))
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %q = ? ORDER BY %q, %q",
		quoteList(cols), tt.Relations.Name, "ownerId", "path", "position")
	rows, err := s.db.QueryContext(ctx, stmt, ownerID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", tt.Relations.Name, err)
	}
	defer rows.Close()

	var out []rizom.RelationRecord
	for rows.Next() {
		row, err := scanRowMap(cols, rows.Scan)
		if err != nil {
			return nil, err
		}
		rec := rizom.RelationRecord{OwnerID: ownerID}
		rec.ID, _ = row["id"].(string)
		rec.Path, _ = row["path"].(string)
		if n, ok := row["position"].(int64); ok {
			rec.Position = int(n)
		}
		rec.Locale, _ = row["locale"].(string)
		for _, target := range tt.Relations.Targets {
			if id, ok := row[schema.TargetIDColumn(target)].(string); ok && id != "" {
				rec.RelationTo = target
				rec.TargetID = id
				break
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateRelation inserts one relation row, filling the target-id column that
// matches the record's RelationTo.
func (s *SQLite) CreateRelation(ctx context.Context, slug, ownerID string, rel rizom.RelationRecord) (string, error) {
	tt, err := s.typeTables(slug)
	if err != nil {
		return "", err
	}
	if tt.Relations == nil {
		return "", fmt.Errorf("%w: type %q has no relations", rizom.ErrOperation, slug)
	}
	col := schema.TargetIDColumn(rel.RelationTo)
	if !hasTarget(tt.Relations, rel.RelationTo) {
		return "", fmt.Errorf("%w: type %q has no relation target %q", rizom.ErrOperation, slug, rel.RelationTo)
	}
	id := rel.ID
	if id == "" {
		id = s.idgen.New()
	}
	row := map[string]any{
		"id":       id,
		"ownerId":  ownerID,
		"path":     rel.Path,
		"position": rel.Position,
		"locale":   nullable(rel.Locale),
		col:        rel.TargetID,
	}
	if err := insertRow(ctx, s.db, tt.Relations.Name, row); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateRelationPosition moves an existing relation row without touching its
// target.
func (s *SQLite) UpdateRelationPosition(ctx context.Context, slug, relID string, position int) error {
	tt, err := s.typeTables(slug)
	if err != nil {
		return err
	}
	if tt.Relations == nil {
		return fmt.Errorf("%w: type %q has no relations", rizom.ErrOperation, slug)
	}
	return updateRow(ctx, s.db, tt.Relations.Name, relID, map[string]any{"position": position})
}

// DeleteRelations removes relation rows by id.
func (s *SQLite) DeleteRelations(ctx context.Context, slug string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tt, err := s.typeTables(slug)
	if err != nil {
		return err
	}
	if tt.Relations == nil {
		return nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	stmt := fmt.Sprintf("DELETE FROM %q WHERE %q IN (%s)", tt.Relations.Name, "id", marks)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("deleting relations of %s: %w", slug, err)
	}
	return nil
}

// DeleteRelationsFromPaths removes relation rows whose path equals or extends
// any of the given prefixes. A deleted block at "sections.1" takes
// "sections.1.link" relations with it but never "sections.10.link". Rows of
// other locales stay: only the written locale's rows (and locale-less rows)
// are in scope, matching how diff-driven deletes behave.
func (s *SQLite) DeleteRelationsFromPaths(ctx context.Context, slug, ownerID string, paths []string, locale string) error {
	if len(paths) == 0 {
		return nil
	}
	tt, err := s.typeTables(slug)
	if err != nil {
		return err
	}
	if tt.Relations == nil {
		return nil
	}
	var clauses []string
	args := []any{ownerID}
	for _, p := range paths {
		clauses = append(clauses, fmt.Sprintf("%q = ? OR %q LIKE ?", "path", "path"))
		args = append(args, p, p+".%")
	}
	stmt := fmt.Sprintf("DELETE FROM %q WHERE %q = ? AND (%s)",
		tt.Relations.Name, "ownerId", strings.Join(clauses, " OR "))
	if locale != "" {
		stmt += fmt.Sprintf(" AND (%q IS NULL OR %q = '' OR %q = ?)", "locale", "locale", "locale")
		args = append(args, locale)
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("deleting relations from paths of %s: %w", slug, err)
	}
	return nil
}

func (s *SQLite) deleteRowByID(ctx context.Context, table, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %q WHERE %q = ?", table, "id")
	if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

// splitChildValues partitions a child record's dotted-path values into the
// main child table and its locale side-table.
func splitChildValues(child *schema.ChildTable, values map[string]any) (map[string]any, map[string]any) {
	main := pickColumns(values, &child.Table)
	var localized map[string]any
	if child.Locales != nil {
		localized = pickColumns(values, child.Locales)
	}
	return main, localized
}

func hasTarget(rt *schema.RelationTable, target string) bool {
	for _, t := range rt.Targets {
		if t == target {
			return true
		}
	}
	return false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
