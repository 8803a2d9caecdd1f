// Package store implements the rizom.Store contract on SQLite: root and
// locale tables, per-block-type and per-tree-field child tables, and the
// relation junction table, all shaped by the schema package.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rizom/internal/rizom"
	"rizom/internal/schema"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLite implements rizom.Store over a single SQLite database.
type SQLite struct {
	db     *sql.DB
	cfg    *rizom.CompiledConfig
	schema *schema.Schema
	logger rizom.Logger
	clock  rizom.Clock
	idgen  rizom.IDGenerator
	path   string
}

// New opens (or reuses) a SQLite database at path and binds it to the
// compiled configuration. path can be ":memory:" for tests.
func New(path string, cfg *rizom.CompiledConfig, logger rizom.Logger, clock rizom.Clock, idgen rizom.IDGenerator) (*SQLite, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewFromDB(db, cfg, logger, clock, idgen, path)
}

// NewFromDB wraps an existing connection. The caller keeps ownership of db
// configuration but Close still closes it.
func NewFromDB(db *sql.DB, cfg *rizom.CompiledConfig, logger rizom.Logger, clock rizom.Clock, idgen rizom.IDGenerator, path string) (*SQLite, error) {
	s, err := schema.Build(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building schema: %w", err)
	}
	return &SQLite{
		db:     db,
		cfg:    cfg,
		schema: s,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		path:   path,
	}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the engine relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Child-row cascades depend on this; SQLite defaults it off.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for migration tooling.
func (s *SQLite) DB() *sql.DB { return s.db }

// Path returns the database file path (or ":memory:").
func (s *SQLite) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) typeTables(slug string) (*schema.TypeTables, error) {
	tt := s.schema.Type(slug)
	if tt == nil {
		return nil, fmt.Errorf("%w: unknown document type %q", rizom.ErrOperation, slug)
	}
	return tt, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertRow inserts a column-keyed value map, ordering columns for stable
// statements.
func insertRow(ctx context.Context, q execer, table string, values map[string]any) error {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		marks[i] = "?"
		args[i] = values[c]
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

// updateRow updates a row by id. A nil/empty value map still succeeds so
// callers can touch timestamps alone.
func updateRow(ctx context.Context, q execer, table, id string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%q = ?", c)
		args = append(args, values[c])
	}
	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE %q SET %s WHERE %q = ?", table, strings.Join(sets, ", "), "id")
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("updating %s: %w", table, err)
	}
	return nil
}

// upsertLocaleRow inserts or updates the (ownerId, locale) side-row of a
// content, block or tree table.
func (s *SQLite) upsertLocaleRow(ctx context.Context, q execer, table, ownerID, locale string, values map[string]any) error {
	if len(values) == 0 || locale == "" {
		return nil
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%q = ?", c)
		args = append(args, values[c])
	}
	args = append(args, ownerID, locale)
	stmt := fmt.Sprintf("UPDATE %q SET %s WHERE %q = ? AND %q = ?",
		table, strings.Join(sets, ", "), "ownerId", "locale")
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("updating locale row in %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking locale update in %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	row := map[string]any{"id": s.idgen.New(), "ownerId": ownerID, "locale": locale}
	for c, v := range values {
		row[c] = v
	}
	return insertRow(ctx, q, table, row)
}

// Insert creates a document. For versioned types it creates the root row plus
// the first version; draft-enabled types bootstrap that version as published
// so reads never hit a "nothing published" window.
func (s *SQLite) Insert(ctx context.Context, args rizom.InsertArgs) (rizom.IDPair, error) {
	tt, err := s.typeTables(args.Slug)
	if err != nil {
		return rizom.IDPair{}, err
	}
	now := formatTime(s.clock.Now())
	mainVals, localeVals := splitData(args.Data, &tt.Main, tt.Locales)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rizom.IDPair{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var pair rizom.IDPair
	if tt.Versioned {
		docID := s.idgen.New()
		if err := insertRow(ctx, tx, tt.Root, map[string]any{
			"id": docID, "createdAt": now, "updatedAt": now,
		}); err != nil {
			return rizom.IDPair{}, err
		}
		versionID := s.idgen.New()
		row := map[string]any{"id": versionID, "ownerId": docID, "createdAt": now, "updatedAt": now}
		for c, v := range mainVals {
			row[c] = v
		}
		if tt.Draft {
			row["status"] = rizom.StatusPublished
		}
		if err := insertRow(ctx, tx, tt.Content, row); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil && args.Locale != "" && len(localeVals) > 0 {
			localeRow := map[string]any{"id": s.idgen.New(), "ownerId": versionID, "locale": args.Locale}
			for c, v := range localeVals {
				localeRow[c] = v
			}
			if err := insertRow(ctx, tx, tt.Locales.Name, localeRow); err != nil {
				return rizom.IDPair{}, err
			}
		}
		pair = rizom.IDPair{ID: docID, VersionID: versionID}
	} else {
		docID := s.idgen.New()
		row := map[string]any{"id": docID, "createdAt": now, "updatedAt": now}
		for c, v := range mainVals {
			row[c] = v
		}
		if err := insertRow(ctx, tx, tt.Root, row); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil && args.Locale != "" && len(localeVals) > 0 {
			localeRow := map[string]any{"id": s.idgen.New(), "ownerId": docID, "locale": args.Locale}
			for c, v := range localeVals {
				localeRow[c] = v
			}
			if err := insertRow(ctx, tx, tt.Locales.Name, localeRow); err != nil {
				return rizom.IDPair{}, err
			}
		}
		pair = rizom.IDPair{ID: docID, VersionID: docID}
	}

	if err := tx.Commit(); err != nil {
		return rizom.IDPair{}, fmt.Errorf("committing transaction: %w", err)
	}
	return pair, nil
}

// CreateArea bootstraps the singleton row of an area type.
func (s *SQLite) CreateArea(ctx context.Context, slug string, data rizom.Document, locale string) (rizom.IDPair, error) {
	return s.Insert(ctx, rizom.InsertArgs{Slug: slug, Data: data, Locale: locale})
}

// Update applies the write strategy resolved by the versioning coordinator.
// The root row's updatedAt is touched on every branch so "last touched"
// queries on the stable document stay meaningful.
func (s *SQLite) Update(ctx context.Context, args rizom.UpdateArgs) (rizom.IDPair, error) {
	tt, err := s.typeTables(args.Slug)
	if err != nil {
		return rizom.IDPair{}, err
	}
	now := formatTime(s.clock.Now())
	mainVals, localeVals := splitData(args.Data, &tt.Main, tt.Locales)
	status, _ := args.Data[rizom.MetaStatus].(string)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rizom.IDPair{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var pair rizom.IDPair
	switch args.Operation {
	case rizom.VersionOpSimpleUpdate:
		vals := map[string]any{"updatedAt": now}
		for c, v := range mainVals {
			vals[c] = v
		}
		if err := updateRow(ctx, tx, tt.Root, args.ID, vals); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil {
			if err := s.upsertLocaleRow(ctx, tx, tt.Locales.Name, args.ID, args.Locale, localeVals); err != nil {
				return rizom.IDPair{}, err
			}
		}
		pair = rizom.IDPair{ID: args.ID, VersionID: args.ID}

	case rizom.VersionOpUpdateVersion:
		if args.VersionID == "" {
			return rizom.IDPair{}, fmt.Errorf("%w: missing versionId for version update", rizom.ErrOperation)
		}
		if err := s.touchRoot(ctx, tx, tt, args.ID, now); err != nil {
			return rizom.IDPair{}, err
		}
		// Publish is exclusive: flip every sibling to draft before this
		// row becomes the published one.
		if tt.Draft && status == rizom.StatusPublished {
			if err := s.demoteSiblings(ctx, tx, tt, args.ID, args.VersionID); err != nil {
				return rizom.IDPair{}, err
			}
		}
		vals := map[string]any{"updatedAt": now}
		for c, v := range mainVals {
			vals[c] = v
		}
		if tt.Draft && status != "" {
			vals["status"] = status
		}
		if err := updateRow(ctx, tx, tt.Content, args.VersionID, vals); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil {
			if err := s.upsertLocaleRow(ctx, tx, tt.Locales.Name, args.VersionID, args.Locale, localeVals); err != nil {
				return rizom.IDPair{}, err
			}
		}
		pair = rizom.IDPair{ID: args.ID, VersionID: args.VersionID}

	case rizom.VersionOpNewVersion:
		if err := s.touchRoot(ctx, tx, tt, args.ID, now); err != nil {
			return rizom.IDPair{}, err
		}
		predecessorID, err := s.latestVersionID(ctx, tx, tt, args.ID)
		if err != nil {
			return rizom.IDPair{}, err
		}
		versionID := s.idgen.New()
		row := map[string]any{"id": versionID, "ownerId": args.ID, "createdAt": now, "updatedAt": now}
		for c, v := range mainVals {
			row[c] = v
		}
		if tt.Draft {
			row["status"] = rizom.StatusDraft
			if status != "" {
				row["status"] = status
			}
		}
		if err := insertRow(ctx, tx, tt.Content, row); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil && args.Locale != "" && len(localeVals) > 0 {
			localeRow := map[string]any{"id": s.idgen.New(), "ownerId": versionID, "locale": args.Locale}
			for c, v := range localeVals {
				localeRow[c] = v
			}
			if err := insertRow(ctx, tx, tt.Locales.Name, localeRow); err != nil {
				return rizom.IDPair{}, err
			}
		}
		if err := s.cloneVersionContent(ctx, tx, tt, predecessorID, versionID, args.Locale); err != nil {
			return rizom.IDPair{}, err
		}
		pair = rizom.IDPair{ID: args.ID, VersionID: versionID}

	case rizom.VersionOpUpdateDraft:
		if err := s.touchRoot(ctx, tx, tt, args.ID, now); err != nil {
			return rizom.IDPair{}, err
		}
		draftID, err := s.findVersionID(ctx, tx, tt, args.ID, rizom.StatusDraft)
		if err != nil {
			return rizom.IDPair{}, err
		}
		if draftID == "" {
			// No current draft: seed one. The orchestrator passes data
			// already merged over the published content.
			predecessorID, err := s.latestVersionID(ctx, tx, tt, args.ID)
			if err != nil {
				return rizom.IDPair{}, err
			}
			versionID := s.idgen.New()
			row := map[string]any{
				"id": versionID, "ownerId": args.ID, "status": rizom.StatusDraft,
				"createdAt": now, "updatedAt": now,
			}
			for c, v := range mainVals {
				row[c] = v
			}
			if err := insertRow(ctx, tx, tt.Content, row); err != nil {
				return rizom.IDPair{}, err
			}
			if tt.Locales != nil && args.Locale != "" && len(localeVals) > 0 {
				localeRow := map[string]any{"id": s.idgen.New(), "ownerId": versionID, "locale": args.Locale}
				for c, v := range localeVals {
					localeRow[c] = v
				}
				if err := insertRow(ctx, tx, tt.Locales.Name, localeRow); err != nil {
					return rizom.IDPair{}, err
				}
			}
			if err := s.cloneVersionContent(ctx, tx, tt, predecessorID, versionID, args.Locale); err != nil {
				return rizom.IDPair{}, err
			}
			pair = rizom.IDPair{ID: args.ID, VersionID: versionID}
			break
		}
		vals := map[string]any{"updatedAt": now}
		for c, v := range mainVals {
			vals[c] = v
		}
		if err := updateRow(ctx, tx, tt.Content, draftID, vals); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil {
			if err := s.upsertLocaleRow(ctx, tx, tt.Locales.Name, draftID, args.Locale, localeVals); err != nil {
				return rizom.IDPair{}, err
			}
		}
		pair = rizom.IDPair{ID: args.ID, VersionID: draftID}

	case rizom.VersionOpUpdatePublished:
		if err := s.touchRoot(ctx, tx, tt, args.ID, now); err != nil {
			return rizom.IDPair{}, err
		}
		publishedID, err := s.findVersionID(ctx, tx, tt, args.ID, rizom.StatusPublished)
		if err != nil {
			return rizom.IDPair{}, err
		}
		if publishedID == "" {
			return rizom.IDPair{}, fmt.Errorf("published version of %s %s: %w", args.Slug, args.ID, rizom.ErrNotFound)
		}
		vals := map[string]any{"updatedAt": now}
		for c, v := range mainVals {
			vals[c] = v
		}
		if err := updateRow(ctx, tx, tt.Content, publishedID, vals); err != nil {
			return rizom.IDPair{}, err
		}
		if tt.Locales != nil {
			if err := s.upsertLocaleRow(ctx, tx, tt.Locales.Name, publishedID, args.Locale, localeVals); err != nil {
				return rizom.IDPair{}, err
			}
		}
		pair = rizom.IDPair{ID: args.ID, VersionID: publishedID}

	default:
		return rizom.IDPair{}, fmt.Errorf("%w: unhandled version operation %d", rizom.ErrOperation, args.Operation)
	}

	if err := tx.Commit(); err != nil {
		return rizom.IDPair{}, fmt.Errorf("committing transaction: %w", err)
	}
	return pair, nil
}

func (s *SQLite) touchRoot(ctx context.Context, q execer, tt *schema.TypeTables, id, now string) error {
	return updateRow(ctx, q, tt.Root, id, map[string]any{"updatedAt": now})
}

func (s *SQLite) demoteSiblings(ctx context.Context, q execer, tt *schema.TypeTables, ownerID, keepID string) error {
	stmt := fmt.Sprintf("UPDATE %q SET %q = ? WHERE %q = ? AND %q != ?",
		tt.Content, "status", "ownerId", "id")
	if _, err := q.ExecContext(ctx, stmt, rizom.StatusDraft, ownerID, keepID); err != nil {
		return fmt.Errorf("demoting sibling versions: %w", err)
	}
	return nil
}

// latestVersionID returns the most recently updated version row of a
// document regardless of status, "" when none exists yet.
func (s *SQLite) latestVersionID(ctx context.Context, q execer, tt *schema.TypeTables, ownerID string) (string, error) {
	stmt := fmt.Sprintf("SELECT %q FROM %q WHERE %q = ? ORDER BY %q DESC LIMIT 1",
		"id", tt.Content, "ownerId", "updatedAt")
	var id string
	err := q.QueryRowContext(ctx, stmt, ownerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding latest version: %w", err)
	}
	return id, nil
}

// cloneVersionContent copies a predecessor version's locale side-rows and
// child rows onto a freshly inserted version row, so the new version starts
// as a full copy of its source. The written locale's side-row is skipped:
// the caller writes that one from the payload.
func (s *SQLite) cloneVersionContent(ctx context.Context, q execer, tt *schema.TypeTables, fromID, toID, writeLocale string) error {
	if fromID == "" {
		return nil
	}
	if tt.Locales != nil {
		if err := s.cloneLocaleRows(ctx, q, tt.Locales, fromID, toID, writeLocale); err != nil {
			return err
		}
	}
	for _, name := range tt.BlockTypeNames() {
		if err := s.cloneChildRows(ctx, q, tt.Blocks[name], fromID, toID); err != nil {
			return err
		}
	}
	for _, name := range tt.TreeFieldNames() {
		if err := s.cloneChildRows(ctx, q, tt.Trees[name], fromID, toID); err != nil {
			return err
		}
	}
	if tt.Relations != nil {
		if err := s.cloneRelationRows(ctx, q, tt.Relations, fromID, toID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) cloneLocaleRows(ctx context.Context, q execer, t *schema.Table, fromID, toID, skipLocale string) error {
	cols := []string{"locale"}
	for _, c := range t.Columns {
		cols = append(cols, c.Name)
	}
	rows, err := readOwnedRows(ctx, q, t.Name, cols, fromID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if locale, _ := row["locale"].(string); skipLocale != "" && locale == skipLocale {
			continue
		}
		clone := map[string]any{"ownerId": toID}
		for c, v := range row {
			clone[c] = v
		}
		clone["id"] = s.idgen.New()
		if err := insertRow(ctx, q, t.Name, clone); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) cloneChildRows(ctx context.Context, q execer, child *schema.ChildTable, fromID, toID string) error {
	cols := []string{"id", "path", "position", "locale"}
	for _, c := range child.Columns {
		cols = append(cols, c.Name)
	}
	rows, err := readOwnedRows(ctx, q, child.Name, cols, fromID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		oldID, _ := row["id"].(string)
		newID := s.idgen.New()
		clone := map[string]any{"ownerId": toID}
		for c, v := range row {
			clone[c] = v
		}
		clone["id"] = newID
		if err := insertRow(ctx, q, child.Name, clone); err != nil {
			return err
		}
		if child.Locales == nil {
			continue
		}
		if err := s.cloneLocaleRows(ctx, q, child.Locales, oldID, newID, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) cloneRelationRows(ctx context.Context, q execer, rt *schema.RelationTable, fromID, toID string) error {
	cols := []string{"path", "position", "locale"}
	for _, target := range rt.Targets {
		cols = append(cols, schema.TargetIDColumn(target))
	}
	rows, err := readOwnedRows(ctx, q, rt.Name, cols, fromID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		clone := map[string]any{"ownerId": toID}
		for c, v := range row {
			clone[c] = v
		}
		clone["id"] = s.idgen.New()
		if err := insertRow(ctx, q, rt.Name, clone); err != nil {
			return err
		}
	}
	return nil
}

// readOwnedRows loads full rows of one owner, for version cloning.
func readOwnedRows(ctx context.Context, q execer, table string, cols []string, ownerID string) ([]map[string]any, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %q = ?", quoteList(cols), table, "ownerId")
	rows, err := q.QueryContext(ctx, stmt, ownerID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		row, err := scanRowMap(cols, rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLite) findVersionID(ctx context.Context, q execer, tt *schema.TypeTables, ownerID, status string) (string, error) {
	stmt := fmt.Sprintf("SELECT %q FROM %q WHERE %q = ? AND %q = ? ORDER BY %q DESC LIMIT 1",
		"id", tt.Content, "ownerId", "status", "updatedAt")
	var id string
	err := q.QueryRowContext(ctx, stmt, ownerID, status).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding %s version: %w", status, err)
	}
	return id, nil
}

// DeleteByID removes a document's root row; child rows cascade through
// foreign keys.
func (s *SQLite) DeleteByID(ctx context.Context, slug, id string) error {
	tt, err := s.typeTables(slug)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %q WHERE %q = ?", tt.Root, "id")
	res, err := s.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", slug, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of %s %s: %w", slug, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", slug, id, rizom.ErrNotFound)
	}
	return nil
}

// Compile-time check that SQLite implements the store contract.
var _ rizom.Store = (*SQLite)(nil)
