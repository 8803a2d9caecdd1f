package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rizom/internal/rizom"
	"rizom/internal/schema"
)

// Get returns the raw singleton document of an area type, rizom.ErrNotFound
// when it has never been created.
func (s *SQLite) Get(ctx context.Context, args rizom.GetArgs) (rizom.RawDoc, error) {
	tt, err := s.typeTables(args.Slug)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT %q FROM %q LIMIT 1", "id", tt.Root)
	var id string
	err = s.db.QueryRowContext(ctx, stmt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("area %s: %w", args.Slug, rizom.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding area %s: %w", args.Slug, err)
	}
	return s.assembleByID(ctx, tt, id, args.VersionID, args.Draft, args.Locale, args.Select)
}

// FindByID returns one raw collection document.
func (s *SQLite) FindByID(ctx context.Context, args rizom.FindByIDArgs) (rizom.RawDoc, error) {
	tt, err := s.typeTables(args.Slug)
	if err != nil {
		return nil, err
	}
	return s.assembleByID(ctx, tt, args.ID, args.VersionID, args.Draft, args.Locale, args.Select)
}

// FindAll lists raw collection documents.
func (s *SQLite) FindAll(ctx context.Context, args rizom.FindAllArgs) ([]rizom.RawDoc, error) {
	tt, err := s.typeTables(args.Slug)
	if err != nil {
		return nil, err
	}
	ids, err := s.rootIDs(ctx, tt, args.Sort, args.Limit, args.Offset)
	if err != nil {
		return nil, err
	}
	docs := make([]rizom.RawDoc, 0, len(ids))
	for _, id := range ids {
		doc, err := s.assembleByID(ctx, tt, id, "", args.Draft, args.Locale, nil)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Query filters raw collection documents with the opaque predicate. For
// unversioned types the predicate compiles to SQL; versioned types resolve
// their current version first and filter the assembled rows, because the
// predicate addresses version content, not the root table.
func (s *SQLite) Query(ctx context.Context, args rizom.QueryArgs) ([]rizom.RawDoc, error) {
	tt, err := s.typeTables(args.Slug)
	if err != nil {
		return nil, err
	}
	if !tt.Versioned {
		where, whereArgs, err := buildWhere(tt, args.Query)
		if err != nil {
			return nil, err
		}
		ids, err := s.rootIDsWhere(ctx, tt, where, whereArgs, args.Sort, args.Limit, args.Offset)
		if err != nil {
			return nil, err
		}
		docs := make([]rizom.RawDoc, 0, len(ids))
		for _, id := range ids {
			doc, err := s.assembleByID(ctx, tt, id, "", args.Draft, args.Locale, nil)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}

	ids, err := s.rootIDs(ctx, tt, args.Sort, 0, 0)
	if err != nil {
		return nil, err
	}
	var docs []rizom.RawDoc
	for _, id := range ids {
		doc, err := s.assembleByID(ctx, tt, id, "", args.Draft, args.Locale, nil)
		if err != nil {
			return nil, err
		}
		if matchQuery(tt, doc, args.Query) {
			docs = append(docs, doc)
		}
	}
	if args.Offset > 0 {
		if args.Offset >= len(docs) {
			return nil, nil
		}
		docs = docs[args.Offset:]
	}
	if args.Limit > 0 && args.Limit < len(docs) {
		docs = docs[:args.Limit]
	}
	return docs, nil
}

func (s *SQLite) rootIDs(ctx context.Context, tt *schema.TypeTables, sortBy string, limit, offset int) ([]string, error) {
	return s.rootIDsWhere(ctx, tt, "", nil, sortBy, limit, offset)
}

func (s *SQLite) rootIDsWhere(ctx context.Context, tt *schema.TypeTables, where string, whereArgs []any, sortBy string, limit, offset int) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %q FROM %q", "id", tt.Root)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	col, desc := parseSort(tt, sortBy)
	fmt.Fprintf(&b, " ORDER BY %q", col)
	if desc {
		b.WriteString(" DESC")
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		if limit <= 0 {
			b.WriteString(" LIMIT -1")
		}
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	rows, err := s.db.QueryContext(ctx, b.String(), whereArgs...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", tt.Slug, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// parseSort resolves a "-updatedAt" style sort expression to a root-table
// column; unknown fields fall back to updatedAt ascending by creation order
// of the expression.
func parseSort(tt *schema.TypeTables, sortBy string) (string, bool) {
	desc := false
	if strings.HasPrefix(sortBy, "-") {
		desc = true
		sortBy = sortBy[1:]
	}
	switch sortBy {
	case "id", "createdAt", "updatedAt":
		return sortBy, desc
	}
	if !tt.Versioned && sortBy != "" {
		col := schema.ColumnName(sortBy)
		if tt.Main.HasColumn(col) {
			return col, desc
		}
	}
	return "updatedAt", desc
}

// assembleByID builds the full raw document: content row (version-resolved),
// locale side-row, block rows, tree rows and relation rows keyed by their
// table names.
func (s *SQLite) assembleByID(ctx context.Context, tt *schema.TypeTables, id, versionID string, draft bool, locale string, sel []string) (rizom.RawDoc, error) {
	rootCols := []string{"id", "createdAt", "updatedAt"}
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %q = ?", quoteList(rootCols), tt.Root, "id")
	rows, err := s.db.QueryContext(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("finding %s %s: %w", tt.Slug, id, err)
	}
	root, err := oneRow(rows, rootCols)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%s %s: %w", tt.Slug, id, rizom.ErrNotFound)
	}

	raw := rizom.RawDoc{}
	var contentID string

	if tt.Versioned {
		version, err := s.selectVersionRow(ctx, tt, id, versionID, draft, sel)
		if err != nil {
			return nil, err
		}
		if version == nil {
			return nil, fmt.Errorf("version of %s %s: %w", tt.Slug, id, rizom.ErrNotFound)
		}
		for c, v := range version {
			raw[c] = v
		}
		contentID, _ = version["id"].(string)
		raw[rizom.MetaVersionID] = contentID
		raw["id"] = id
		delete(raw, "ownerId")
	} else {
		cols := contentColumns(tt, sel)
		stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %q = ?", quoteList(cols), tt.Root, "id")
		rows, err := s.db.QueryContext(ctx, stmt, id)
		if err != nil {
			return nil, fmt.Errorf("reading %s %s: %w", tt.Slug, id, err)
		}
		row, err := oneRow(rows, cols)
		if err != nil {
			return nil, err
		}
		for c, v := range row {
			raw[c] = convertColumn(tt, c, v)
		}
		contentID = id
		raw[rizom.MetaVersionID] = id
	}

	// Projected reads skip locale and child loading: the caller asked for
	// specific root columns only.
	if len(sel) > 0 {
		return raw, nil
	}

	if tt.Locales != nil && locale != "" {
		localeRow, err := s.localeRow(ctx, tt.Locales, contentID, locale)
		if err != nil {
			return nil, err
		}
		if localeRow != nil {
			raw[tt.Locales.Name] = []map[string]any{localeRow}
		}
	}

	for _, name := range tt.BlockTypeNames() {
		child := tt.Blocks[name]
		blockRows, err := s.childRows(ctx, child, contentID, locale, name)
		if err != nil {
			return nil, err
		}
		raw[child.Name] = blockRows
	}
	for _, name := range tt.TreeFieldNames() {
		child := tt.Trees[name]
		treeRows, err := s.childRows(ctx, child, contentID, locale, "")
		if err != nil {
			return nil, err
		}
		raw[child.Name] = treeRows
	}
	if tt.Relations != nil {
		relRows, err := s.relationRows(ctx, tt, contentID)
		if err != nil {
			return nil, err
		}
		raw[tt.Relations.Name] = relRows
	}
	return raw, nil
}

// selectVersionRow resolves which version row a read sees: an explicit id
// always wins; draft=true returns the most recently updated row regardless of
// status; otherwise the published row, falling back to the most recent one.
func (s *SQLite) selectVersionRow(ctx context.Context, tt *schema.TypeTables, ownerID, versionID string, draft bool, sel []string) (map[string]any, error) {
	cols := versionColumns(tt, sel)
	base := fmt.Sprintf("SELECT %s FROM %q WHERE %q = ?", quoteList(cols), tt.Content, "ownerId")

	fetch := func(stmt string, args ...any) (map[string]any, error) {
		rows, err := s.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return nil, fmt.Errorf("reading version of %s: %w", tt.Slug, err)
		}
		row, err := oneRow(rows, cols)
		if err != nil {
			return nil, err
		}
		if row != nil {
			for c, v := range row {
				row[c] = convertColumn(tt, c, v)
			}
		}
		return row, nil
	}

	if versionID != "" {
		return fetch(base+fmt.Sprintf(" AND %q = ?", "id"), ownerID, versionID)
	}
	latest := base + fmt.Sprintf(" ORDER BY %q DESC LIMIT 1", "updatedAt")
	if draft || !tt.Draft {
		return fetch(latest, ownerID)
	}
	published := base + fmt.Sprintf(" AND %q = ? ORDER BY %q DESC LIMIT 1", "status", "updatedAt")
	row, err := fetch(published, ownerID, rizom.StatusPublished)
	if err != nil || row != nil {
		return row, err
	}
	return fetch(latest, ownerID)
}

func (s *SQLite) localeRow(ctx context.Context, t *schema.Table, ownerID, locale string) (map[string]any, error) {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, c.Name)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %q = ? AND %q = ?",
		quoteList(cols), t.Name, "ownerId", "locale")
	rows, err := s.db.QueryContext(ctx, stmt, ownerID, locale)
	if err != nil {
		return nil, fmt.Errorf("reading locale row of %s: %w", t.Name, err)
	}
	row, err := oneRow(rows, cols)
	if err != nil || row == nil {
		return nil, err
	}
	for _, c := range t.Columns {
		row[c.Name] = fromSQL(c.Kind, row[c.Name])
	}
	return row, nil
}

// childRows reads a block or tree table's rows for one owner. Rows from other
// locales are invisible; rows with no locale apply universally. blockType is
// injected as the "type" key for block tables so the transformer can route
// locale side-rows.
func (s *SQLite) childRows(ctx context.Context, child *schema.ChildTable, ownerID, locale, blockType string) ([]map[string]any, error) {
	cols := []string{"id", "path", "position", "locale"}
	for _, c := range child.Columns {
		cols = append(cols, c.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %q WHERE %q = ?", quoteList(cols), child.Name, "ownerId")
	args := []any{ownerID}
	if locale != "" {
		fmt.Fprintf(&b, " AND (%q IS NULL OR %q = '' OR %q = ?)", "locale", "locale", "locale")
		args = append(args, locale)
	}
	fmt.Fprintf(&b, " ORDER BY %q, %q", "path", "position")
	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", child.Name, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row, err := scanRowMap(cols, rows.Scan)
		if err != nil {
			return nil, err
		}
		for _, c := range child.Columns {
			row[c.Name] = fromSQL(c.Kind, row[c.Name])
		}
		if blockType != "" {
			row["type"] = blockType
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", child.Name, err)
	}

	if child.Locales != nil && locale != "" {
		for _, row := range out {
			id, _ := row["id"].(string)
			localeRow, err := s.localeRow(ctx, child.Locales, id, locale)
			if err != nil {
				return nil, err
			}
			if localeRow != nil {
				row[child.Locales.Name] = []map[string]any{localeRow}
			}
		}
	}
	return out, nil
}

func (s *SQLite) relationRows(ctx context.Context, tt *schema.TypeTables, ownerID string) ([]map[string]any, error) {
	cols := []string{"id", "ownerId", "path", "position", "locale"}
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

// contentColumns lists the root/content columns honored by a projection.
func contentColumns(tt *schema.TypeTables, sel []string) []string {
	cols := []string{"id", "createdAt", "updatedAt"}
	if len(sel) == 0 {
		for _, c := range tt.Main.Columns {
			cols = append(cols, c.Name)
		}
		return cols
	}
	for _, path := range sel {
		col := schema.ColumnName(path)
		if tt.Main.HasColumn(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func versionColumns(tt *schema.TypeTables, sel []string) []string {
	cols := []string{"id", "ownerId", "createdAt", "updatedAt"}
	if tt.Draft {
		cols = append(cols, "status")
	}
	if len(sel) == 0 {
		for _, c := range tt.Main.Columns {
			cols = append(cols, c.Name)
		}
		return cols
	}
	for _, path := range sel {
		col := schema.ColumnName(path)
		if tt.Main.HasColumn(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func convertColumn(tt *schema.TypeTables, col string, v any) any {
	if c := tt.Main.Column(col); c != nil {
		return fromSQL(c.Kind, v)
	}
	return v
}

func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}

// oneRow consumes a result set expected to hold at most one row.
func oneRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	row, err := scanRowMap(cols, rows.Scan)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

// buildWhere compiles the opaque predicate to SQL against an unversioned
// content table.
func buildWhere(tt *schema.TypeTables, q rizom.OperationQuery) (string, []any, error) {
	if q.IsZero() {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for _, cond := range q.And {
		col := schema.ColumnName(cond.Path)
		switch col {
		case "id", "createdAt", "updatedAt":
		default:
			c := tt.Main.Column(col)
			if c == nil {
				return "", nil, fmt.Errorf("%w: query path %q has no column", rizom.ErrOperation, cond.Path)
			}
			cond.Value = toSQL(c.Kind, cond.Value)
		}
		switch cond.Op {
		case rizom.OpEquals:
			clauses = append(clauses, fmt.Sprintf("%q = ?", col))
			args = append(args, cond.Value)
		case rizom.OpNotEquals:
			clauses = append(clauses, fmt.Sprintf("%q != ?", col))
			args = append(args, cond.Value)
		case rizom.OpLike:
			clauses = append(clauses, fmt.Sprintf("%q LIKE ?", col))
			args = append(args, cond.Value)
		case rizom.OpIsNull:
			clauses = append(clauses, fmt.Sprintf("%q IS NULL", col))
		case rizom.OpIn:
			vals, ok := cond.Value.([]any)
			if !ok || len(vals) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
			clauses = append(clauses, fmt.Sprintf("%q IN (%s)", col, marks))
			args = append(args, vals...)
		default:
			return "", nil, fmt.Errorf("%w: unknown query operator %q", rizom.ErrOperation, cond.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// matchQuery evaluates the predicate in Go against an assembled raw document,
// used for versioned types where conditions address version content.
func matchQuery(tt *schema.TypeTables, doc rizom.RawDoc, q rizom.OperationQuery) bool {
	for _, cond := range q.And {
		col := schema.ColumnName(cond.Path)
		v := doc[col]
		var want any = cond.Value
		if c := tt.Main.Column(col); c != nil {
			want = fromSQL(c.Kind, toSQL(c.Kind, cond.Value))
		}
		switch cond.Op {
		case rizom.OpEquals:
			if !looseEqual(v, want) {
				return false
			}
		case rizom.OpNotEquals:
			if looseEqual(v, want) {
				return false
			}
		case rizom.OpIsNull:
			if v != nil {
				return false
			}
		case rizom.OpLike:
			s, _ := v.(string)
			pat, _ := want.(string)
			if !strings.Contains(s, strings.Trim(pat, "%")) {
				return false
			}
		case rizom.OpIn:
			vals, _ := want.([]any)
			found := false
			for _, w := range vals {
				if looseEqual(v, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
