package store

import (
	"fmt"
	"time"

	"rizom/internal/rizom"
	"rizom/internal/schema"
)

// splitData partitions a document's flattened values into main-table and
// locales-table column sets, keyed by storage column name. Values with no
// matching column (child-table content, meta keys) are ignored here.
func splitData(data rizom.Document, main *schema.Table, locales *schema.Table) (map[string]any, map[string]any) {
	flat := rizom.Flatten(data)
	mainVals := map[string]any{}
	localeVals := map[string]any{}
	for path, value := range flat {
		col := schema.ColumnName(path)
		if c := main.Column(col); c != nil {
			mainVals[col] = toSQL(c.Kind, value)
			continue
		}
		if locales != nil {
			if c := locales.Column(col); c != nil {
				localeVals[col] = toSQL(c.Kind, value)
			}
		}
	}
	return mainVals, localeVals
}

// pickColumns selects the values of a flat map that belong to a table,
// converting them for storage.
func pickColumns(values map[string]any, t *schema.Table) map[string]any {
	out := map[string]any{}
	for path, value := range values {
		col := schema.ColumnName(path)
		if c := t.Column(col); c != nil {
			out[col] = toSQL(c.Kind, value)
		}
	}
	return out
}

// toSQL converts a document value to its storage representation.
func toSQL(kind rizom.FieldKind, value any) any {
	if value == nil {
		return nil
	}
	switch kind {
	case rizom.KindToggle:
		if b, ok := value.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case rizom.KindNumber:
		switch n := value.(type) {
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case float32:
			return float64(n)
		}
	case rizom.KindDate:
		if t, ok := value.(time.Time); ok {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return value
}

// fromSQL converts a scanned storage value back to its document form.
func fromSQL(kind rizom.FieldKind, value any) any {
	if value == nil {
		return nil
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	switch kind {
	case rizom.KindToggle:
		switch n := value.(type) {
		case int:
			return n != 0
		case int64:
			return n != 0
		case bool:
			return n
		}
	case rizom.KindNumber:
		if n, ok := value.(int64); ok {
			return float64(n)
		}
	}
	return value
}

// formatTime renders timestamps the way every table stores them.
func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// scanRowMap reads the current row of rows into a column-keyed map.
func scanRowMap(cols []string, scan func(dest ...any) error) (map[string]any, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	out := make(map[string]any, len(cols))
	for i, c := range cols {
		v := vals[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out[c] = v
	}
	return out, nil
}
