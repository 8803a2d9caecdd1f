package rizom

import (
	"strconv"
	"strings"
)

// Document is the logical, nested form of a stored document. Keys are field
// names; structural fields nest further maps and slices.
type Document = map[string]any

// Meta keys present on every document alongside its fields.
const (
	MetaID        = "id"
	MetaVersionID = "versionId"
	MetaStatus    = "status"
	MetaCreatedAt = "createdAt"
	MetaUpdatedAt = "updatedAt"
	MetaPrototype = "_prototype"
	MetaType      = "_type"
	MetaEditedBy  = "editedBy"
)

// Version status values, persisted verbatim.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// GetValue resolves a path inside a nested document. Index segments step into
// slices; a missing or mistyped step returns (nil, false).
func GetValue(doc Document, p Path) (any, bool) {
	var cur any = doc
	for _, seg := range p.segments {
		if seg.IsIdx {
			s, ok := cur.([]any)
			if !ok || seg.Index < 0 || seg.Index >= len(s) {
				return nil, false
			}
			cur = s[seg.Index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg.Name]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetValue writes a value at a path, creating intermediate maps and growing
// slices as needed.
func SetValue(doc Document, p Path, value any) {
	setValue(doc, p.segments, value)
}

func setValue(cur any, segs []Segment, value any) any {
	if len(segs) == 0 {
		return value
	}
	seg := segs[0]
	if seg.IsIdx {
		s, _ := cur.([]any)
		for len(s) <= seg.Index {
			s = append(s, nil)
		}
		s[seg.Index] = setValue(s[seg.Index], segs[1:], value)
		return s
	}
	m, ok := cur.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[seg.Name] = setValue(m[seg.Name], segs[1:], value)
	return m
}

// DeleteValue removes the value at a path if present.
func DeleteValue(doc Document, p Path) {
	if p.IsEmpty() {
		return
	}
	parent, ok := GetValue(doc, p.Parent())
	if !ok {
		return
	}
	last := p.Last()
	if last.IsIdx {
		return // positional removal is reconciliation's job, not a map edit
	}
	if m, ok := parent.(map[string]any); ok {
		delete(m, last.Name)
	}
}

// Flatten converts a nested document to dotted-path keys. Slices whose
// elements are maps flatten element-wise ("sections.0.title"); scalar slices
// stay in place as values.
func Flatten(doc Document) map[string]any {
	flat := map[string]any{}
	flattenInto(flat, "", doc)
	return flat
}

func flattenInto(flat map[string]any, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 && prefix != "" {
			flat[prefix] = val
			return
		}
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(flat, key, child)
		}
	case []any:
		if !sliceOfMaps(val) {
			flat[prefix] = val
			return
		}
		for i, child := range val {
			flattenInto(flat, prefix+"."+strconv.Itoa(i), child)
		}
	default:
		flat[prefix] = v
	}
}

func sliceOfMaps(s []any) bool {
	if len(s) == 0 {
		return false
	}
	for _, v := range s {
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// Unflatten rebuilds a nested document from dotted-path keys, turning numeric
// segments into slice elements.
func Unflatten(flat map[string]any) Document {
	doc := Document{}
	for key, value := range flat {
		SetValue(doc, ParsePath(key), value)
	}
	return doc
}

// DeepMerge lays overlay on top of base, recursing into maps. Slices and
// scalars from the overlay win wholesale.
func DeepMerge(base, overlay Document) Document {
	out := Document{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = DeepMerge(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// BlankDocument produces a document with every form field present at its
// declared default (nil when none), so reads never omit schema fields.
func BlankDocument(ct *CompiledType) Document {
	doc := Document{
		MetaPrototype: string(ct.Prototype),
		MetaType:      ct.Slug,
	}
	blankFields(doc, ct.Fields, NewPath())
	return doc
}

func blankFields(doc Document, fields []Field, at Path) {
	for i := range fields {
		f := &fields[i]
		p := at.Child(f.Name)
		switch f.Kind {
		case KindGroup:
			blankFields(doc, f.Fields, p)
		case KindTabs:
			for _, tab := range f.Tabs {
				blankFields(doc, tab.Fields, at)
			}
		case KindBlocks, KindTree:
			SetValue(doc, p, []any{})
		case KindRelation:
			if f.Many {
				SetValue(doc, p, []any{})
			} else {
				SetValue(doc, p, nil)
			}
		default:
			SetValue(doc, p, f.DefaultValue)
		}
	}
}

// NormalizeValue coerces the string renderings that generic payload sources
// (form posts) produce: booleans, null, integers and floats.
func NormalizeValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if isInt(s) {
		n, _ := strconv.Atoi(s)
		return n
	}
	if isFloat(s) {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	return value
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isFloat(s string) bool {
	dot := strings.IndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return false
	}
	return isInt(s[:dot]) && isInt(s[dot+1:])
}
