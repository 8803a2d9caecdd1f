package reconcile

import (
	"reflect"

	"rizom/internal/rizom"
)

// BlocksDiff partitions block rows into the writes that reconcile storage
// with a payload.
type BlocksDiff struct {
	ToCreate []rizom.BlockRecord
	ToUpdate []rizom.BlockRecord
	ToDelete []rizom.BlockRecord
}

// TreeDiff is the tree-node equivalent of BlocksDiff.
type TreeDiff struct {
	ToCreate []rizom.TreeRecord
	ToUpdate []rizom.TreeRecord
	ToDelete []rizom.TreeRecord
}

// RelationsDiff partitions relation rows. Moves keep the row and rewrite only
// its position.
type RelationsDiff struct {
	ToCreate []rizom.RelationRecord
	ToMove   []rizom.RelationRecord
	ToDelete []rizom.RelationRecord
}

// DiffBlocks matches incoming block records against existing rows. A record
// echoing a known id keeps that row regardless of where it moved; records
// without one match by (path, position). Existing rows disappear only when
// their path lies inside a structural field the payload carried, and never
// when they belong to another locale.
func DiffBlocks(existing, incoming []rizom.BlockRecord, incomingPaths map[string]bool, locale string, rowLocales map[string]string) BlocksDiff {
	var diff BlocksDiff
	matched := map[string]bool{}

	byID := map[string]*rizom.BlockRecord{}
	byPos := map[[2]any]*rizom.BlockRecord{}
	for i := range existing {
		e := &existing[i]
		byID[e.ID] = e
		byPos[[2]any{e.Path, e.Position}] = e
	}

	for i := range incoming {
		in := incoming[i]
		var e *rizom.BlockRecord
		if in.ID != "" {
			e = byID[in.ID]
		}
		if e == nil {
			if cand := byPos[[2]any{in.Path, in.Position}]; cand != nil && !matched[cand.ID] && cand.Type == in.Type {
				e = cand
			}
		}
		if e == nil || matched[e.ID] {
			in.ID = ""
			diff.ToCreate = append(diff.ToCreate, in)
			continue
		}
		matched[e.ID] = true
		in.ID = e.ID
		if in.Path != e.Path || in.Position != e.Position || !reflect.DeepEqual(in.Values, e.Values) {
			diff.ToUpdate = append(diff.ToUpdate, in)
		}
	}

	for i := range existing {
		e := existing[i]
		if matched[e.ID] {
			continue
		}
		if foreignLocale(rowLocales[e.ID], locale) {
			continue
		}
		if !withinAny(e.Path, incomingPaths) {
			continue
		}
		diff.ToDelete = append(diff.ToDelete, e)
	}
	return diff
}

// DiffTreeNodes matches tree nodes the same way blocks match, except paths
// are per-node so positional identity is the path itself.
func DiffTreeNodes(existing, incoming []rizom.TreeRecord, incomingPaths map[string]bool, locale string, rowLocales map[string]string) TreeDiff {
	var diff TreeDiff
	matched := map[string]bool{}

	byID := map[string]*rizom.TreeRecord{}
	byPath := map[string]*rizom.TreeRecord{}
	for i := range existing {
		e := &existing[i]
		byID[e.ID] = e
		byPath[e.Path] = e
	}

	for i := range incoming {
		in := incoming[i]
		var e *rizom.TreeRecord
		if in.ID != "" {
			e = byID[in.ID]
		}
		if e == nil {
			if cand := byPath[in.Path]; cand != nil && !matched[cand.ID] {
				e = cand
			}
		}
		if e == nil || matched[e.ID] {
			in.ID = ""
			diff.ToCreate = append(diff.ToCreate, in)
			continue
		}
		matched[e.ID] = true
		in.ID = e.ID
		if in.Path != e.Path || in.Position != e.Position || !reflect.DeepEqual(in.Values, e.Values) {
			diff.ToUpdate = append(diff.ToUpdate, in)
		}
	}

	for i := range existing {
		e := existing[i]
		if matched[e.ID] {
			continue
		}
		if foreignLocale(rowLocales[e.ID], locale) {
			continue
		}
		if !withinAny(e.Path, incomingPaths) {
			continue
		}
		diff.ToDelete = append(diff.ToDelete, e)
	}
	return diff
}

// DiffRelations matches edges by (path, target type, target id, locale).
// The same target appearing at a new position is a move, not a delete/create
// pair, so edge row ids stay stable across reorders.
func DiffRelations(existing, incoming []rizom.RelationRecord, incomingPaths map[string]bool, locale string) RelationsDiff {
	var diff RelationsDiff
	matched := map[string]bool{}

	type key struct {
		path, target, targetID, locale string
	}
	byKey := map[key][]*rizom.RelationRecord{}
	for i := range existing {
		e := &existing[i]
		byKey[key{e.Path, e.RelationTo, e.TargetID, e.Locale}] = append(
			byKey[key{e.Path, e.RelationTo, e.TargetID, e.Locale}], e)
	}

	for i := range incoming {
		in := incoming[i]
		var e *rizom.RelationRecord
		for _, cand := range byKey[key{in.Path, in.RelationTo, in.TargetID, in.Locale}] {
			if !matched[cand.ID] {
				e = cand
				break
			}
		}
		if e == nil {
			in.ID = ""
			diff.ToCreate = append(diff.ToCreate, in)
			continue
		}
		matched[e.ID] = true
		if in.Position != e.Position {
			in.ID = e.ID
			diff.ToMove = append(diff.ToMove, in)
		}
	}

	for i := range existing {
		e := existing[i]
		if matched[e.ID] {
			continue
		}
		if foreignLocale(e.Locale, locale) {
			continue
		}
		if !withinAny(e.Path, incomingPaths) {
			continue
		}
		diff.ToDelete = append(diff.ToDelete, e)
	}
	return diff
}

// foreignLocale reports whether a row belongs to a different locale than the
// one being written. Unlocalized rows (empty locale) are never foreign.
func foreignLocale(rowLocale, locale string) bool {
	return rowLocale != "" && rowLocale != locale
}

// withinAny reports whether rowPath lies at or under any payload path. Index
// segments in rowPath still match their field prefix: a row at "sections.1"
// lies within "sections".
func withinAny(rowPath string, paths map[string]bool) bool {
	for p := range paths {
		if pathWithin(rowPath, p) {
			return true
		}
	}
	return false
}
