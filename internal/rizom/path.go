package rizom

import (
	"fmt"
	"strconv"
	"strings"
)

// Path identifies a field or child instance inside a document as an ordered
// list of segments. A segment is either a field name or a numeric index.
// All map keys derived from paths use the canonical String() form; code must
// never concatenate dotted strings by hand.
type Path struct {
	segments []Segment
}

// Segment is one step of a Path.
type Segment struct {
	Name  string
	Index int
	IsIdx bool
}

// NewPath builds a path from name segments.
func NewPath(names ...string) Path {
	p := Path{}
	for _, n := range names {
		p.segments = append(p.segments, Segment{Name: n})
	}
	return p
}

// ParsePath parses the canonical dotted form. Purely numeric segments are
// treated as indexes.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	parts := strings.Split(s, ".")
	p := Path{segments: make([]Segment, 0, len(parts))}
	for _, part := range parts {
		if idx, err := strconv.Atoi(part); err == nil {
			p.segments = append(p.segments, Segment{Index: idx, IsIdx: true})
		} else {
			p.segments = append(p.segments, Segment{Name: part})
		}
	}
	return p
}

// Child returns a new path with a name segment appended.
func (p Path) Child(name string) Path {
	segs := make([]Segment, len(p.segments), len(p.segments)+1)
	copy(segs, p.segments)
	return Path{segments: append(segs, Segment{Name: name})}
}

// Index returns a new path with an index segment appended.
func (p Path) Index(i int) Path {
	segs := make([]Segment, len(p.segments), len(p.segments)+1)
	copy(segs, p.segments)
	return Path{segments: append(segs, Segment{Index: i, IsIdx: true})}
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p.segments) == 0 {
		return Path{}
	}
	segs := make([]Segment, len(p.segments)-1)
	copy(segs, p.segments[:len(p.segments)-1])
	return Path{segments: segs}
}

// Last returns the final segment, or a zero Segment for the empty path.
func (p Path) Last() Segment {
	if len(p.segments) == 0 {
		return Segment{}
	}
	return p.segments[len(p.segments)-1]
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool { return len(p.segments) == 0 }

// String renders the canonical dotted form, e.g. "sections.2.title".
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p.segments {
		if i > 0 {
			b.WriteByte('.')
		}
		if seg.IsIdx {
			b.WriteString(strconv.Itoa(seg.Index))
		} else {
			b.WriteString(seg.Name)
		}
	}
	return b.String()
}

// HasIndex reports whether any segment of the path is a slice index, i.e.
// the path addresses a value inside a block or tree instance.
func (p Path) HasIndex() bool {
	for _, seg := range p.segments {
		if seg.IsIdx {
			return true
		}
	}
	return false
}

// HasPrefix reports whether other is a prefix of p at segment granularity.
// "sections.10" is not under the prefix "sections.1".
func (p Path) HasPrefix(other Path) bool {
	if len(other.segments) > len(p.segments) {
		return false
	}
	for i, seg := range other.segments {
		if p.segments[i] != seg {
			return false
		}
	}
	return true
}

// FieldName returns the leading field-name segment. Tree node paths compose
// as "<field>.<index>._children.<index>..." so the head names the owning
// tree field.
func (p Path) FieldName() (string, error) {
	if len(p.segments) == 0 || p.segments[0].IsIdx {
		return "", fmt.Errorf("path %q has no leading field name", p.String())
	}
	return p.segments[0].Name, nil
}
