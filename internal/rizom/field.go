package rizom

import (
	"time"
)

// FieldKind discriminates the closed set of field variants. Every switch over
// FieldKind must handle all form kinds plus the structural ones.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindDate
	KindEmail
	KindSlug
	KindSelect
	KindToggle
	KindRelation
	KindRichText
	KindLink

	// Structural kinds. They never map to a column themselves.
	KindGroup
	KindTabs
	KindBlocks
	KindTree
)

// String returns the lowercase kind name used in logs and errors.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindEmail:
		return "email"
	case KindSlug:
		return "slug"
	case KindSelect:
		return "select"
	case KindToggle:
		return "toggle"
	case KindRelation:
		return "relation"
	case KindRichText:
		return "richText"
	case KindLink:
		return "link"
	case KindGroup:
		return "group"
	case KindTabs:
		return "tabs"
	case KindBlocks:
		return "blocks"
	case KindTree:
		return "tree"
	}
	return "unknown"
}

// IsForm reports whether the kind stores a scalar value (maps to a column).
func (k FieldKind) IsForm() bool {
	switch k {
	case KindGroup, KindTabs, KindBlocks, KindTree:
		return false
	}
	return true
}

// ValidateContext carries the surrounding state into a field validator.
type ValidateContext struct {
	Data      Document
	Operation string // "create" or "update"
	ID        string
	User      *User
	Locale    string
}

// FieldHook transforms a single field value before validation or save.
type FieldHook func(value any, field *Field) (any, error)

// FieldAccess holds per-field authorization functions. A nil function allows.
type FieldAccess struct {
	Create func(user *User) bool
	Read   func(user *User) bool
	Update func(user *User, id string) bool
}

// Field is one node of a document-type schema. The Kind discriminates which
// members are meaningful; structural kinds carry nested fields.
type Field struct {
	Name      string
	Kind      FieldKind
	Label     string
	Required  bool
	Localized bool
	Unique    bool
	Hidden    bool
	IsTitle   bool

	DefaultValue any
	Validate     func(value any, ctx ValidateContext) error
	// EmptyCheck overrides the kind's default emptiness test.
	EmptyCheck func(value any) bool

	Access         *FieldAccess
	BeforeValidate []FieldHook
	BeforeSave     []FieldHook
	BeforeRead     []FieldHook

	// KindGroup
	Fields []Field
	// KindTabs
	Tabs []Tab
	// KindBlocks
	Blocks []BlockDef
	// KindTree
	Tree *TreeDef
	// KindRelation
	RelationTo string
	Many       bool
	// KindSelect
	Options []string
	// KindSlug: derive the value from this sibling field when unset.
	SlugFrom string
}

// Tab names a group of fields inside a tabs field. Tabs are a pure layout
// construct: storage flattens them away.
type Tab struct {
	Name   string
	Fields []Field
}

// BlockDef defines one block type usable inside a blocks field.
type BlockDef struct {
	Name   string
	Fields []Field
}

// TreeDef defines the homogeneous node shape of a tree field.
type TreeDef struct {
	Fields   []Field
	MaxDepth int // 0 means the DefaultTreeMaxDepth applies
}

// DefaultTreeMaxDepth bounds tree nesting when a tree field does not set one.
const DefaultTreeMaxDepth = 50

// IsEmpty applies the field's emptiness test, falling back to a per-kind
// default: nil, empty string, or empty slice.
func (f *Field) IsEmpty(value any) bool {
	if f.EmptyCheck != nil {
		return f.EmptyCheck(value)
	}
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case time.Time:
		return v.IsZero()
	}
	return false
}

// User is the caller identity consulted by access functions. Authentication
// itself happens outside this module.
type User struct {
	ID      string
	Email   string
	Roles   []string
	IsPanel bool
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
