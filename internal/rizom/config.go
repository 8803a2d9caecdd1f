package rizom

import (
	"fmt"
	"reflect"
)

// Prototype distinguishes the two document-type shapes.
type Prototype string

const (
	PrototypeCollection Prototype = "collection"
	PrototypeArea       Prototype = "area"
)

// VersionsConfig enables versioning for a document type. Draft selects the
// draft/published state machine; without it every update appends a version.
type VersionsConfig struct {
	Draft bool
}

// Access holds type-level authorization functions. A nil function allows the
// operation for any caller.
type Access struct {
	Create func(user *User) bool
	Read   func(user *User, id string) bool
	Update func(user *User, id string) bool
	Delete func(user *User, id string) bool
}

// DocumentType is the static schema of one collection or area, declared at
// configuration time and immutable afterwards.
type DocumentType struct {
	Slug      string
	Prototype Prototype
	Fields    []Field
	Versions  *VersionsConfig
	Auth      bool
	Access    Access
	Hooks     Hooks
}

// Versioned reports whether the type carries a versions table family.
func (dt *DocumentType) Versioned() bool { return dt.Versions != nil }

// Draft reports whether the type uses the draft/published state machine.
func (dt *DocumentType) Draft() bool { return dt.Versions != nil && dt.Versions.Draft }

// Config is the full build-time configuration handed to the service.
type Config struct {
	Collections []DocumentType
	Areas       []DocumentType
	// Locales lists the configured locale codes; empty disables localization.
	Locales       []string
	DefaultLocale string
}

// reservedChildFieldNames may not be redefined inside block or tree field
// sets: the storage layer owns these columns.
var reservedChildFieldNames = map[string]bool{
	"id":       true,
	"type":     true,
	"path":     true,
	"position": true,
	"ownerId":  true,
	"parentId": true,
	"locale":   true,
}

// CompiledType is a DocumentType plus derived metadata produced by Compile.
type CompiledType struct {
	DocumentType
	// AsTitle is the path of the field flagged IsTitle, or "id".
	AsTitle string
	// BlockDefs indexes every distinct block type reachable in the field
	// tree by name.
	BlockDefs map[string]BlockDef
	// TreeFields indexes every tree field by its name.
	TreeFields map[string]*TreeDef
	// Localized reports whether any field in the tree is localized.
	Localized bool
}

// CompiledConfig is the validated, derived form of a Config.
type CompiledConfig struct {
	Types         map[string]*CompiledType
	Locales       []string
	DefaultLocale string
}

// Get returns the compiled type for slug, or nil.
func (c *CompiledConfig) Get(slug string) *CompiledType { return c.Types[slug] }

// IsCollection reports whether slug names a collection type.
func (c *CompiledConfig) IsCollection(slug string) bool {
	t, ok := c.Types[slug]
	return ok && t.Prototype == PrototypeCollection
}

// HasLocale reports whether code is a configured locale.
func (c *CompiledConfig) HasLocale(code string) bool {
	for _, l := range c.Locales {
		if l == code {
			return true
		}
	}
	return false
}

// Compile validates a Config and derives per-type metadata. Configuration
// errors surface here, at build time, never during request handling.
func Compile(cfg Config) (*CompiledConfig, error) {
	out := &CompiledConfig{
		Types:         map[string]*CompiledType{},
		Locales:       cfg.Locales,
		DefaultLocale: cfg.DefaultLocale,
	}
	if out.DefaultLocale == "" && len(out.Locales) > 0 {
		out.DefaultLocale = out.Locales[0]
	}

	add := func(dt DocumentType, proto Prototype) error {
		dt.Prototype = proto
		if dt.Slug == "" {
			return fmt.Errorf("%s type with empty slug", proto)
		}
		if _, dup := out.Types[dt.Slug]; dup {
			return fmt.Errorf("duplicate document type slug %q", dt.Slug)
		}
		if dt.Auth {
			dt.Fields = append(dt.Fields, authFields()...)
		}
		ct := &CompiledType{
			DocumentType: dt,
			AsTitle:      "id",
			BlockDefs:    map[string]BlockDef{},
			TreeFields:   map[string]*TreeDef{},
		}
		if err := compileFields(ct, dt.Fields, NewPath()); err != nil {
			return fmt.Errorf("type %q: %w", dt.Slug, err)
		}
		out.Types[dt.Slug] = ct
		return nil
	}

	for _, dt := range cfg.Collections {
		if err := add(dt, PrototypeCollection); err != nil {
			return nil, err
		}
	}
	for _, dt := range cfg.Areas {
		if err := add(dt, PrototypeArea); err != nil {
			return nil, err
		}
	}

	// Relation targets must exist.
	for _, ct := range out.Types {
		if err := checkRelationTargets(out, ct.Fields); err != nil {
			return nil, fmt.Errorf("type %q: %w", ct.Slug, err)
		}
	}
	return out, nil
}

func compileFields(ct *CompiledType, fields []Field, at Path) error {
	for i := range fields {
		f := &fields[i]
		if f.Name == "" && f.Kind != KindTabs {
			return fmt.Errorf("field at %q has no name", at.String())
		}
		if f.Localized {
			ct.Localized = true
		}
		p := at.Child(f.Name)
		if f.IsTitle && ct.AsTitle == "id" {
			ct.AsTitle = p.String()
		}
		switch f.Kind {
		case KindGroup:
			if err := compileFields(ct, f.Fields, p); err != nil {
				return err
			}
		case KindTabs:
			// Tabs flatten away for storage: children compile at the
			// parent path.
			for _, tab := range f.Tabs {
				if err := compileFields(ct, tab.Fields, at); err != nil {
					return err
				}
			}
		case KindBlocks:
			if len(f.Blocks) == 0 {
				return fmt.Errorf("blocks field %q declares no block types", p.String())
			}
			for _, bd := range f.Blocks {
				if err := checkChildFieldNames(bd.Fields); err != nil {
					return fmt.Errorf("block %q: %w", bd.Name, err)
				}
				if existing, ok := ct.BlockDefs[bd.Name]; ok {
					if !sameFieldSet(existing.Fields, bd.Fields) {
						return fmt.Errorf("block type %q defined twice with different fields", bd.Name)
					}
					continue
				}
				ct.BlockDefs[bd.Name] = bd
				if err := compileFields(ct, bd.Fields, p); err != nil {
					return err
				}
			}
		case KindTree:
			if f.Tree == nil {
				return fmt.Errorf("tree field %q has no node definition", p.String())
			}
			if err := checkChildFieldNames(f.Tree.Fields); err != nil {
				return fmt.Errorf("tree %q: %w", f.Name, err)
			}
			if _, dup := ct.TreeFields[f.Name]; dup {
				return fmt.Errorf("tree field %q defined twice", f.Name)
			}
			ct.TreeFields[f.Name] = f.Tree
			if err := compileFields(ct, f.Tree.Fields, p); err != nil {
				return err
			}
		case KindSlug:
			if f.SlugFrom != "" {
				found := false
				for j := range fields {
					if fields[j].Name == f.SlugFrom {
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("slug field %q derives from unknown sibling %q", f.Name, f.SlugFrom)
				}
			}
		}
	}
	return nil
}

func checkChildFieldNames(fields []Field) error {
	for i := range fields {
		if reservedChildFieldNames[fields[i].Name] {
			return fmt.Errorf("field name %q is reserved", fields[i].Name)
		}
	}
	return nil
}

// sameFieldSet compares two block field sets structurally, ignoring the
// function-typed members which are not comparable.
func sameFieldSet(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Kind != b[i].Kind ||
			a[i].Localized != b[i].Localized || a[i].Required != b[i].Required {
			return false
		}
		if !reflect.DeepEqual(a[i].Options, b[i].Options) {
			return false
		}
	}
	return true
}

func checkRelationTargets(cfg *CompiledConfig, fields []Field) error {
	for i := range fields {
		f := &fields[i]
		switch f.Kind {
		case KindRelation:
			if _, ok := cfg.Types[f.RelationTo]; !ok {
				return fmt.Errorf("relation field %q targets unknown type %q", f.Name, f.RelationTo)
			}
		case KindGroup:
			if err := checkRelationTargets(cfg, f.Fields); err != nil {
				return err
			}
		case KindTabs:
			for _, tab := range f.Tabs {
				if err := checkRelationTargets(cfg, tab.Fields); err != nil {
					return err
				}
			}
		case KindBlocks:
			for _, bd := range f.Blocks {
				if err := checkRelationTargets(cfg, bd.Fields); err != nil {
					return err
				}
			}
		case KindTree:
			if f.Tree != nil {
				if err := checkRelationTargets(cfg, f.Tree.Fields); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// authFields are appended to auth-enabled types. Credential handling lives in
// the external auth provider; only the identity column is stored here.
func authFields() []Field {
	return []Field{
		{Name: "email", Kind: KindEmail, Required: true, Unique: true},
	}
}
