package rizom

import "context"

// RawDoc is a document as the store returns it: root columns keyed by their
// storage names (double-underscore nesting), joined child-table rows keyed by
// child table name. Only the transformer interprets this shape.
type RawDoc = map[string]any

// IDPair carries the stable document id plus the version id affected by a
// write. For unversioned types both fields hold the same value.
type IDPair struct {
	ID        string
	VersionID string
}

// VersionOperation selects the write strategy for an update. The versioning
// coordinator resolves it from caller intent; the store executes it.
type VersionOperation int

const (
	// VersionOpUnknown is the zero value and always an error to execute.
	VersionOpUnknown VersionOperation = iota
	// VersionOpSimpleUpdate updates an unversioned document in place.
	VersionOpSimpleUpdate
	// VersionOpUpdateVersion updates the version row named by VersionID.
	VersionOpUpdateVersion
	// VersionOpNewVersion appends a new version row (draft-disabled types:
	// published history is never mutated in place).
	VersionOpNewVersion
	// VersionOpUpdateDraft creates or updates the current draft row.
	VersionOpUpdateDraft
	// VersionOpUpdatePublished updates the published row in place.
	VersionOpUpdatePublished
)

// BlockRecord is one block instance, either extracted from a payload or read
// back from storage. Values holds the block's own form-field values keyed by
// dotted subpath; nested blocks and tree fields are excluded (they are
// records of their own).
type BlockRecord struct {
	ID       string
	Type     string
	Path     string
	Position int
	Values   map[string]any
}

// TreeRecord is one tree node. Path is hierarchical: children compose the
// parent's path with "_children" and their index.
type TreeRecord struct {
	ID       string
	Path     string
	Position int
	Values   map[string]any
}

// RelationRecord is one edge from a document (or one of its blocks or tree
// nodes) to a target document. Locale is empty for non-localized relation
// fields.
type RelationRecord struct {
	ID         string
	OwnerID    string
	Path       string
	Position   int
	RelationTo string
	TargetID   string
	Locale     string
}

// GetArgs addresses the singleton row of an area type.
type GetArgs struct {
	Slug      string
	Locale    string
	VersionID string
	Draft     bool
	Select    []string
}

// FindByIDArgs addresses one collection document, optionally one version.
type FindByIDArgs struct {
	Slug      string
	ID        string
	VersionID string
	Locale    string
	Draft     bool
	Select    []string
}

// FindAllArgs lists collection documents.
type FindAllArgs struct {
	Slug   string
	Locale string
	Draft  bool
	Sort   string
	Limit  int
	Offset int
}

// QueryArgs filters collection documents with an OperationQuery.
type QueryArgs struct {
	Slug   string
	Query  OperationQuery
	Locale string
	Draft  bool
	Sort   string
	Limit  int
	Offset int
}

// InsertArgs creates a document (and its first version for versioned types).
type InsertArgs struct {
	Slug   string
	Data   Document
	Locale string
}

// UpdateArgs updates a document according to the resolved version operation.
type UpdateArgs struct {
	Slug      string
	ID        string
	VersionID string
	Data      Document
	Locale    string
	Operation VersionOperation
}

// Store is the relational persistence contract consumed by the orchestrators
// and the reconciliation engine. Implementations own table naming, row
// shaping and statement-level atomicity.
type Store interface {
	// Document reads. FindByID and Get return ErrNotFound when nothing
	// resolves; Get never auto-creates (the area orchestrator does).
	Get(ctx context.Context, args GetArgs) (RawDoc, error)
	FindByID(ctx context.Context, args FindByIDArgs) (RawDoc, error)
	FindAll(ctx context.Context, args FindAllArgs) ([]RawDoc, error)
	Query(ctx context.Context, args QueryArgs) ([]RawDoc, error)

	// Document writes.
	Insert(ctx context.Context, args InsertArgs) (IDPair, error)
	Update(ctx context.Context, args UpdateArgs) (IDPair, error)
	DeleteByID(ctx context.Context, slug, id string) error
	// CreateArea bootstraps the singleton row of an area type.
	CreateArea(ctx context.Context, slug string, data Document, locale string) (IDPair, error)

	// Block child rows. ownerID is the content-row id: the version id for
	// versioned types, the document id otherwise.
	CreateBlock(ctx context.Context, slug, ownerID string, block BlockRecord, locale string) (string, error)
	UpdateBlock(ctx context.Context, slug string, block BlockRecord, locale string) error
	DeleteBlock(ctx context.Context, slug string, block BlockRecord) error

	// Tree child rows.
	CreateTreeNode(ctx context.Context, slug, ownerID string, node TreeRecord, locale string) (string, error)
	UpdateTreeNode(ctx context.Context, slug string, node TreeRecord, locale string) error
	DeleteTreeNode(ctx context.Context, slug string, node TreeRecord) error

	// Relation rows.
	GetRelations(ctx context.Context, slug, ownerID string) ([]RelationRecord, error)
	CreateRelation(ctx context.Context, slug, ownerID string, rel RelationRecord) (string, error)
	UpdateRelationPosition(ctx context.Context, slug, relID string, position int) error
	DeleteRelations(ctx context.Context, slug string, ids []string) error
	// DeleteRelationsFromPaths removes relation rows under any of the given
	// path prefixes, used when deleted blocks or tree nodes take their
	// nested relations with them. Rows of locales other than the given one
	// survive; locale-less rows never do.
	DeleteRelationsFromPaths(ctx context.Context, slug, ownerID string, paths []string, locale string) error

	Close() error
}
