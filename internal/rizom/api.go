package rizom

import "context"

// CreateArgs is the payload for a collection create.
type CreateArgs struct {
	Data   Document
	Locale string
	User   *User
}

// UpdateByIDArgs is the payload for a collection update.
type UpdateByIDArgs struct {
	ID        string
	Data      Document
	Locale    string
	VersionID string
	Draft     bool
	User      *User
}

// FindArgs filters a collection read.
type FindArgs struct {
	Query  OperationQuery
	Locale string
	Sort   string
	Limit  int
	Offset int
	Depth  int
	Draft  bool
	User   *User
}

// FindByIDDocArgs addresses one document for a read.
type FindByIDDocArgs struct {
	ID        string
	VersionID string
	Locale    string
	Depth     int
	Draft     bool
	Select    []string
	User      *User
}

// AreaFindArgs addresses the singleton document of an area.
type AreaFindArgs struct {
	Locale    string
	VersionID string
	Depth     int
	Draft     bool
	Select    []string
	User      *User
}

// AreaUpdateArgs is the payload for an area update.
type AreaUpdateArgs struct {
	Data      Document
	Locale    string
	VersionID string
	Draft     bool
	User      *User
}

// CollectionAPI is the operation surface of one collection type.
type CollectionAPI interface {
	Create(ctx context.Context, args CreateArgs) (Document, error)
	Find(ctx context.Context, args FindArgs) ([]Document, error)
	FindByID(ctx context.Context, args FindByIDDocArgs) (Document, error)
	UpdateByID(ctx context.Context, args UpdateByIDArgs) (Document, error)
	DeleteByID(ctx context.Context, id string, user *User) (string, error)
}

// AreaAPI is the operation surface of one area type.
type AreaAPI interface {
	Find(ctx context.Context, args AreaFindArgs) (Document, error)
	Update(ctx context.Context, args AreaUpdateArgs) (Document, error)
}

// API is the local operations entry point handed to hooks and to the
// transformer for depth-based relation population.
type API interface {
	Collection(slug string) CollectionAPI
	Area(slug string) AreaAPI
}
