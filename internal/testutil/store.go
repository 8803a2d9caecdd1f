package testutil

import (
	"testing"

	"rizom/internal/rizom"
	"rizom/internal/schema"
	"rizom/internal/store"
)

// NewTestStore creates an in-memory SQLite store for the given configuration
// with the generated schema applied. The store is automatically closed when
// the test completes.
func NewTestStore(t *testing.T, cfg *rizom.CompiledConfig) *store.SQLite {
	t.Helper()

	db, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// An in-memory database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)

	s, err := schema.Build(cfg)
	if err != nil {
		db.Close()
		t.Fatalf("failed to build schema: %v", err)
	}
	if _, err := db.Exec(schema.GenerateDDL(s)); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	st, err := store.NewFromDB(db, cfg, rizom.NopLogger{}, FixedClock(), NewStubIDGenerator(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
