package operations_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rizom/internal/operations"
	"rizom/internal/rizom"
	"rizom/internal/schema"
	"rizom/internal/store"
	"rizom/internal/testutil"
)

// newService wires a full operations service over an in-memory store with a
// deterministic clock and id sequence.
func newService(t *testing.T, types rizom.Config) (*operations.Service, *testutil.StubClock) {
	t.Helper()
	compiled, err := rizom.Compile(types)
	if err != nil {
		t.Fatalf("compiling types: %v", err)
	}

	db, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	// An in-memory database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	s, err := schema.Build(compiled)
	if err != nil {
		db.Close()
		t.Fatalf("building schema: %v", err)
	}
	if _, err := db.Exec(schema.GenerateDDL(s)); err != nil {
		db.Close()
		t.Fatalf("applying schema: %v", err)
	}

	clock := testutil.FixedClock()
	st, err := store.NewFromDB(db, compiled, rizom.NopLogger{}, clock, testutil.NewStubIDGenerator(), ":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc, err := operations.New(compiled, st, rizom.NopLogger{}, clock, testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}
	return svc, clock
}

func TestCreate_FullDocument(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	writer, err := svc.Collection("writers").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Ada", "email": "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("Create(writer) error = %v", err)
	}
	writerID, _ := writer[rizom.MetaID].(string)
	if writerID == "" {
		t.Fatal("writer id missing")
	}

	doc, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{
			"title": "Home Page",
			"sections": []any{
				map[string]any{"type": "paragraph", "text": "Hello"},
				map[string]any{"type": "gallery", "caption": "Pics", "columns": float64(2)},
			},
			"author": writerID,
		},
	})
	if err != nil {
		t.Fatalf("Create(page) error = %v", err)
	}

	if doc["title"] != "Home Page" {
		t.Errorf("title = %v", doc["title"])
	}
	if doc["slug"] != "home-page" {
		t.Errorf("slug = %v, want derived from title", doc["slug"])
	}
	if doc[rizom.MetaStatus] != rizom.StatusPublished {
		t.Errorf("status = %v, want published on first version", doc[rizom.MetaStatus])
	}

	sections, _ := doc["sections"].([]any)
	if len(sections) != 2 {
		t.Fatalf("sections = %v", doc["sections"])
	}
	first, _ := sections[0].(map[string]any)
	if first["type"] != "paragraph" || first["text"] != "Hello" {
		t.Errorf("sections[0] = %v", first)
	}
	if id, _ := first["id"].(string); id == "" {
		t.Error("block instance must echo its row id")
	}
	second, _ := sections[1].(map[string]any)
	if second["type"] != "gallery" || second["caption"] != "Pics" {
		t.Errorf("sections[1] = %v", second)
	}
	if v, ok := second["columns"].(float64); !ok || v != 2 {
		t.Errorf("columns = %v (%T)", second["columns"], second["columns"])
	}

	author, _ := doc["author"].(map[string]any)
	if author["relationTo"] != "writers" || author["documentId"] != writerID {
		t.Errorf("author = %v", doc["author"])
	}
	if related, ok := doc["related"].([]any); !ok || len(related) != 0 {
		t.Errorf("untouched many-relation = %v, want empty slice", doc["related"])
	}
}

func TestCreate_AccessDenied(t *testing.T) {
	types := testutil.TestTypes()
	types.Collections[1].Access.Create = func(user *rizom.User) bool {
		return user.HasRole("admin")
	}
	svc, _ := newService(t, types)

	_, err := svc.Collection("writers").Create(context.Background(), rizom.CreateArgs{
		Data: rizom.Document{"name": "Eve"},
	})
	if !errors.Is(err, rizom.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}

	_, err = svc.Collection("writers").Create(context.Background(), rizom.CreateArgs{
		Data: rizom.Document{"name": "Root"},
		User: &rizom.User{ID: "u1", Roles: []string{"admin"}},
	})
	if err != nil {
		t.Errorf("admin create error = %v", err)
	}
}

func TestCreate_ValidationErrorsAccumulate(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())

	_, err := svc.Collection("writers").Create(context.Background(), rizom.CreateArgs{
		Data: rizom.Document{"email": "not-an-address"},
	})
	var verrs *rizom.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	if verrs.Fields["name"] != rizom.ErrCodeRequired {
		t.Errorf("name code = %q", verrs.Fields["name"])
	}
	if verrs.Fields["email"] != rizom.ErrCodeInvalid {
		t.Errorf("email code = %q", verrs.Fields["email"])
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	if _, err := svc.Collection("writers").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Ada", "email": "ada@example.com"},
	}); err != nil {
		t.Fatalf("first create error = %v", err)
	}

	_, err := svc.Collection("writers").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Imposter", "email": "ada@example.com"},
	})
	var verrs *rizom.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	if verrs.Fields["email"] != rizom.ErrCodeUnique {
		t.Errorf("email code = %q, want unique", verrs.Fields["email"])
	}
}

func TestRichTextSanitized(t *testing.T) {
	types := rizom.Config{
		Collections: []rizom.DocumentType{{
			Slug: "posts",
			Fields: []rizom.Field{
				{Name: "body", Kind: rizom.KindRichText},
			},
		}},
	}
	svc, _ := newService(t, types)

	doc, err := svc.Collection("posts").Create(context.Background(), rizom.CreateArgs{
		Data: rizom.Document{"body": `<p>hi</p><script>alert(1)</script>`},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc["body"] != "<p>hi</p>" {
		t.Errorf("body = %q, want script stripped", doc["body"])
	}
}

func TestUpdateByID_PartialPayloadKeepsChildren(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	doc, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{
			"title": "Home",
			"sections": []any{
				map[string]any{"type": "paragraph", "text": "Keep me"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)
	sections, _ := doc["sections"].([]any)
	blockID, _ := sections[0].(map[string]any)["id"].(string)

	updated, err := svc.Collection("pages").UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID:   id,
		Data: rizom.Document{"visits": float64(3)},
	})
	if err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}
	if v, _ := updated["visits"].(float64); v != 3 {
		t.Errorf("visits = %v", updated["visits"])
	}
	if updated["title"] != "Home" {
		t.Errorf("title = %v, want untouched", updated["title"])
	}
	if updated[rizom.MetaStatus] != rizom.StatusPublished {
		t.Errorf("status = %v, want still published", updated[rizom.MetaStatus])
	}
	sections, _ = updated["sections"].([]any)
	if len(sections) != 1 {
		t.Fatalf("sections = %v, want the block preserved", updated["sections"])
	}
	block, _ := sections[0].(map[string]any)
	if block["id"] != blockID || block["text"] != "Keep me" {
		t.Errorf("block = %v, want same row id and content", block)
	}
}

func TestUpdateByID_ReorderKeepsRowIDs(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	doc, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{
			"title": "Home",
			"sections": []any{
				map[string]any{"type": "paragraph", "text": "one"},
				map[string]any{"type": "paragraph", "text": "two"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)
	sections, _ := doc["sections"].([]any)
	firstID, _ := sections[0].(map[string]any)["id"].(string)
	secondID, _ := sections[1].(map[string]any)["id"].(string)

	updated, err := svc.Collection("pages").UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID: id,
		Data: rizom.Document{
			"sections": []any{
				map[string]any{"id": secondID, "type": "paragraph", "text": "two"},
				map[string]any{"id": firstID, "type": "paragraph", "text": "one"},
			},
		},
	})
	if err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}
	sections, _ = updated["sections"].([]any)
	if len(sections) != 2 {
		t.Fatalf("sections = %v", updated["sections"])
	}
	if sections[0].(map[string]any)["id"] != secondID || sections[1].(map[string]any)["id"] != firstID {
		t.Errorf("reorder minted new rows: %v", sections)
	}
	if sections[0].(map[string]any)["text"] != "two" {
		t.Errorf("sections[0] = %v", sections[0])
	}
}

func TestDraftFlow(t *testing.T) {
	svc, clock := newService(t, testutil.TestTypes())
	ctx := context.Background()
	pages := svc.Collection("pages")

	doc, err := pages.Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"title": "Live"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)
	publishedVersion, _ := doc[rizom.MetaVersionID].(string)

	clock.Advance(time.Minute)
	draft, err := pages.UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID:    id,
		Data:  rizom.Document{"title": "Work in progress"},
		Draft: true,
	})
	if err != nil {
		t.Fatalf("UpdateByID(draft) error = %v", err)
	}
	draftVersion, _ := draft[rizom.MetaVersionID].(string)
	if draftVersion == publishedVersion {
		t.Fatal("draft update must seed its own version")
	}
	if draft["title"] != "Work in progress" {
		t.Errorf("draft title = %v", draft["title"])
	}

	t.Run("published read untouched by the draft", func(t *testing.T) {
		live, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id})
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if live["title"] != "Live" || live[rizom.MetaVersionID] != publishedVersion {
			t.Errorf("live = title %v, versionId %v", live["title"], live[rizom.MetaVersionID])
		}
	})

	t.Run("publishing the draft demotes the old version", func(t *testing.T) {
		clock.Advance(time.Minute)
		published, err := pages.UpdateByID(ctx, rizom.UpdateByIDArgs{
			ID:        id,
			VersionID: draftVersion,
			Data:      rizom.Document{rizom.MetaStatus: rizom.StatusPublished},
		})
		if err != nil {
			t.Fatalf("UpdateByID(publish) error = %v", err)
		}
		if published[rizom.MetaStatus] != rizom.StatusPublished {
			t.Errorf("status = %v", published[rizom.MetaStatus])
		}

		live, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id})
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if live[rizom.MetaVersionID] != draftVersion || live["title"] != "Work in progress" {
			t.Errorf("live after publish = title %v, versionId %v", live["title"], live[rizom.MetaVersionID])
		}

		old, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id, VersionID: publishedVersion})
		if err != nil {
			t.Fatalf("FindByID(old) error = %v", err)
		}
		if old[rizom.MetaStatus] != rizom.StatusDraft {
			t.Errorf("old status = %v, want demoted", old[rizom.MetaStatus])
		}
	})
}

func TestUpdateByID_BlockDeleteKeepsSiblingRelation(t *testing.T) {
	types := rizom.Config{
		Collections: []rizom.DocumentType{
			{
				Slug: "landing",
				Fields: []rizom.Field{
					{Name: "title", Kind: rizom.KindText},
					{Name: "rows", Kind: rizom.KindBlocks, Blocks: []rizom.BlockDef{
						{Name: "teaser", Fields: []rizom.Field{
							{Name: "headline", Kind: rizom.KindText},
							{Name: "link", Kind: rizom.KindRelation, RelationTo: "articles"},
						}},
					}},
				},
			},
			{
				Slug:   "articles",
				Fields: []rizom.Field{{Name: "name", Kind: rizom.KindText}},
			},
		},
	}
	svc, _ := newService(t, types)
	ctx := context.Background()

	first, err := svc.Collection("articles").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "First"},
	})
	if err != nil {
		t.Fatalf("Create(article) error = %v", err)
	}
	second, err := svc.Collection("articles").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Second"},
	})
	if err != nil {
		t.Fatalf("Create(article) error = %v", err)
	}
	firstID, _ := first[rizom.MetaID].(string)
	secondID, _ := second[rizom.MetaID].(string)

	doc, err := svc.Collection("landing").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{
			"title": "Home",
			"rows": []any{
				map[string]any{"type": "teaser", "headline": "one", "link": firstID},
				map[string]any{"type": "teaser", "headline": "two", "link": secondID},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create(landing) error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)
	rows, _ := doc["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows = %v", doc["rows"])
	}
	survivor, _ := rows[1].(map[string]any)

	// Dropping the first block frees its slot; the second block slides into
	// it and must keep its relation row.
	updated, err := svc.Collection("landing").UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID: id,
		Data: rizom.Document{
			"rows": []any{
				map[string]any{
					"id":       survivor["id"],
					"type":     "teaser",
					"headline": "two",
					"link":     survivor["link"],
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}
	rows, _ = updated["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows after delete = %v", updated["rows"])
	}
	block, _ := rows[0].(map[string]any)
	if block["headline"] != "two" {
		t.Errorf("surviving block = %v", block)
	}
	link, _ := block["link"].(map[string]any)
	if link["documentId"] != secondID {
		t.Errorf("surviving link = %v, want still pointing at %s", block["link"], secondID)
	}
}

func TestDraftSeedKeepsOtherLocales(t *testing.T) {
	svc, clock := newService(t, testutil.TestTypes())
	ctx := context.Background()
	pages := svc.Collection("pages")

	doc, err := pages.Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{
			"title": "Hello",
			"sections": []any{
				map[string]any{"type": "paragraph", "text": "hello"},
			},
		},
		Locale: "en",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)
	sections, _ := doc["sections"].([]any)
	blockID, _ := sections[0].(map[string]any)["id"].(string)

	if _, err := pages.UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID: id,
		Data: rizom.Document{
			"title": "Bonjour",
			"sections": []any{
				map[string]any{"id": blockID, "type": "paragraph", "text": "salut"},
			},
		},
		Locale: "fr",
	}); err != nil {
		t.Fatalf("UpdateByID(fr) error = %v", err)
	}

	clock.Advance(time.Minute)
	draft, err := pages.UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID:     id,
		Data:   rizom.Document{"title": "Work copy"},
		Locale: "en",
		Draft:  true,
	})
	if err != nil {
		t.Fatalf("UpdateByID(draft) error = %v", err)
	}
	if draft[rizom.MetaVersionID] == doc[rizom.MetaVersionID] {
		t.Fatal("draft update must seed its own version")
	}

	fr, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id, Locale: "fr", Draft: true})
	if err != nil {
		t.Fatalf("FindByID(fr draft) error = %v", err)
	}
	if fr["title"] != "Bonjour" {
		t.Errorf("fr draft title = %v, want carried over from the prior version", fr["title"])
	}
	frSections, _ := fr["sections"].([]any)
	if len(frSections) != 1 {
		t.Fatalf("fr draft sections = %v", fr["sections"])
	}
	if text := frSections[0].(map[string]any)["text"]; text != "salut" {
		t.Errorf("fr draft block text = %v", text)
	}

	en, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id, Locale: "en", Draft: true})
	if err != nil {
		t.Fatalf("FindByID(en draft) error = %v", err)
	}
	if en["title"] != "Work copy" {
		t.Errorf("en draft title = %v", en["title"])
	}
	enSections, _ := en["sections"].([]any)
	if len(enSections) != 1 || enSections[0].(map[string]any)["text"] != "hello" {
		t.Errorf("en draft sections = %v", en["sections"])
	}
}

func TestCreate_RequiredRelation(t *testing.T) {
	types := rizom.Config{
		Collections: []rizom.DocumentType{
			{
				Slug: "briefs",
				Fields: []rizom.Field{
					{Name: "subject", Kind: rizom.KindText},
					{Name: "owner", Kind: rizom.KindRelation, RelationTo: "people", Required: true},
				},
			},
			{
				Slug:   "people",
				Fields: []rizom.Field{{Name: "name", Kind: rizom.KindText}},
			},
		},
	}
	svc, _ := newService(t, types)
	ctx := context.Background()

	_, err := svc.Collection("briefs").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"subject": "Q3 plan"},
	})
	var verrs *rizom.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	if verrs.Fields["owner"] != rizom.ErrCodeRequired {
		t.Errorf("owner code = %q, want required", verrs.Fields["owner"])
	}

	person, err := svc.Collection("people").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Create(person) error = %v", err)
	}
	personID, _ := person[rizom.MetaID].(string)

	brief, err := svc.Collection("briefs").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"subject": "Q3 plan", "owner": personID},
	})
	if err != nil {
		t.Fatalf("Create(brief) error = %v", err)
	}
	owner, _ := brief["owner"].(map[string]any)
	if owner["documentId"] != personID {
		t.Errorf("owner = %v", brief["owner"])
	}
}

func TestPanelReadKeepsRowPlacement(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	doc, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{
			"title": "Home",
			"sections": []any{
				map[string]any{"type": "paragraph", "text": "one"},
				map[string]any{"type": "gallery", "caption": "two"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)

	panel, err := svc.Collection("pages").FindByID(ctx, rizom.FindByIDDocArgs{
		ID:   id,
		User: &rizom.User{ID: "u1", IsPanel: true},
	})
	if err != nil {
		t.Fatalf("FindByID(panel) error = %v", err)
	}
	sections, _ := panel["sections"].([]any)
	if len(sections) != 2 {
		t.Fatalf("sections = %v", panel["sections"])
	}
	for i, item := range sections {
		block, _ := item.(map[string]any)
		if block["path"] != "sections" {
			t.Errorf("sections[%d] path = %v", i, block["path"])
		}
		if block["position"] != i {
			t.Errorf("sections[%d] position = %v", i, block["position"])
		}
	}

	plain, err := svc.Collection("pages").FindByID(ctx, rizom.FindByIDDocArgs{ID: id})
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	sections, _ = plain["sections"].([]any)
	block, _ := sections[0].(map[string]any)
	if _, ok := block["path"]; ok {
		t.Errorf("non-panel block = %v, want no placement keys", block)
	}
}

func TestFind_QueryAndDepth(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	writer, err := svc.Collection("writers").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Ada", "email": "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("Create(writer) error = %v", err)
	}
	writerID, _ := writer[rizom.MetaID].(string)

	for _, title := range []string{"First", "Second"} {
		if _, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
			Data: rizom.Document{"title": title, "author": writerID},
		}); err != nil {
			t.Fatalf("Create(%s) error = %v", title, err)
		}
	}

	docs, err := svc.Collection("pages").Find(ctx, rizom.FindArgs{
		Query: rizom.Where("slug", rizom.OpEquals, "first"),
		Depth: 1,
	})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	author, _ := docs[0]["author"].(map[string]any)
	if author["name"] != "Ada" {
		t.Errorf("depth-1 author = %v, want the populated writer", docs[0]["author"])
	}
}

func TestFindByID_OrphanRelationSkipped(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	writer, err := svc.Collection("writers").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Create(writer) error = %v", err)
	}
	writerID, _ := writer[rizom.MetaID].(string)

	doc, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"title": "Home", "author": writerID},
	})
	if err != nil {
		t.Fatalf("Create(page) error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)

	if _, err := svc.Collection("writers").DeleteByID(ctx, writerID, nil); err != nil {
		t.Fatalf("DeleteByID(writer) error = %v", err)
	}

	// A vanished target degrades the read, it does not fail it.
	got, err := svc.Collection("pages").FindByID(ctx, rizom.FindByIDDocArgs{ID: id, Depth: 1})
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got["author"] != nil {
		t.Errorf("author = %v, want nil after the target vanished", got["author"])
	}
}

func TestDeleteByID(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	doc, err := svc.Collection("pages").Create(ctx, rizom.CreateArgs{
		Data: rizom.Document{"title": "Doomed"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)

	got, err := svc.Collection("pages").DeleteByID(ctx, id, nil)
	if err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if got != id {
		t.Errorf("DeleteByID() = %q, want %q", got, id)
	}
	if _, err := svc.Collection("pages").FindByID(ctx, rizom.FindByIDDocArgs{ID: id}); !errors.Is(err, rizom.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestArea_BootstrapAndUpdate(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()
	settings := svc.Area("settings")

	doc, err := settings.Find(ctx, rizom.AreaFindArgs{})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if doc["siteTitle"] != "Untitled" {
		t.Errorf("bootstrap siteTitle = %v, want the declared default", doc["siteTitle"])
	}
	firstID, _ := doc[rizom.MetaID].(string)
	if firstID == "" {
		t.Fatal("bootstrap must mint the singleton row")
	}

	updated, err := settings.Update(ctx, rizom.AreaUpdateArgs{
		Data: rizom.Document{
			"siteTitle":   "My Site",
			"maintenance": true,
			"menu": []any{
				map[string]any{
					"label": "Home",
					"_children": []any{
						map[string]any{"label": "News"},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated[rizom.MetaID] != firstID {
		t.Errorf("update minted a new singleton: %v vs %v", updated[rizom.MetaID], firstID)
	}
	if updated["siteTitle"] != "My Site" || updated["maintenance"] != true {
		t.Errorf("updated = siteTitle %v, maintenance %v", updated["siteTitle"], updated["maintenance"])
	}

	menu, _ := updated["menu"].([]any)
	if len(menu) != 1 {
		t.Fatalf("menu = %v", updated["menu"])
	}
	root, _ := menu[0].(map[string]any)
	if root["label"] != "Home" {
		t.Errorf("root node = %v", root)
	}
	children, _ := root["_children"].([]any)
	if len(children) != 1 || children[0].(map[string]any)["label"] != "News" {
		t.Errorf("children = %v", root["_children"])
	}
	if id, _ := children[0].(map[string]any)["id"].(string); id == "" {
		t.Error("tree node must echo its row id")
	}
}

func TestLocaleIsolation(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()
	pages := svc.Collection("pages")

	doc, err := pages.Create(ctx, rizom.CreateArgs{
		Data:   rizom.Document{"title": "Hello"},
		Locale: "en",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, _ := doc[rizom.MetaID].(string)

	if _, err := pages.UpdateByID(ctx, rizom.UpdateByIDArgs{
		ID:     id,
		Data:   rizom.Document{"title": "Bonjour"},
		Locale: "fr",
	}); err != nil {
		t.Fatalf("UpdateByID(fr) error = %v", err)
	}

	en, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id, Locale: "en"})
	if err != nil {
		t.Fatalf("FindByID(en) error = %v", err)
	}
	if en["title"] != "Hello" {
		t.Errorf("en title = %v, want untouched by the fr write", en["title"])
	}
	fr, err := pages.FindByID(ctx, rizom.FindByIDDocArgs{ID: id, Locale: "fr"})
	if err != nil {
		t.Fatalf("FindByID(fr) error = %v", err)
	}
	if fr["title"] != "Bonjour" {
		t.Errorf("fr title = %v", fr["title"])
	}
}

func TestHooks(t *testing.T) {
	t.Run("before hooks shape the payload", func(t *testing.T) {
		types := testutil.TestTypes()
		types.Collections[1].Hooks.BeforeCreate = []rizom.Hook{
			func(ctx context.Context, args rizom.HookArgs) (rizom.HookArgs, error) {
				args.Data["name"] = args.Data["name"].(string) + " (verified)"
				return args, nil
			},
		}
		svc, _ := newService(t, types)

		doc, err := svc.Collection("writers").Create(context.Background(), rizom.CreateArgs{
			Data: rizom.Document{"name": "Ada"},
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if doc["name"] != "Ada (verified)" {
			t.Errorf("name = %v", doc["name"])
		}
	})

	t.Run("hook failure names the pipeline", func(t *testing.T) {
		types := testutil.TestTypes()
		types.Collections[1].Hooks.BeforeCreate = []rizom.Hook{
			func(ctx context.Context, args rizom.HookArgs) (rizom.HookArgs, error) {
				return args, fmt.Errorf("nope")
			},
		}
		svc, _ := newService(t, types)

		_, err := svc.Collection("writers").Create(context.Background(), rizom.CreateArgs{
			Data: rizom.Document{"name": "Ada"},
		})
		var herr *rizom.HookError
		if !errors.As(err, &herr) {
			t.Fatalf("err = %v, want HookError", err)
		}
		if herr.Hook != "beforeCreate" || herr.Slug != "writers" {
			t.Errorf("hook error = %+v", herr)
		}
	})

	t.Run("recursive hooks hit the depth guard", func(t *testing.T) {
		types := testutil.TestTypes()
		types.Collections[1].Hooks.AfterCreate = []rizom.Hook{
			func(ctx context.Context, args rizom.HookArgs) (rizom.HookArgs, error) {
				_, err := args.API.Collection("writers").Create(ctx, rizom.CreateArgs{
					Data: rizom.Document{"name": "Clone"},
				})
				return args, err
			},
		}
		svc, _ := newService(t, types)

		_, err := svc.Collection("writers").Create(context.Background(), rizom.CreateArgs{
			Data: rizom.Document{"name": "Origin"},
		})
		if !errors.Is(err, rizom.ErrTooManyOperations) {
			t.Errorf("err = %v, want ErrTooManyOperations", err)
		}
	})
}

func TestUnknownTypeOperations(t *testing.T) {
	svc, _ := newService(t, testutil.TestTypes())
	ctx := context.Background()

	if _, err := svc.Collection("ghosts").Find(ctx, rizom.FindArgs{}); !errors.Is(err, rizom.ErrOperation) {
		t.Errorf("unknown collection err = %v, want ErrOperation", err)
	}
	// An area slug is not addressable through the collection surface.
	if _, err := svc.Collection("settings").Find(ctx, rizom.FindArgs{}); !errors.Is(err, rizom.ErrOperation) {
		t.Errorf("prototype mismatch err = %v, want ErrOperation", err)
	}
	if _, err := svc.Area("pages").Find(ctx, rizom.AreaFindArgs{}); !errors.Is(err, rizom.ErrOperation) {
		t.Errorf("area mismatch err = %v, want ErrOperation", err)
	}
}
