package operations

import (
	"context"
	"fmt"

	"rizom/internal/configmap"
	"rizom/internal/reconcile"
	"rizom/internal/rizom"
	"rizom/internal/transform"
	"rizom/internal/versions"
)

// collectionOps is the CollectionAPI bound to one collection type.
type collectionOps struct {
	svc  *Service
	slug string
	ct   *rizom.CompiledType
}

// Create runs the full write pipeline for a new document: access check,
// blank+payload merge, validation, beforeCreate hooks, versioned insert,
// child-row reconciliation, then a re-read through the transformer so hooks
// and the caller see the document exactly as a subsequent read would.
func (c *collectionOps) Create(ctx context.Context, args rizom.CreateArgs) (rizom.Document, error) {
	if c.ct == nil {
		return nil, unknownType(c.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return nil, err
	}
	if c.ct.Access.Create != nil && !c.ct.Access.Create(args.User) {
		return nil, fmt.Errorf("creating %s: %w", c.slug, rizom.ErrUnauthorized)
	}
	locale := c.svc.defaultLocale(args.Locale)

	data := rizom.DeepMerge(rizom.BlankDocument(c.ct), args.Data)
	cm := configmap.Build(data, c.ct.Fields)
	if err := c.svc.validate(ctx, validateArgs{
		ct: c.ct, data: data, cm: cm, operation: "create", locale: locale, user: args.User,
	}); err != nil {
		return nil, err
	}

	hargs, err := rizom.RunHooks(ctx, "beforeCreate", c.ct.Hooks.BeforeCreate, rizom.HookArgs{
		Data: data, Type: c.ct, Operation: "create", Locale: locale, User: args.User, API: c.svc,
	})
	if err != nil {
		return nil, err
	}
	data = hargs.Data

	pair, err := c.svc.store.Insert(ctx, rizom.InsertArgs{Slug: c.slug, Data: data, Locale: locale})
	if err != nil {
		return nil, fmt.Errorf("inserting %s: %w", c.slug, err)
	}
	c.svc.logger.Debug("document created", "slug", c.slug, "id", pair.ID, "versionId", pair.VersionID)

	cm = configmap.Build(data, c.ct.Fields)
	if err := c.svc.saver.Save(ctx, reconcile.SaveArgs{
		Slug:     c.slug,
		OwnerID:  pair.VersionID,
		Locale:   locale,
		Incoming: reconcile.Extract(data, cm, locale),
	}); err != nil {
		return nil, fmt.Errorf("saving children of %s %s: %w", c.slug, pair.ID, err)
	}

	doc, err := c.readBack(ctx, pair, locale, args.User)
	if err != nil {
		return nil, err
	}
	hargs, err = rizom.RunHooks(ctx, "afterCreate", c.ct.Hooks.AfterCreate, rizom.HookArgs{
		Doc: doc, Type: c.ct, Operation: "create", Locale: locale, User: args.User, API: c.svc,
	})
	if err != nil {
		return nil, err
	}
	return hargs.Doc, nil
}

// Find lists documents, transformed and filtered through read access.
func (c *collectionOps) Find(ctx context.Context, args rizom.FindArgs) ([]rizom.Document, error) {
	if c.ct == nil {
		return nil, unknownType(c.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return nil, err
	}
	if c.ct.Access.Read != nil && !c.ct.Access.Read(args.User, "") {
		return nil, fmt.Errorf("reading %s: %w", c.slug, rizom.ErrUnauthorized)
	}
	locale := c.svc.defaultLocale(args.Locale)
	draft := versions.ShouldReadDraft(c.ct, "", args.Draft)

	var raws []rizom.RawDoc
	if args.Query.IsZero() {
		raws, err = c.svc.store.FindAll(ctx, rizom.FindAllArgs{
			Slug: c.slug, Locale: locale, Draft: draft,
			Sort: args.Sort, Limit: args.Limit, Offset: args.Offset,
		})
	} else {
		raws, err = c.svc.store.Query(ctx, rizom.QueryArgs{
			Slug: c.slug, Query: args.Query, Locale: locale, Draft: draft,
			Sort: args.Sort, Limit: args.Limit, Offset: args.Offset,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.slug, err)
	}

	docs := make([]rizom.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := c.svc.trans.Transform(ctx, transform.Args{
			Slug: c.slug, Raw: raw, Locale: locale, Depth: args.Depth, User: args.User, API: c.svc,
		})
		if err != nil {
			return nil, err
		}
		doc, err = c.runBeforeRead(ctx, doc, locale, args.User)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindByID reads one document.
func (c *collectionOps) FindByID(ctx context.Context, args rizom.FindByIDDocArgs) (rizom.Document, error) {
	if c.ct == nil {
		return nil, unknownType(c.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return nil, err
	}
	if c.ct.Access.Read != nil && !c.ct.Access.Read(args.User, args.ID) {
		return nil, fmt.Errorf("reading %s %s: %w", c.slug, args.ID, rizom.ErrUnauthorized)
	}
	locale := c.svc.defaultLocale(args.Locale)

	raw, err := c.svc.store.FindByID(ctx, rizom.FindByIDArgs{
		Slug: c.slug, ID: args.ID, VersionID: args.VersionID, Locale: locale,
		Draft:  versions.ShouldReadDraft(c.ct, args.VersionID, args.Draft),
		Select: args.Select,
	})
	if err != nil {
		return nil, err
	}
	doc, err := c.svc.trans.Transform(ctx, transform.Args{
		Slug: c.slug, Raw: raw, Locale: locale, Depth: args.Depth,
		Select: args.Select, User: args.User, API: c.svc,
	})
	if err != nil {
		return nil, err
	}
	return c.runBeforeRead(ctx, doc, locale, args.User)
}

// UpdateByID applies a partial payload to a document. The payload merges over
// the stored document so validation always sees a complete value set, while
// child-row diffing keeps untouched structural fields intact.
func (c *collectionOps) UpdateByID(ctx context.Context, args rizom.UpdateByIDArgs) (rizom.Document, error) {
	if c.ct == nil {
		return nil, unknownType(c.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return nil, err
	}
	if c.ct.Access.Update != nil && !c.ct.Access.Update(args.User, args.ID) {
		return nil, fmt.Errorf("updating %s %s: %w", c.slug, args.ID, rizom.ErrUnauthorized)
	}
	locale := c.svc.defaultLocale(args.Locale)
	op := versions.ResolveUpdateOperation(c.ct, args.VersionID, args.Draft)

	originalRaw, err := c.svc.store.FindByID(ctx, rizom.FindByIDArgs{
		Slug: c.slug, ID: args.ID, VersionID: args.VersionID, Locale: locale,
		Draft: versions.ShouldReadDraft(c.ct, args.VersionID, args.Draft),
	})
	if err != nil {
		return nil, err
	}
	original, err := c.svc.trans.Transform(ctx, transform.Args{
		Slug: c.slug, Raw: originalRaw, Locale: locale, User: args.User, API: c.svc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading original of %s %s: %v", rizom.ErrOperation, c.slug, args.ID, err)
	}

	merged := rizom.DeepMerge(original, args.Data)
	// Status transitions must be explicit: a payload without one never
	// re-publishes (or demotes) as a side effect of the merge.
	if _, explicit := args.Data[rizom.MetaStatus]; !explicit {
		delete(merged, rizom.MetaStatus)
	}

	cm := configmap.Build(merged, c.ct.Fields)
	if err := c.svc.validate(ctx, validateArgs{
		ct: c.ct, data: merged, cm: cm, operation: "update", id: args.ID, locale: locale, user: args.User,
	}); err != nil {
		return nil, err
	}

	hargs, err := rizom.RunHooks(ctx, "beforeUpdate", c.ct.Hooks.BeforeUpdate, rizom.HookArgs{
		Data: merged, Doc: original, Type: c.ct, Operation: "update",
		Locale: locale, User: args.User, API: c.svc,
	})
	if err != nil {
		return nil, err
	}
	merged = hargs.Data

	pair, err := c.svc.store.Update(ctx, rizom.UpdateArgs{
		Slug: c.slug, ID: args.ID, VersionID: args.VersionID,
		Data: merged, Locale: locale, Operation: op,
	})
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", c.slug, args.ID, err)
	}

	// When the write landed on a fresh version row, that row was cloned from
	// its predecessor, so the diff runs against the clone's rows. Echoed ids
	// from the predecessor fall back to positional matching there.
	var existing reconcile.Existing
	originalVersionID, _ := original[rizom.MetaVersionID].(string)
	if pair.VersionID == originalVersionID {
		existing = reconcile.FromRaw(c.svc.schema.Type(c.slug), originalRaw)
	} else {
		newRaw, err := c.svc.store.FindByID(ctx, rizom.FindByIDArgs{
			Slug: c.slug, ID: args.ID, VersionID: pair.VersionID, Locale: locale,
		})
		if err != nil {
			return nil, fmt.Errorf("reading new version of %s %s: %w", c.slug, args.ID, err)
		}
		existing = reconcile.FromRaw(c.svc.schema.Type(c.slug), newRaw)
	}

	cm = configmap.Build(merged, c.ct.Fields)
	if err := c.svc.saver.Save(ctx, reconcile.SaveArgs{
		Slug:     c.slug,
		OwnerID:  pair.VersionID,
		Locale:   locale,
		Existing: existing,
		Incoming: reconcile.Extract(merged, cm, locale),
	}); err != nil {
		return nil, fmt.Errorf("saving children of %s %s: %w", c.slug, args.ID, err)
	}

	doc, err := c.readBack(ctx, pair, locale, args.User)
	if err != nil {
		return nil, err
	}
	hargs, err = rizom.RunHooks(ctx, "afterUpdate", c.ct.Hooks.AfterUpdate, rizom.HookArgs{
		Doc: doc, Type: c.ct, Operation: "update", Locale: locale, User: args.User, API: c.svc,
	})
	if err != nil {
		return nil, err
	}
	return hargs.Doc, nil
}

// DeleteByID removes a document and, through cascade, all of its versions and
// child rows. Returns the deleted id for convenience in hook chains.
func (c *collectionOps) DeleteByID(ctx context.Context, id string, user *rizom.User) (string, error) {
	if c.ct == nil {
		return "", unknownType(c.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return "", err
	}
	if c.ct.Access.Delete != nil && !c.ct.Access.Delete(user, id) {
		return "", fmt.Errorf("deleting %s %s: %w", c.slug, id, rizom.ErrUnauthorized)
	}
	locale := c.svc.defaultLocale("")

	raw, err := c.svc.store.FindByID(ctx, rizom.FindByIDArgs{Slug: c.slug, ID: id, Locale: locale, Draft: c.ct.Draft()})
	if err != nil {
		return "", err
	}
	doc, err := c.svc.trans.Transform(ctx, transform.Args{
		Slug: c.slug, Raw: raw, Locale: locale, User: user, API: c.svc,
	})
	if err != nil {
		return "", err
	}

	if _, err := rizom.RunHooks(ctx, "beforeDelete", c.ct.Hooks.BeforeDelete, rizom.HookArgs{
		Doc: doc, Type: c.ct, Operation: "delete", Locale: locale, User: user, API: c.svc,
	}); err != nil {
		return "", err
	}
	if err := c.svc.store.DeleteByID(ctx, c.slug, id); err != nil {
		return "", err
	}
	c.svc.logger.Debug("document deleted", "slug", c.slug, "id", id)
	if _, err := rizom.RunHooks(ctx, "afterDelete", c.ct.Hooks.AfterDelete, rizom.HookArgs{
		Doc: doc, Type: c.ct, Operation: "delete", Locale: locale, User: user, API: c.svc,
	}); err != nil {
		return "", err
	}
	return id, nil
}

// readBack re-reads a just-written version so the caller and after hooks see
// canonical values, not the payload.
func (c *collectionOps) readBack(ctx context.Context, pair rizom.IDPair, locale string, user *rizom.User) (rizom.Document, error) {
	raw, err := c.svc.store.FindByID(ctx, rizom.FindByIDArgs{
		Slug: c.slug, ID: pair.ID, VersionID: pair.VersionID, Locale: locale,
	})
	if err != nil {
		return nil, fmt.Errorf("reading back %s %s: %w", c.slug, pair.ID, err)
	}
	return c.svc.trans.Transform(ctx, transform.Args{
		Slug: c.slug, Raw: raw, Locale: locale, User: user, API: c.svc,
	})
}

func (c *collectionOps) runBeforeRead(ctx context.Context, doc rizom.Document, locale string, user *rizom.User) (rizom.Document, error) {
	hargs, err := rizom.RunHooks(ctx, "beforeRead", c.ct.Hooks.BeforeRead, rizom.HookArgs{
		Doc: doc, Type: c.ct, Operation: "read", Locale: locale, User: user, API: c.svc,
	})
	if err != nil {
		return nil, err
	}
	return hargs.Doc, nil
}
