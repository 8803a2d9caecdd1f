package operations

import (
	"context"
	"errors"
	"fmt"

	"rizom/internal/configmap"
	"rizom/internal/reconcile"
	"rizom/internal/rizom"
	"rizom/internal/transform"
	"rizom/internal/versions"
)

// areaOps is the AreaAPI bound to one area type.
type areaOps struct {
	svc  *Service
	slug string
	ct   *rizom.CompiledType
}

// Find reads the singleton document, creating it from field defaults on first
// access so areas never 404.
func (a *areaOps) Find(ctx context.Context, args rizom.AreaFindArgs) (rizom.Document, error) {
	if a.ct == nil {
		return nil, unknownType(a.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return nil, err
	}
	if a.ct.Access.Read != nil && !a.ct.Access.Read(args.User, "") {
		return nil, fmt.Errorf("reading %s: %w", a.slug, rizom.ErrUnauthorized)
	}
	locale := a.svc.defaultLocale(args.Locale)

	raw, err := a.get(ctx, args, locale)
	if errors.Is(err, rizom.ErrNotFound) && args.VersionID == "" {
		if _, err := a.svc.store.CreateArea(ctx, a.slug, rizom.BlankDocument(a.ct), locale); err != nil {
			return nil, fmt.Errorf("bootstrapping area %s: %w", a.slug, err)
		}
		a.svc.logger.Info("area bootstrapped", "slug", a.slug)
		raw, err = a.get(ctx, args, locale)
	}
	if err != nil {
		return nil, err
	}

	doc, err := a.svc.trans.Transform(ctx, transform.Args{
		Slug: a.slug, Raw: raw, Locale: locale, Depth: args.Depth,
		Select: args.Select, User: args.User, API: a.svc,
	})
	if err != nil {
		return nil, err
	}
	hargs, err := rizom.RunHooks(ctx, "beforeRead", a.ct.Hooks.BeforeRead, rizom.HookArgs{
		Doc: doc, Type: a.ct, Operation: "read", Locale: locale, User: args.User, API: a.svc,
	})
	if err != nil {
		return nil, err
	}
	return hargs.Doc, nil
}

func (a *areaOps) get(ctx context.Context, args rizom.AreaFindArgs, locale string) (rizom.RawDoc, error) {
	return a.svc.store.Get(ctx, rizom.GetArgs{
		Slug: a.slug, Locale: locale, VersionID: args.VersionID,
		Draft:  versions.ShouldReadDraft(a.ct, args.VersionID, args.Draft),
		Select: args.Select,
	})
}

// Update applies a partial payload to the singleton, with the same pipeline a
// collection update runs.
func (a *areaOps) Update(ctx context.Context, args rizom.AreaUpdateArgs) (rizom.Document, error) {
	if a.ct == nil {
		return nil, unknownType(a.slug)
	}
	ctx, err := rizom.EnterOperation(ctx)
	if err != nil {
		return nil, err
	}
	locale := a.svc.defaultLocale(args.Locale)

	originalRaw, err := a.get(ctx, rizom.AreaFindArgs{
		VersionID: args.VersionID, Draft: args.Draft, User: args.User,
	}, locale)
	if errors.Is(err, rizom.ErrNotFound) && args.VersionID == "" {
		if _, err := a.svc.store.CreateArea(ctx, a.slug, rizom.BlankDocument(a.ct), locale); err != nil {
			return nil, fmt.Errorf("bootstrapping area %s: %w", a.slug, err)
		}
		originalRaw, err = a.get(ctx, rizom.AreaFindArgs{User: args.User}, locale)
	}
	if err != nil {
		return nil, err
	}
	id, _ := originalRaw[rizom.MetaID].(string)
	if a.ct.Access.Update != nil && !a.ct.Access.Update(args.User, id) {
		return nil, fmt.Errorf("updating %s: %w", a.slug, rizom.ErrUnauthorized)
	}

	original, err := a.svc.trans.Transform(ctx, transform.Args{
		Slug: a.slug, Raw: originalRaw, Locale: locale, User: args.User, API: a.svc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading original of area %s: %v", rizom.ErrOperation, a.slug, err)
	}

	merged := rizom.DeepMerge(original, args.Data)
	if _, explicit := args.Data[rizom.MetaStatus]; !explicit {
		delete(merged, rizom.MetaStatus)
	}

	cm := configmap.Build(merged, a.ct.Fields)
	if err := a.svc.validate(ctx, validateArgs{
		ct: a.ct, data: merged, cm: cm, operation: "update", id: id, locale: locale, user: args.User,
	}); err != nil {
		return nil, err
	}

	hargs, err := rizom.RunHooks(ctx, "beforeUpdate", a.ct.Hooks.BeforeUpdate, rizom.HookArgs{
		Data: merged, Doc: original, Type: a.ct, Operation: "update",
		Locale: locale, User: args.User, API: a.svc,
	})
	if err != nil {
		return nil, err
	}
	merged = hargs.Data

	op := versions.ResolveUpdateOperation(a.ct, args.VersionID, args.Draft)
	pair, err := a.svc.store.Update(ctx, rizom.UpdateArgs{
		Slug: a.slug, ID: id, VersionID: args.VersionID,
		Data: merged, Locale: locale, Operation: op,
	})
	if err != nil {
		return nil, fmt.Errorf("updating area %s: %w", a.slug, err)
	}

	// A write landing on a fresh version row diffs against the clone the
	// store seeded it with, same as a collection update.
	var existing reconcile.Existing
	originalVersionID, _ := original[rizom.MetaVersionID].(string)
	if pair.VersionID == originalVersionID {
		existing = reconcile.FromRaw(a.svc.schema.Type(a.slug), originalRaw)
	} else {
		newRaw, err := a.svc.store.FindByID(ctx, rizom.FindByIDArgs{
			Slug: a.slug, ID: pair.ID, VersionID: pair.VersionID, Locale: locale,
		})
		if err != nil {
			return nil, fmt.Errorf("reading new version of area %s: %w", a.slug, err)
		}
		existing = reconcile.FromRaw(a.svc.schema.Type(a.slug), newRaw)
	}

	cm = configmap.Build(merged, a.ct.Fields)
	if err := a.svc.saver.Save(ctx, reconcile.SaveArgs{
		Slug:     a.slug,
		OwnerID:  pair.VersionID,
		Locale:   locale,
		Existing: existing,
		Incoming: reconcile.Extract(merged, cm, locale),
	}); err != nil {
		return nil, fmt.Errorf("saving children of area %s: %w", a.slug, err)
	}

	raw, err := a.svc.store.FindByID(ctx, rizom.FindByIDArgs{
		Slug: a.slug, ID: pair.ID, VersionID: pair.VersionID, Locale: locale,
	})
	if err != nil {
		return nil, fmt.Errorf("reading back area %s: %w", a.slug, err)
	}
	doc, err := a.svc.trans.Transform(ctx, transform.Args{
		Slug: a.slug, Raw: raw, Locale: locale, User: args.User, API: a.svc,
	})
	if err != nil {
		return nil, err
	}
	hargs, err = rizom.RunHooks(ctx, "afterUpdate", a.ct.Hooks.AfterUpdate, rizom.HookArgs{
		Doc: doc, Type: a.ct, Operation: "update", Locale: locale, User: args.User, API: a.svc,
	})
	if err != nil {
		return nil, err
	}
	return hargs.Doc, nil
}
