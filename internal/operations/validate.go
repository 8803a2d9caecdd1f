package operations

import (
	"context"
	"fmt"
	"strings"

	"rizom/internal/configmap"
	"rizom/internal/rizom"
)

type validateArgs struct {
	ct        *rizom.CompiledType
	data      rizom.Document // full merged document, mutated in place
	cm        configmap.Map
	operation string // "create" or "update"
	id        string
	locale    string
	user      *rizom.User
}

// validate runs the field pipeline over every form-field instance: value
// normalization, beforeValidate hooks, sanitization, slug derivation,
// per-field write access, required/unique/custom checks, beforeSave hooks.
// Failures accumulate so the caller sees every invalid field at once.
func (s *Service) validate(ctx context.Context, a validateArgs) error {
	verrs := rizom.NewValidationErrors()

	for _, path := range a.cm.Paths() {
		field := a.cm[path]
		if !field.Kind.IsForm() {
			continue
		}
		p := rizom.ParsePath(path)
		value, _ := rizom.GetValue(a.data, p)

		// Relation values are never coerced or hooked here (the
		// reconciliation engine owns their rows), but access and required
		// rules still apply to them.
		if field.Kind == rizom.KindRelation {
			if fieldWriteDenied(field, a.operation, a.id, a.user) {
				rizom.DeleteValue(a.data, p)
				continue
			}
			if field.Required && field.IsEmpty(value) {
				verrs.Add(path, rizom.ErrCodeRequired)
			}
			continue
		}

		switch field.Kind {
		case rizom.KindNumber, rizom.KindToggle:
			value = rizom.NormalizeValue(value)
		}

		var err error
		for _, hook := range field.BeforeValidate {
			value, err = hook(value, field)
			if err != nil {
				verrs.Add(path, rizom.ErrCodeNotNormative)
				break
			}
		}

		if field.Kind == rizom.KindRichText {
			if html, ok := value.(string); ok {
				value = s.sanitizer.Sanitize(html)
			}
		}

		if field.Kind == rizom.KindSlug && field.IsEmpty(value) && field.SlugFrom != "" {
			if source, ok := rizom.GetValue(a.data, p.Parent().Child(field.SlugFrom)); ok {
				if str, ok := source.(string); ok && str != "" {
					value = slugify(str)
				}
			}
		}

		if denied := fieldWriteDenied(field, a.operation, a.id, a.user); denied {
			// Unauthorized field writes drop silently; the rest of the
			// payload still applies.
			rizom.DeleteValue(a.data, p)
			continue
		}

		if field.Required && field.IsEmpty(value) {
			verrs.Add(path, rizom.ErrCodeRequired)
		}

		if !field.IsEmpty(value) {
			switch field.Kind {
			case rizom.KindEmail:
				if str, ok := value.(string); !ok || !strings.Contains(str, "@") {
					verrs.Add(path, rizom.ErrCodeInvalid)
				}
			case rizom.KindSelect:
				if len(field.Options) > 0 {
					if str, ok := value.(string); !ok || !contains(field.Options, str) {
						verrs.Add(path, rizom.ErrCodeInvalid)
					}
				}
			}
			if field.Unique && !p.HasIndex() {
				taken, err := s.uniqueTaken(ctx, a.ct.Slug, path, value, a.id)
				if err != nil {
					return fmt.Errorf("checking uniqueness of %s: %w", path, err)
				}
				if taken {
					verrs.Add(path, rizom.ErrCodeUnique)
				}
			}
		}

		if field.Validate != nil {
			if err := field.Validate(value, rizom.ValidateContext{
				Data:      a.data,
				Operation: a.operation,
				ID:        a.id,
				User:      a.user,
				Locale:    a.locale,
			}); err != nil {
				verrs.Add(path, rizom.ErrCodeInvalid)
			}
		}

		for _, hook := range field.BeforeSave {
			value, err = hook(value, field)
			if err != nil {
				verrs.Add(path, rizom.ErrCodeNotNormative)
				break
			}
		}

		rizom.SetValue(a.data, p, value)
	}

	if !verrs.Empty() {
		return verrs
	}
	return nil
}

func fieldWriteDenied(field *rizom.Field, operation, id string, user *rizom.User) bool {
	if field.Access == nil {
		return false
	}
	switch operation {
	case "create":
		return field.Access.Create != nil && !field.Access.Create(user)
	case "update":
		return field.Access.Update != nil && !field.Access.Update(user, id)
	}
	return false
}

// uniqueTaken reports whether another document of the type already holds the
// value at a root-level field path.
func (s *Service) uniqueTaken(ctx context.Context, slug, path string, value any, selfID string) (bool, error) {
	docs, err := s.store.Query(ctx, rizom.QueryArgs{
		Slug:  slug,
		Query: rizom.Where(path, rizom.OpEquals, value),
		Limit: 2,
	})
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if id, _ := doc[rizom.MetaID].(string); id != selfID {
			return true, nil
		}
	}
	return false, nil
}

// slugify renders a URL-safe slug: lowercase, runs of non-alphanumerics
// collapse to single hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
