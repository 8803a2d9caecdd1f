// Package versions resolves caller intent into the concrete write strategy
// the store executes. The rules form a small, closed decision table; keeping
// them in one place is what keeps publish exclusivity enforceable.
package versions

import "rizom/internal/rizom"

// ResolveUpdateOperation picks the version operation for an update.
//
//   - Unversioned types always update in place.
//   - An explicit version id addresses exactly that row.
//   - Versioned types without drafts never mutate history: every update
//     appends a new version.
//   - Draft-enabled types update the current draft when the caller asked for
//     draft semantics, the published row otherwise.
func ResolveUpdateOperation(ct *rizom.CompiledType, versionID string, draft bool) rizom.VersionOperation {
	if !ct.Versioned() {
		return rizom.VersionOpSimpleUpdate
	}
	if versionID != "" {
		return rizom.VersionOpUpdateVersion
	}
	if !ct.Draft() {
		return rizom.VersionOpNewVersion
	}
	if draft {
		return rizom.VersionOpUpdateDraft
	}
	return rizom.VersionOpUpdatePublished
}

// ShouldReadDraft reports whether a read resolves to the working draft rather
// than the published version. Explicit version ids bypass status resolution
// entirely.
func ShouldReadDraft(ct *rizom.CompiledType, versionID string, draft bool) bool {
	return ct.Draft() && versionID == "" && draft
}
