package resolve

import (
	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/manifest"
)

// Removal names one manifest entry to delete. Cascade is true when the
// entry is removed as an orphaned dependency rather than by direct request.
type Removal struct {
	Slug    string
	Entry   manifest.Entry
	Cascade bool
}

// PlanRemovals resolves names (slugs, ids, titles, or artifact filenames)
// against the manifest and plans their removal. With purge, each removed
// project's required dependencies are cascade-removed when no remaining
// entry still depends on them. This is a reference-counting sweep over the
// manifest's own declared dependencies, re-evaluated as items are removed,
// not a general garbage collector.
func PlanRemovals(m *manifest.Manifest, names []string, purge bool) (removals []Removal, notInstalled []string) {
	idx := m.Index()

	removing := make(map[string]bool, len(names))
	for _, name := range names {
		slug, ok := idx.Resolve(name)
		if !ok {
			notInstalled = append(notInstalled, name)
			continue
		}
		if removing[slug] {
			continue
		}
		removing[slug] = true
		entry, _ := m.Get(slug)
		removals = append(removals, Removal{Slug: slug, Entry: entry})
	}

	if !purge {
		return removals, notInstalled
	}

	// Sweep until no more orphans turn up: removing one dependency can
	// orphan another.
	for changed := true; changed; {
		changed = false
		for _, rm := range removals {
			if rm.Entry.Version == nil {
				continue
			}
			for _, dep := range rm.Entry.Version.Dependencies {
				if dep.Kind != catalog.DependencyRequired || dep.ProjectID == "" {
					continue
				}
				slug, ok := projectSlug(m, dep.ProjectID)
				if !ok || removing[slug] {
					continue
				}
				if stillDependedOn(m, dep.ProjectID, removing) {
					continue
				}
				removing[slug] = true
				entry, _ := m.Get(slug)
				removals = append(removals, Removal{Slug: slug, Entry: entry, Cascade: true})
				changed = true
			}
		}
	}
	return removals, notInstalled
}

// projectSlug finds the manifest slug of an installed project id.
func projectSlug(m *manifest.Manifest, projectID string) (string, bool) {
	if _, ok := m.Get(projectID); ok {
		return projectID, true
	}
	for slug, e := range m.Mods {
		if e.Project != nil && e.Project.ID == projectID {
			return slug, true
		}
	}
	return "", false
}

// stillDependedOn reports whether any entry outside the removal set
// declares a dependency on projectID. Incompatibility declarations don't
// count as depending.
func stillDependedOn(m *manifest.Manifest, projectID string, removing map[string]bool) bool {
	for slug, e := range m.Mods {
		if removing[slug] || e.Version == nil {
			continue
		}
		for _, dep := range e.Version.Dependencies {
			if dep.ProjectID != projectID {
				continue
			}
			if dep.Kind == catalog.DependencyRequired || dep.Kind == catalog.DependencyOptional {
				return true
			}
		}
	}
	return false
}
