package resolve

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/manifest"
)

// updateWindow is how many of a project's newest version ids are pulled in
// the bulk scan. Wide enough that a run of pre-releases doesn't hide an
// older release; the full version list is only fetched as a fallback.
const updateWindow = 20

// UpdateOptions controls one update-planning run.
type UpdateOptions struct {
	// GameVersion overrides the manifest's target game version.
	GameVersion string

	// AllowPrereleases permits updating a release install to a beta or
	// alpha. A pre-release install may always update within its tier.
	AllowPrereleases bool

	// IncludeOptional enqueues optional dependencies of updated projects.
	IncludeOptional bool
}

// PlanUpdates computes updates for the named installed projects, or all of
// them when names is empty. Candidates must be published after the
// installed version, be of the same or higher stability tier, and support
// the target platform. Surviving updates flow through the same dependency
// expansion and conflict detection as fresh installs.
func (r *Resolver) PlanUpdates(ctx context.Context, names []string, m *manifest.Manifest, opts UpdateOptions) (*Plan, error) {
	plan := &Plan{}
	gameVersion := opts.GameVersion
	if gameVersion == "" {
		gameVersion = m.Meta.Server.GameVersion
	}
	loader := m.Meta.Server.Loader

	targets := r.collectTargets(names, m, plan)
	if len(targets) == 0 {
		return plan, nil
	}

	ids := make([]string, 0, len(targets))
	for _, e := range targets {
		ids = append(ids, e.Project.ID)
	}
	projects, err := r.catalog.Projects(ctx, ids)
	if err != nil {
		return nil, err
	}
	r.log.Debug("fetched projects for update scan", "count", len(projects))

	// Bulk-fetch the newest window of version ids across all targets. The
	// catalog lists a project's version ids oldest first.
	var versionIDs []string
	for _, p := range projects {
		window := p.Versions
		if len(window) > updateWindow {
			window = window[len(window)-updateWindow:]
		}
		versionIDs = append(versionIDs, window...)
	}
	versions, err := r.catalog.VersionsBulk(ctx, versionIDs)
	if err != nil {
		return nil, err
	}

	best := make(map[string]*catalog.Version, len(targets))
	for _, v := range versions {
		entry, ok := m.Find(v.ProjectID)
		if !ok || entry.Version == nil {
			continue
		}
		if !r.updateCandidate(v, entry.Version, loader, gameVersion, opts.AllowPrereleases) {
			continue
		}
		if cur := best[v.ProjectID]; cur == nil || v.DatePublished.After(cur.DatePublished) {
			best[v.ProjectID] = v
		}
	}

	var seeds []Item
	for _, p := range projects {
		entry, _ := m.Find(p.ID)
		candidate := best[p.ID]

		if candidate == nil && len(p.Versions) > updateWindow {
			// The window may have been all older-tier pre-releases while a
			// newer release sits further back; fall back to the full list.
			candidate = r.lookback(ctx, p, entry.Version, loader, gameVersion, opts.AllowPrereleases)
		}
		if candidate == nil {
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("%s is up to date", p.Name()))
			continue
		}
		r.log.Info("update available", "project", p.Name(),
			"from", entry.Version.Name, "to", candidate.Name)
		seeds = append(seeds, Item{Project: p, Version: candidate, Previous: entry.Version})
	}

	queue := r.expand(ctx, seeds, m, Options{IncludeOptional: opts.IncludeOptional}, plan)
	plan.Items = append(plan.Items, queue...)
	r.findIncompatibilities(queue, m, plan)
	return plan, ctx.Err()
}

// collectTargets resolves the requested names against the manifest,
// defaulting to every installed project.
func (r *Resolver) collectTargets(names []string, m *manifest.Manifest, plan *Plan) []manifest.Entry {
	if len(names) == 0 {
		names = slices.Sorted(maps.Keys(m.Mods))
	}

	var targets []manifest.Entry
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		entry, ok := m.Find(name)
		if !ok || entry.Project == nil {
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("%s is not installed", name))
			continue
		}
		if seen[entry.Project.ID] {
			continue
		}
		seen[entry.Project.ID] = true
		targets = append(targets, entry)
	}
	return targets
}

// updateCandidate applies the freshness and compatibility rules from one
// installed version to a potential replacement.
func (r *Resolver) updateCandidate(v, installed *catalog.Version, loader, gameVersion string, allowPre bool) bool {
	if !v.DatePublished.After(installed.DatePublished) {
		return false
	}
	if !v.Channel.AtLeast(installed.Channel) {
		return false
	}
	if v.Channel != catalog.ChannelRelease && !allowPre && installed.Channel == catalog.ChannelRelease {
		return false
	}
	if loader != "" && !v.SupportsLoader(loader) {
		return false
	}
	if gameVersion != "" && len(v.GameVersions) > 0 && !v.SupportsGameVersion(gameVersion) {
		return false
	}
	return true
}

func (r *Resolver) lookback(ctx context.Context, p *catalog.Project, installed *catalog.Version, loader, gameVersion string, allowPre bool) *catalog.Version {
	if installed == nil {
		return nil
	}
	all, err := r.catalog.Versions(ctx, p.ID, catalog.VersionFilter{Loader: loader, GameVersion: gameVersion})
	if err != nil {
		r.log.Warn("full version list lookback failed", "project", p.Name(), "err", err)
		return nil
	}
	for _, v := range all { // newest first
		if r.updateCandidate(v, installed, loader, gameVersion, allowPre) {
			return v
		}
	}
	return nil
}
