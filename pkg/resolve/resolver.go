package resolve

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/modman-dev/modman/pkg/catalog"
	apperrors "github.com/modman-dev/modman/pkg/errors"
	"github.com/modman-dev/modman/pkg/manifest"
)

// Catalog is the subset of the catalog client the resolver depends on.
type Catalog interface {
	Project(ctx context.Context, idOrSlug string) (*catalog.Project, error)
	Projects(ctx context.Context, ids []string) ([]*catalog.Project, error)
	Versions(ctx context.Context, projectID string, f catalog.VersionFilter) ([]*catalog.Version, error)
	Version(ctx context.Context, projectID, versionID string) (*catalog.Version, error)
	VersionsBulk(ctx context.Context, ids []string) ([]*catalog.Version, error)
}

// Picker disambiguates a free-text project reference that failed direct
// lookup, typically by prompting the user over a search result. A Picker
// error aborts only the request being disambiguated.
type Picker interface {
	Pick(ctx context.Context, query string) (*catalog.Project, error)
}

// Options controls one resolution run.
type Options struct {
	// IncludeOptional enqueues optional dependencies alongside required ones.
	IncludeOptional bool

	// Reinstall re-plans projects that are already installed.
	Reinstall bool

	// Picker handles ambiguous seed references. Nil disables disambiguation:
	// an unresolvable reference becomes a failure for that request.
	Picker Picker
}

// Resolver expands requested add-ons into a full installation plan.
type Resolver struct {
	catalog Catalog
	log     *log.Logger
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(c Catalog, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{catalog: c, log: logger}
}

// Resolve computes the installation plan for requests against the current
// manifest. Failures local to one request or one dependency are recorded
// in the plan and never abort the run; Resolve itself only errors when the
// context is cancelled.
func (r *Resolver) Resolve(ctx context.Context, requests []Request, m *manifest.Manifest, opts Options) (*Plan, error) {
	plan := &Plan{}

	// Seed phase: resolve each request to a concrete {project, version}.
	var seeds []Item
	for _, req := range requests {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		item, ok := r.resolveSeed(ctx, req, m, opts, plan)
		if ok {
			seeds = append(seeds, item)
		}
	}

	queue := r.expand(ctx, seeds, m, opts, plan)
	plan.Items = append(plan.Items, queue...)
	r.findIncompatibilities(queue, m, plan)
	return plan, ctx.Err()
}

func (r *Resolver) resolveSeed(ctx context.Context, req Request, m *manifest.Manifest, opts Options, plan *Plan) (Item, bool) {
	server := m.Meta.Server

	proj, err := r.catalog.Project(ctx, req.Ref)
	if errors.Is(err, catalog.ErrNotFound) && opts.Picker != nil {
		r.log.Warn("no project matches reference, searching by name", "ref", req.Ref)
		picked, pickErr := opts.Picker.Pick(ctx, req.Ref)
		if pickErr != nil {
			plan.Failures = append(plan.Failures, Failure{Ref: req.Ref, Err: pickErr})
			return Item{}, false
		}
		proj, err = r.catalog.Project(ctx, picked.Slug)
	}
	if err != nil {
		plan.Failures = append(plan.Failures, Failure{
			Ref: req.Ref,
			Err: apperrors.Wrap(apperrors.ErrCodeUnresolved, err, "resolve %q", req.Ref),
		})
		return Item{}, false
	}

	versionID := req.VersionID
	if installed, ok := m.Get(proj.Slug); ok {
		switch {
		case versionID != "" && installed.Version != nil && versionID == installed.Version.ID:
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("%s is already installed at the requested version", proj.Name()))
			return Item{}, false
		case versionID != "":
			// A different version was explicitly requested; proceed.
		case opts.Reinstall:
			if installed.Version != nil {
				versionID = installed.Version.ID
			}
		default:
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("%s is already installed; did you mean `modman update`?", proj.Name()))
			return Item{}, false
		}
	}

	if proj.ServerSide == "unsupported" {
		r.log.Warn("project is client-side only, it may have no effect on the server", "project", proj.Name())
	}

	var version *catalog.Version
	if versionID != "" {
		version, err = r.catalog.Version(ctx, proj.ID, versionID)
		if err != nil {
			plan.Failures = append(plan.Failures, Failure{
				Ref: req.Ref,
				Err: apperrors.Wrap(apperrors.ErrCodeVersionNotFound, err, "%s version %s", proj.Name(), versionID),
			})
			return Item{}, false
		}
	} else {
		candidates, err := r.catalog.Versions(ctx, proj.ID, catalog.VersionFilter{
			Loader:      server.Loader,
			GameVersion: server.GameVersion,
		})
		if err != nil {
			plan.Failures = append(plan.Failures, Failure{Ref: req.Ref, Err: err})
			return Item{}, false
		}
		version, err = Select(candidates, Filter{
			Loader:         server.Loader,
			GameVersion:    server.GameVersion,
			RequireRelease: true,
		})
		if err != nil {
			plan.Failures = append(plan.Failures, Failure{
				Ref: req.Ref,
				Err: apperrors.Wrap(apperrors.ErrCodeUnsupported, err,
					"%s has no version for %s %s", proj.Name(), server.Loader, server.GameVersion),
			})
			return Item{}, false
		}
	}

	// Platform mismatches on an explicitly chosen version are warnings, not
	// errors: the installing user may be intentionally overriding.
	if server.GameVersion != "" && !version.SupportsGameVersion(server.GameVersion) {
		r.log.Warn("version does not declare support for the server's game version",
			"project", proj.Name(), "version", version.Name, "game_version", server.GameVersion)
	}
	if server.Loader != "" && !version.SupportsLoader(server.Loader) {
		r.log.Warn("version does not declare support for the server's loader",
			"project", proj.Name(), "version", version.Name, "loader", server.Loader)
	}

	r.log.Debug("queued", "project", proj.Name(), "version", version.Name)
	return Item{Project: proj, Version: version}, true
}

// expand computes the dependency closure of seeds with a worklist. Each
// project is expanded at most once per run, so dependency cycles terminate
// and re-enqueueing an already-seen project is a no-op.
func (r *Resolver) expand(ctx context.Context, seeds []Item, m *manifest.Manifest, opts Options, plan *Plan) []Item {
	queue := slices.Clone(seeds)
	visited := make(map[string]bool, len(queue))
	for _, item := range queue {
		visited[item.Project.ID] = true
	}

	for i := 0; i < len(queue); i++ {
		if ctx.Err() != nil {
			return queue
		}
		item := queue[i]
		r.log.Debug("resolving dependencies", "project", item.Project.Name(), "version", item.Version.Name)

		for _, dep := range item.Version.Dependencies {
			switch dep.Kind {
			case catalog.DependencyIncompatible:
				// Handled by the incompatibility phase over the final queue.
				continue
			case catalog.DependencyEmbedded:
				r.log.Debug("dependency is embedded in the artifact, skipping", "project", dep.ProjectID)
				continue
			case catalog.DependencyOptional:
				if !opts.IncludeOptional {
					r.log.Info("skipping optional dependency", "of", item.Project.Name(), "project", dep.ProjectID)
					continue
				}
			case catalog.DependencyRequired:
			default:
				r.log.Debug("unknown dependency kind, skipping", "kind", dep.Kind, "project", dep.ProjectID)
				continue
			}

			if dep.ProjectID == "" || visited[dep.ProjectID] {
				continue
			}
			visited[dep.ProjectID] = true

			depItem, ok := r.resolveDependency(ctx, item, dep, m, plan)
			if !ok {
				continue
			}

			plan.Conflicts = append(plan.Conflicts, findConflicts(m, dep.ProjectID, depItem.Version.ID)...)
			queue = append(queue, depItem)
		}
	}
	return queue
}

func (r *Resolver) resolveDependency(ctx context.Context, parent Item, dep catalog.Dependency, m *manifest.Manifest, plan *Plan) (Item, bool) {
	server := m.Meta.Server

	proj, err := r.catalog.Project(ctx, dep.ProjectID)
	if err != nil {
		plan.Failures = append(plan.Failures, Failure{
			Ref: dep.ProjectID,
			Err: apperrors.Wrap(apperrors.ErrCodeUnresolved, err,
				"dependency %s of %s", dep.ProjectID, parent.Project.Name()),
		})
		return Item{}, false
	}

	var version *catalog.Version
	if dep.VersionID != "" {
		version, err = r.catalog.Version(ctx, proj.ID, dep.VersionID)
		if err != nil {
			plan.Failures = append(plan.Failures, Failure{
				Ref: proj.Name(),
				Err: apperrors.Wrap(apperrors.ErrCodeVersionNotFound, err,
					"dependency %s of %s pinned to missing version %s", proj.Name(), parent.Project.Name(), dep.VersionID),
			})
			return Item{}, false
		}
	} else {
		candidates, err := r.catalog.Versions(ctx, proj.ID, catalog.VersionFilter{
			Loader:      server.Loader,
			GameVersion: server.GameVersion,
		})
		if err == nil {
			version, err = Select(candidates, Filter{
				Loader:         server.Loader,
				GameVersion:    server.GameVersion,
				RequireRelease: true,
			})
		}
		if err != nil {
			// Critical for this dependency, but never aborts the run.
			plan.Failures = append(plan.Failures, Failure{
				Ref: proj.Name(),
				Err: apperrors.Wrap(apperrors.ErrCodeUnsupported, err,
					"dependency %s of %s has no version for %s %s", proj.Name(), parent.Project.Name(), server.Loader, server.GameVersion),
			})
			return Item{}, false
		}
	}

	r.log.Info("dependency resolved", "of", parent.Project.Name(), "project", proj.Name(), "version", version.Name)
	return Item{Project: proj, Version: version}, true
}

// findConflicts scans installed entries for dependency pins on projectID
// that disagree with the version about to be installed. Iteration is over
// sorted slugs so repeated runs report conflicts in the same order.
func findConflicts(m *manifest.Manifest, projectID, versionID string) []Conflict {
	var conflicts []Conflict
	for _, slug := range slices.Sorted(maps.Keys(m.Mods)) {
		entry := m.Mods[slug]
		if entry.Version == nil || entry.Project == nil {
			continue
		}
		for _, dep := range entry.Version.Dependencies {
			if dep.ProjectID != projectID || dep.VersionID == "" {
				continue
			}
			if dep.VersionID != versionID {
				conflicts = append(conflicts, Conflict{
					ProjectID:            projectID,
					ConflictingProjectID: entry.Project.ID,
					VersionID:            versionID,
					ConflictingVersionID: dep.VersionID,
				})
			}
		}
	}
	return conflicts
}

// findIncompatibilities checks every planned item's incompatible
// declarations against the rest of the queue and the installed set.
func (r *Resolver) findIncompatibilities(queue []Item, m *manifest.Manifest, plan *Plan) {
	planned := make(map[string]bool, len(queue))
	for _, item := range queue {
		planned[item.Project.ID] = true
	}
	installed := make(map[string]bool, len(m.Mods))
	for _, entry := range m.Mods {
		if entry.Project != nil {
			installed[entry.Project.ID] = true
		}
	}

	for _, item := range queue {
		for _, dep := range item.Version.Dependencies {
			if dep.Kind != catalog.DependencyIncompatible || dep.ProjectID == "" {
				continue
			}
			if planned[dep.ProjectID] || installed[dep.ProjectID] {
				plan.Incompatibilities = append(plan.Incompatibilities, Incompatibility{
					ProjectID:        item.Project.ID,
					ProjectName:      item.Project.Name(),
					IncompatibleWith: dep.ProjectID,
				})
			}
		}
	}
}
